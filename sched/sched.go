// Package sched implements the cooperative FIFO scheduler: a ready
// queue plus the single-hart processor state (spec.md §4.6, §5).
// Grounded on fs.BlkList_t's container/list wrapper (fs/blk.go) adapted
// from a block list to a ready queue of *task.TaskControlBlock, and on
// spec.md §4.6's run_tasks/schedule/take_current_task/
// suspend_current_and_run_next state machine. RunTasks also records
// each dispatch's start time so Suspend/ExitCurrentAndRunNext can
// charge the task's accnt.Accnt_t for the quantum it just ran (spec.md
// §5.11).
package sched

import (
	"container/list"
	"sync"

	"rv39os/stats"
	"rv39os/task"
	"rv39os/trapctx"
)

// Dispatches counts every RunTasks dispatch of a ready task onto the
// hart, surfaced by the diagnostic syscall (spec.md §6 id 22).
var Dispatches stats.Counter

// ReadyQueue is a FIFO queue of ready tasks, serialized by a single
// kernel lock (spec.md §5's "shared state... protected by a
// non-reentrant lock acquired for the shortest scope possible").
type ReadyQueue struct {
	mu sync.Mutex
	l  *list.List
}

func newReadyQueue() *ReadyQueue {
	return &ReadyQueue{l: list.New()}
}

// PushBack enqueues t at the back of the ready queue.
func (q *ReadyQueue) PushBack(t *task.TaskControlBlock) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.l.PushBack(t)
}

// PopFront dequeues and returns the task at the front of the ready
// queue, or nil if it is empty.
func (q *ReadyQueue) PopFront() *task.TaskControlBlock {
	q.mu.Lock()
	defer q.mu.Unlock()
	e := q.l.Front()
	if e == nil {
		return nil
	}
	q.l.Remove(e)
	return e.Value.(*task.TaskControlBlock)
}

// Len reports the number of ready tasks currently queued.
func (q *ReadyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.l.Len()
}

var readyQueue = newReadyQueue()

// AddTask enqueues t as ready, e.g. a newly created or just-forked task.
func AddTask(t *task.TaskControlBlock) { readyQueue.PushBack(t) }

// FetchTask dequeues the next ready task, or nil if none is ready.
func FetchTask() *task.TaskControlBlock { return readyQueue.PopFront() }

// SwitchFunc performs the register-level context switch between two
// TaskContexts. It is supplied by the (out-of-scope) __switch assembly;
// the scheduler only ever calls it through this indirection.
var SwitchFunc func(current, next *trapctx.TaskContext)

// processor holds the single hart's current task and its private idle
// task context. There is exactly one processor in this single-hart
// kernel.
type processor struct {
	mu         sync.Mutex
	current    *task.TaskControlBlock
	idleTaskCx *trapctx.TaskContext
	dispatchAt int // accnt.Accnt_t.Now() at the last dispatch
}

// takeDispatchAt reads the timestamp RunTasks recorded when it last
// switched a task onto the hart, for the caller to charge against that
// task's accounting on its way back off.
func takeDispatchAt() int {
	proc.mu.Lock()
	defer proc.mu.Unlock()
	return proc.dispatchAt
}

var proc = &processor{idleTaskCx: &trapctx.TaskContext{}}

// CurrentTask returns the task presently running on this hart, or nil.
func CurrentTask() *task.TaskControlBlock {
	proc.mu.Lock()
	defer proc.mu.Unlock()
	return proc.current
}

// TakeCurrentTask removes and returns the processor's current task,
// leaving the slot empty.
func TakeCurrentTask() *task.TaskControlBlock {
	proc.mu.Lock()
	defer proc.mu.Unlock()
	t := proc.current
	proc.current = nil
	return t
}

// RunTasks is the idle loop: forever pop a ready task, mark it Running,
// install it as current, and switch into it. It never returns: when
// SwitchFunc hands control back to the idle context, the loop fetches
// the next ready task. Callers invoke it once at boot.
func RunTasks() {
	for {
		t := FetchTask()
		if t == nil {
			continue
		}
		t.Mu.Lock()
		t.Status = task.Running
		taskCx := t.TaskCx
		t.Mu.Unlock()

		proc.mu.Lock()
		proc.current = t
		proc.dispatchAt = t.Accounting.Now()
		proc.mu.Unlock()

		Dispatches.Inc()
		SwitchFunc(proc.idleTaskCx, taskCx)
	}
}

// Schedule switches from the currently running task back to the idle
// context, recording savedCx as where this task should resume.
func Schedule(savedCx *trapctx.TaskContext) {
	SwitchFunc(savedCx, proc.idleTaskCx)
}

// SuspendCurrentAndRunNext marks the current task Ready, charges it for
// the quantum it just ran (spec.md §5.11), reinserts it at the back of
// the ready queue, and schedules back to idle.
func SuspendCurrentAndRunNext() {
	dispatchAt := takeDispatchAt()
	t := TakeCurrentTask()
	if t == nil {
		panic("sched: suspend with no current task")
	}
	t.Mu.Lock()
	t.Status = task.Ready
	cx := t.TaskCx
	t.Accounting.Utadd(t.Accounting.Now() - dispatchAt)
	t.Mu.Unlock()

	AddTask(t)
	Schedule(cx)
}

// ExitCurrentAndRunNext marks the current task Zombie with exitCode,
// charges it for its final quantum (spec.md §5.11), recycles its
// memory areas, reparents its children to initProc, and schedules back
// to idle. The caller never resumes: this task is never rescheduled
// once Zombie.
func ExitCurrentAndRunNext(exitCode int, initProc *task.TaskControlBlock) {
	dispatchAt := takeDispatchAt()
	t := TakeCurrentTask()
	if t == nil {
		panic("sched: exit with no current task")
	}

	t.Mu.Lock()
	t.Status = task.Zombie
	t.ExitCode = exitCode
	t.Accounting.Finish(dispatchAt)
	children := t.Children
	t.Children = nil
	t.MemorySet.RecycleDataPages()
	t.Mu.Unlock()

	if initProc != nil {
		initProc.Mu.Lock()
		for _, c := range children {
			c.Mu.Lock()
			c.Parent = initProc
			c.Mu.Unlock()
			initProc.Children = append(initProc.Children, c)
		}
		initProc.Mu.Unlock()
	}

	var unused trapctx.TaskContext
	SwitchFunc(&unused, proc.idleTaskCx)
}
