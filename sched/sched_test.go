package sched

import (
	"testing"

	"rv39os/addr"
	"rv39os/frame"
	"rv39os/memset"
	"rv39os/task"
	"rv39os/trapctx"
)

func resetForTest() {
	readyQueue = newReadyQueue()
	proc = &processor{idleTaskCx: &trapctx.TaskContext{}}
	SwitchFunc = func(current, next *trapctx.TaskContext) {}
	frame.Init(addr.NewPhysPageNum(0), addr.NewPhysPageNum(4096))
}

func emptyMemorySetForTest() *memset.MemorySet {
	return memset.NewMemorySet()
}

func newFakeTask() *task.TaskControlBlock {
	return &task.TaskControlBlock{TaskCx: &trapctx.TaskContext{}}
}

func TestReadyQueueFIFOOrder(t *testing.T) {
	resetForTest()
	a, b, c := newFakeTask(), newFakeTask(), newFakeTask()
	AddTask(a)
	AddTask(b)
	AddTask(c)

	if got := FetchTask(); got != a {
		t.Fatal("expected FIFO order: a first")
	}
	if got := FetchTask(); got != b {
		t.Fatal("expected FIFO order: b second")
	}
	if got := FetchTask(); got != c {
		t.Fatal("expected FIFO order: c third")
	}
	if got := FetchTask(); got != nil {
		t.Fatal("expected empty queue to yield nil")
	}
}

func TestSuspendCurrentRequeuesAsReady(t *testing.T) {
	resetForTest()
	cur := newFakeTask()
	cur.Status = task.Running
	proc.current = cur
	proc.dispatchAt = cur.Accounting.Now()

	SuspendCurrentAndRunNext()

	if cur.Status != task.Ready {
		t.Fatalf("status = %v, want Ready", cur.Status)
	}
	if CurrentTask() != nil {
		t.Fatal("expected current task slot to be cleared")
	}
	if got := FetchTask(); got != cur {
		t.Fatal("expected suspended task back in the ready queue")
	}
	if cur.Accounting.Userns <= 0 {
		t.Fatal("expected suspend to charge the quantum to user time")
	}
}

func TestExitCurrentMarksZombieAndReparents(t *testing.T) {
	resetForTest()
	initProc := newFakeTask()
	parent := newFakeTask()
	child := newFakeTask()
	child.Parent = parent
	parent.Children = []*task.TaskControlBlock{child}
	parent.Status = task.Running
	parent.MemorySet = emptyMemorySetForTest()
	proc.current = parent
	proc.dispatchAt = parent.Accounting.Now()

	ExitCurrentAndRunNext(7, initProc)

	if parent.Accounting.Sysns <= 0 {
		t.Fatal("expected exit to charge the final quantum to system time")
	}

	if parent.Status != task.Zombie {
		t.Fatalf("status = %v, want Zombie", parent.Status)
	}
	if parent.ExitCode != 7 {
		t.Fatalf("exit code = %d, want 7", parent.ExitCode)
	}
	if len(parent.Children) != 0 {
		t.Fatal("expected exited task's children list cleared")
	}
	if child.Parent != initProc {
		t.Fatal("expected child reparented to init")
	}
	if len(initProc.Children) != 1 || initProc.Children[0] != child {
		t.Fatal("expected init to adopt the orphaned child")
	}
}
