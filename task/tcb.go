package task

import (
	"sync"

	"rv39os/accnt"
	"rv39os/addr"
	"rv39os/defs"
	"rv39os/fd"
	"rv39os/memset"
	"rv39os/rvconf"
	"rv39os/trapctx"
)

// Status is one of a task's three lifecycle states (spec.md §4.6). The
// pre-multitasking UnInit/Exited states named by spec.md belong to an
// earlier single-app stage this kernel never has and are not modeled.
type Status int

const (
	Ready Status = iota
	Running
	Zombie
)

// OpenFile is an alias for the fd package's slot-entry behavior, kept
// as a name in this package since spec.md's TCB field list (§3) calls
// it the fd table without naming the fd package directly.
type OpenFile = fd.Entry

// TaskControlBlock is a task's control block: the immutable PID/kernel
// stack pair plus the mutable state listed in original_source's
// TaskControlBlockInner. Mutation is serialized by Mu the way biscuit's
// Vm_t and Accnt_t each guard their own state with an embedded mutex,
// rather than Rust's single exclusive-borrow cell.
type TaskControlBlock struct {
	Pid         *PidHandle
	KernelStack *KernelStack

	Mu        sync.Mutex
	TrapCxPPN addr.PhysPageNum
	BaseSize  uint64
	TaskCx    *trapctx.TaskContext
	Status    Status
	MemorySet *memset.MemorySet
	Parent    *TaskControlBlock
	Children  []*TaskControlBlock
	ExitCode  int

	FdTable *fd.Table

	Signals       Flags
	SignalMask    Flags
	HandlingSig   int
	SignalActions [32]Action
	Killed        bool
	Frozen        bool

	Accounting accnt.Accnt_t
}

// TrapContext returns a pointer to the task's live trap context, backed
// by its TrapCxPPN frame.
func (t *TaskControlBlock) TrapContext() *trapctx.TrapContext {
	return (*trapctx.TrapContext)(ptrAt(t.TrapCxPPN))
}

// UserToken returns this task's address space's satp token.
func (t *TaskControlBlock) UserToken() uint64 {
	return t.MemorySet.Token()
}

// IsZombie reports whether the task has exited and not yet been reaped.
func (t *TaskControlBlock) IsZombie() bool {
	t.Mu.Lock()
	defer t.Mu.Unlock()
	return t.Status == Zombie
}

// trapContextVPN is the fixed virtual page holding every task's
// TRAP_CONTEXT frame.
func trapContextVPN() addr.VirtPageNum {
	return addr.NewVirtAddr(rvconf.TrapContextVA).Floor()
}

// New constructs a fresh, Ready task from an ELF image, entering at the
// ELF's entry point. trampolinePPN/kernelSatp/trapHandler/restoreEntry
// are supplied by (out-of-scope) boot code.
func New(elfImage []byte, trampolinePPN addr.PhysPageNum, kernelSatp, trapHandler, restoreEntry uint64) *TaskControlBlock {
	ms, userSP, entry, err := memset.FromELF(elfImage, trampolinePPN)
	if err != nil {
		panic(err)
	}
	e, ok := ms.PageTable().Translate(trapContextVPN())
	if !ok {
		panic("task: TRAP_CONTEXT not mapped after FromELF")
	}

	pid := AllocPid()
	kstack := NewKernelStack(pid.PID)
	kstackTop := kstack.Top()

	t := &TaskControlBlock{
		Pid:         pid,
		KernelStack: kstack,
		TrapCxPPN:   e.PPN(),
		BaseSize:    userSP,
		TaskCx:      trapctx.GotoRestore(kstackTop, restoreEntry),
		Status:      Ready,
		MemorySet:   ms,
		FdTable:     fd.NewTable(nil, nil, nil), // 0=stdin, 1=stdout, 2=stderr
	}
	*t.TrapContext() = *trapctx.AppInit(entry, userSP, kernelSatp, kstackTop, trapHandler, 0)
	return t
}

// Fork clones t into a new child task: eager memory-set copy, a fresh
// PID and kernel stack, a shared-reference fd table, and inherited
// signal mask/actions (spec.md §4.6).
func (t *TaskControlBlock) Fork() *TaskControlBlock {
	t.Mu.Lock()
	defer t.Mu.Unlock()

	childMS := memset.FromExistedUser(t.MemorySet)
	e, ok := childMS.PageTable().Translate(trapContextVPN())
	if !ok {
		panic("task: TRAP_CONTEXT not mapped in forked memory set")
	}

	pid := AllocPid()
	kstack := NewKernelStack(pid.PID)
	kstackTop := kstack.Top()

	child := &TaskControlBlock{
		Pid:           pid,
		KernelStack:   kstack,
		TrapCxPPN:     e.PPN(),
		BaseSize:      t.BaseSize,
		TaskCx:        trapctx.GotoRestore(kstackTop, t.TaskCx.RA),
		Status:        Ready,
		MemorySet:     childMS,
		Parent:        t,
		FdTable:       t.FdTable.Clone(),
		SignalMask:    t.SignalMask,
		HandlingSig:   -1,
		SignalActions: t.SignalActions,
	}
	t.Children = append(t.Children, child)

	*child.TrapContext() = *trapctx.ForkChild(t.TrapContext(), kstackTop)
	return child
}

// Exec rebuilds t's memory set from a new ELF image, pushes argv and a
// NULL terminator onto the freshly allocated user stack 8-byte aligned,
// and arranges for x[10]=argc, x[11]=argv_base on return to user mode
// (spec.md §4.6).
func (t *TaskControlBlock) Exec(elfImage []byte, argv []string, trampolinePPN addr.PhysPageNum, kernelSatp, trapHandler uint64) {
	ms, userSP, entry, err := memset.FromELF(elfImage, trampolinePPN)
	if err != nil {
		panic(err)
	}
	e, ok := ms.PageTable().Translate(trapContextVPN())
	if !ok {
		panic("task: TRAP_CONTEXT not mapped after FromELF")
	}

	token := ms.Token()
	userSP -= uint64(len(argv)+1) * 8
	argvBase := userSP
	argvPtrs := make([]uint64, len(argv)+1)

	sp := userSP
	for i, a := range argv {
		b := append([]byte(a), 0)
		sp -= uint64(len(b))
		argvPtrs[i] = sp
		writeUserBytes(token, addr.NewVirtAddr(sp), b)
	}
	argvPtrs[len(argv)] = 0
	sp -= sp % 8

	t.Mu.Lock()
	t.MemorySet = ms
	t.TrapCxPPN = e.PPN()
	tc := trapctx.AppInit(entry, sp, kernelSatp, t.KernelStack.Top(), trapHandler, 0)
	tc.X[10] = uint64(len(argv))
	tc.X[11] = argvBase
	writeArgvTable(token, addr.NewVirtAddr(argvBase), argvPtrs)
	*t.TrapContext() = *tc
	t.Mu.Unlock()
}

// Waitpid looks for a child of t matching pid (or any child when pid is
// -1). It returns defs.WaitNoChild if t has no matching child at all,
// defs.WaitNotZombie if a matching child exists but none has exited
// yet, or the reaped child's pid and exit code once a matching zombie
// is removed from t's children list (spec.md §4.6). Reaping also folds
// the child's CPU-time accounting into t's own, mirroring wait4's
// rusage accumulation (spec.md §5.11).
func (t *TaskControlBlock) Waitpid(pid int) (foundPid int, exitCode int) {
	t.Mu.Lock()
	defer t.Mu.Unlock()

	matched := false
	for _, c := range t.Children {
		if pid != -1 && c.Pid.PID != pid {
			continue
		}
		matched = true
		if c.IsZombie() {
			idx := -1
			for i, cc := range t.Children {
				if cc == c {
					idx = i
					break
				}
			}
			t.Children = append(t.Children[:idx], t.Children[idx+1:]...)

			c.Mu.Lock()
			code := c.ExitCode
			c.Mu.Unlock()

			t.Accounting.Add(&c.Accounting)
			c.Pid.Recycle()
			return c.Pid.PID, code
		}
	}
	if !matched {
		return defs.WaitNoChild, 0
	}
	return defs.WaitNotZombie, 0
}
