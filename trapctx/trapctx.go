// Package trapctx defines the two register-save frames consumed and
// produced by the trap entry/exit assembly and the __switch primitive
// (spec.md §5, §6). Both are out-of-scope external collaborators —
// this package only specifies the layouts and the constructors the Go
// side of the kernel needs to populate them.
package trapctx

// TrapContext is a task's saved trap frame: general-purpose registers,
// supervisor status, the trapped pc, and enough kernel-side context
// (satp token, kernel stack pointer, trap handler address) for the
// trampoline to re-enter the kernel on the next trap. Field order
// matches spec.md §6's "packed without padding" layout exactly, since
// the (out-of-scope) assembly indexes into this struct by fixed offset.
type TrapContext struct {
	X           [32]uint64 // general-purpose registers x0..x31
	Sstatus     uint64     // supervisor status register
	Sepc        uint64     // trapped program counter
	KernelSatp  uint64     // kernel address space's satp token
	KernelSp    uint64     // kernel stack pointer to resume on trap
	TrapHandler uint64     // address of the kernel's trap_handler entry
}

// AppInit builds the initial trap context for a freshly loaded task: the
// stack pointer in x[2], sepc at the entry point, sstatus set to
// sstatusUser as given, and the kernel-side fields needed to trap back in.
func AppInit(entry, userSP, kernelSatp, kernelSP, trapHandler uint64, sstatusUser uint64) *TrapContext {
	tc := &TrapContext{
		Sstatus:     sstatusUser,
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSp:    kernelSP,
		TrapHandler: trapHandler,
	}
	tc.X[2] = userSP
	return tc
}

// ForkChild derives a child's trap context from its parent's: identical
// except x[10] (the syscall return-value register) is zeroed — a forked
// child observes fork() returning 0 — and the kernel stack pointer is
// rewritten to the child's own kernel stack.
func ForkChild(parent *TrapContext, childKernelSP uint64) *TrapContext {
	child := *parent
	child.X[10] = 0
	child.KernelSp = childKernelSP
	return &child
}

// TaskContext holds the callee-saved registers plus the return address
// that __switch transfers between two tasks. RA is initialized to the
// address of a task's entry trampoline (__restore for a fresh task) so
// that the first switch into it resumes trap return instead of a normal
// call return.
type TaskContext struct {
	RA uint64     // return address __switch resumes at
	SP uint64     // kernel stack pointer
	S  [12]uint64 // callee-saved registers s0..s11
}

// GotoRestore builds a TaskContext that, when switched into, resumes
// execution at the trap-return assembly (__restore) with kernelSP as its
// stack — the state a newly created task starts in.
func GotoRestore(kernelSP, restoreEntry uint64) *TaskContext {
	return &TaskContext{RA: restoreEntry, SP: kernelSP}
}
