// Package task implements the task control block and its supporting PID
// allocator and kernel-stack management (spec.md §4.5, §4.6). Grounded
// on original_source/os/src/task/task.rs for the authoritative field
// list and fork/exec semantics, and on biscuit's resource-counter idiom
// (monotonic id plus free list, as seen in accnt/limits) for PID
// recycling.
package task

import (
	"sync"

	"rv39os/addr"
	"rv39os/memset"
	"rv39os/rvconf"
)

// KernelSpace is the kernel's own address space, shared by every task's
// kernel stack. Boot code must set it — typically to the result of
// memset.NewKernelSpace — before any task is created.
var KernelSpace *memset.MemorySet

type pidAllocator struct {
	mu       sync.Mutex
	current  int
	recycled []int
}

var pidAlloc = &pidAllocator{current: 0}

// PidHandle owns one allocated PID; Recycle returns it to the free list.
type PidHandle struct {
	PID int
}

func (a *pidAllocator) alloc() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.recycled); n > 0 {
		pid := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return pid
	}
	pid := a.current
	a.current++
	return pid
}

func (a *pidAllocator) dealloc(pid int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recycled = append(a.recycled, pid)
}

// AllocPid reserves a fresh PID.
func AllocPid() *PidHandle {
	return &PidHandle{PID: pidAlloc.alloc()}
}

// Recycle returns the PID to the allocator's free list. Idempotent
// recycling is the caller's responsibility; the allocator does not
// itself guard against it (mirroring the Rust original's Drop-once
// ownership, which this package's caller must preserve by construction).
func (h *PidHandle) Recycle() {
	pidAlloc.dealloc(h.PID)
}

// KernelStack is the virtual range [top-KSTACK, top) of the kernel
// address space reserved for one task's kernel-mode execution, with a
// one-page guard below it.
type KernelStack struct {
	pid int
}

// NewKernelStack inserts a framed RW area into KernelSpace for pid's
// kernel stack and returns a handle to it.
func NewKernelStack(pid int) *KernelStack {
	top := rvconf.KernelStackTop(pid)
	bottom := rvconf.KernelStackBottom(pid)
	KernelSpace.InsertFramedArea(addr.NewVirtAddr(bottom), addr.NewVirtAddr(top),
		memset.PermR|memset.PermW)
	return &KernelStack{pid: pid}
}

// Top returns the virtual address immediately above this kernel stack.
func (k *KernelStack) Top() uint64 { return rvconf.KernelStackTop(k.pid) }
