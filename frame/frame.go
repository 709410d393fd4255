// Package frame is the kernel's physical frame allocator: a stack-style
// allocator over the range [ekernelCeil, memEndFloor) plus the
// ownership-tracking FrameTracker handed out by every allocation
// (spec.md §4.2). It is grounded on biscuit's mem.Physmem_t free-list
// shape (mem/mem.go), simplified to the non-refcounted current/end/
// recycled stack allocator that
// original_source/os/src/mm/frame_allocator.rs implements, including its
// exact validity assertion on dealloc.
package frame

import (
	"sync"

	"rv39os/addr"
	"rv39os/kerrors"
	"rv39os/klog"
	"rv39os/rvconf"
)

// Allocator is a stack-style physical frame allocator serialized by a
// single lock, simulating physical RAM as a byte arena indexed by page
// number relative to the allocator's start.
type Allocator struct {
	mu sync.Mutex

	start    addr.PhysPageNum
	current  uint64
	end      uint64
	recycled []uint64

	mem []byte
}

// NewAllocator constructs an allocator over the page range [start, end).
// It owns (end-start)*PageSize bytes of simulated physical memory.
func NewAllocator(start, end addr.PhysPageNum) *Allocator {
	klog.Info("frame: memory left %#x, right %#x", start.Uint64(), end.Uint64())
	n := end.Uint64() - start.Uint64()
	a := &Allocator{
		start:   start,
		current: start.Uint64(),
		end:     end.Uint64(),
		mem:     make([]byte, n*rvconf.PageSize),
	}
	klog.Info("frame: %d physical frames available", n)
	return a
}

// Tracker owns exactly one allocated physical frame. Callers must call
// Recycle when done with it; there is no finalizer-driven release, so
// double-recycling is guarded explicitly rather than relied upon.
type Tracker struct {
	PPN   addr.PhysPageNum
	alloc *Allocator
	freed bool
}

// Bytes returns the page-sized byte slice backing this frame.
func (t *Tracker) Bytes() []byte {
	return t.alloc.bytesFor(t.PPN)
}

// Recycle returns the frame to its allocator. It is a fatal kernel
// invariant violation to recycle the same tracker twice.
func (t *Tracker) Recycle() {
	if t.freed {
		kerrors.Fatalf("frame", "double free of tracker ppn=%#x", t.PPN.Uint64())
	}
	t.freed = true
	t.alloc.dealloc(t.PPN)
}

// Global is the kernel's singleton physical frame allocator, grounded on
// mem.Physmem (mem/mem.go)'s package-level `var Physmem = &Physmem_t{}`
// pattern. Non-owning page-table views reconstructed from a satp token
// have no allocator reference of their own and so read physical memory
// through this singleton, mirroring frame_allocator.rs's FRAME_ALLOCATOR
// static.
var Global *Allocator

// Init constructs the singleton allocator over the page range
// [start, end).
func Init(start, end addr.PhysPageNum) {
	Global = NewAllocator(start, end)
}

// Alloc allocates one frame from the singleton allocator.
func Alloc() (*Tracker, bool) { return Global.Alloc() }

// BytesAt returns the page-sized byte slice backing ppn in the singleton
// allocator's simulated physical memory.
func BytesAt(ppn addr.PhysPageNum) []byte { return Global.bytesFor(ppn) }

func (a *Allocator) bytesFor(p addr.PhysPageNum) []byte {
	idx := p.Uint64() - a.start.Uint64()
	off := idx * rvconf.PageSize
	return a.mem[off : off+rvconf.PageSize : off+rvconf.PageSize]
}

// Alloc pops a recycled frame if one is available, else bumps current.
// It reports ok=false when the allocator is exhausted (spec.md §4.2
// models this as an Option, not a fatal condition).
func (a *Allocator) Alloc() (*Tracker, bool) {
	a.mu.Lock()
	var ppn uint64
	if n := len(a.recycled); n > 0 {
		ppn = a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
	} else if a.current == a.end {
		a.mu.Unlock()
		return nil, false
	} else {
		ppn = a.current
		a.current++
	}
	a.mu.Unlock()

	t := &Tracker{PPN: addr.NewPhysPageNum(ppn), alloc: a}
	buf := t.Bytes()
	for i := range buf {
		buf[i] = 0
	}
	klog.Trace("frame: alloc tracker ppn=%#x", ppn)
	return t, true
}

func (a *Allocator) dealloc(ppn addr.PhysPageNum) {
	v := ppn.Uint64()
	a.mu.Lock()
	defer a.mu.Unlock()

	if v >= a.current {
		kerrors.Fatalf("frame", "ppn=%#x has not been allocated", v)
	}
	for _, r := range a.recycled {
		if r == v {
			kerrors.Fatalf("frame", "ppn=%#x has not been allocated", v)
		}
	}
	klog.Trace("frame: dealloc tracker ppn=%#x", v)
	a.recycled = append(a.recycled, v)
}
