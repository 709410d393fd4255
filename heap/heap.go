// Package heap is the kernel's process-wide dynamic-memory allocator,
// backed by a fixed-size arena rather than the Go runtime's own heap
// (spec.md §4.1). It is grounded on
// original_source/os/src/mm/heap_allocator.rs's LockedHeap-over-a-static-
// array shape, reimplemented as a mutex-guarded free-list the way
// mem.Physmem_t (mem/mem.go) guards its own free lists with an embedded
// sync.Mutex.
package heap

import (
	"sync"
	"unsafe"

	"rv39os/kerrors"
	"rv39os/oommsg"
	"rv39os/util"
)

const minBlock = 16

// block is one free region of the arena, identified by its offset from
// the arena's start. The free list is kept sorted and coalesced.
type block struct {
	off, size uintptr
}

// Heap is a single-hart, interrupt-safe bump-and-free-list allocator
// over a caller-supplied fixed-size arena. The zero value is not usable;
// construct with New.
type Heap struct {
	mu     sync.Mutex
	arena  []byte
	free   []block
	module string
}

// New carves a Heap out of arena. module names the heap for diagnostics
// ("kernel" or "user", per spec.md §4.1's two size classes).
func New(module string, arena []byte) *Heap {
	return &Heap{
		arena:  arena,
		free:   []block{{off: 0, size: uintptr(len(arena))}},
		module: module,
	}
}

// Alloc reserves size bytes aligned to align (a power of two) and
// returns a slice over the arena backing them. Out-of-memory is a fatal
// kernel invariant violation (spec.md §7): there is no recoverable path.
func (h *Heap) Alloc(size, align uintptr) []byte {
	if size == 0 {
		size = 1
	}
	size = util.Roundup(size, minBlock)

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, b := range h.free {
		start := util.Roundup(b.off, align)
		pad := start - b.off
		if b.size < pad+size {
			continue
		}
		end := start + size
		tailSize := b.off + b.size - end

		replacement := make([]block, 0, 2)
		if pad > 0 {
			replacement = append(replacement, block{off: b.off, size: pad})
		}
		if tailSize > 0 {
			replacement = append(replacement, block{off: end, size: tailSize})
		}
		h.free = append(h.free[:i], append(replacement, h.free[i+1:]...)...)
		return h.arena[start : start+size : start+size]
	}

	oommsg.Notify(oommsg.Msg{Module: h.module + "-heap", Need: int(size)})
	kerrors.Fatalf(h.module+"-heap", "out of memory: requested %d bytes (align %d)", size, align)
	panic("unreachable")
}

// Free returns a previously allocated region (as returned by Alloc) to
// the free list, coalescing it with adjacent free blocks.
func (h *Heap) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	off := uintptr(unsafe.Pointer(&b[0])) - uintptr(unsafe.Pointer(&h.arena[0]))
	size := util.Roundup(uintptr(cap(b)), minBlock)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.freeLocked(off, size)
}

func (h *Heap) freeLocked(off, size uintptr) {
	nb := block{off: off, size: size}
	i := 0
	for i < len(h.free) && h.free[i].off < nb.off {
		i++
	}
	h.free = append(h.free, block{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = nb
	h.coalesceLocked()
}

func (h *Heap) coalesceLocked() {
	out := h.free[:0]
	for _, b := range h.free {
		if n := len(out); n > 0 && out[n-1].off+out[n-1].size == b.off {
			out[n-1].size += b.size
			continue
		}
		out = append(out, b)
	}
	h.free = out
}

// Len reports the arena's total size in bytes.
func (h *Heap) Len() int { return len(h.arena) }
