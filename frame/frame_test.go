package frame

import (
	"testing"

	"rv39os/addr"
)

func newTestAllocator() *Allocator {
	return NewAllocator(addr.NewPhysPageNum(0), addr.NewPhysPageNum(4))
}

func TestAllocExhaustsThenRecycles(t *testing.T) {
	a := newTestAllocator()
	var trackers []*Tracker
	for i := 0; i < 4; i++ {
		tr, ok := a.Alloc()
		if !ok {
			t.Fatalf("alloc %d: expected success", i)
		}
		trackers = append(trackers, tr)
	}
	if _, ok := a.Alloc(); ok {
		t.Fatal("expected allocator to be exhausted")
	}

	trackers[0].Recycle()
	tr, ok := a.Alloc()
	if !ok {
		t.Fatal("expected alloc to succeed after recycle")
	}
	if tr.PPN != trackers[0].PPN {
		t.Fatalf("expected recycled ppn %v reused, got %v", trackers[0].PPN, tr.PPN)
	}
}

func TestAllocZeroesFrame(t *testing.T) {
	a := newTestAllocator()
	tr, ok := a.Alloc()
	if !ok {
		t.Fatal("expected alloc to succeed")
	}
	b := tr.Bytes()
	b[0] = 0xff
	tr.Recycle()

	tr2, ok := a.Alloc()
	if !ok {
		t.Fatal("expected alloc to succeed")
	}
	if tr2.Bytes()[0] != 0 {
		t.Fatal("expected reallocated frame to be zeroed")
	}
}

func TestDoubleRecyclePanics(t *testing.T) {
	a := newTestAllocator()
	tr, _ := a.Alloc()
	tr.Recycle()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double recycle")
		}
	}()
	tr.Recycle()
}

func TestDeallocUnallocatedPanics(t *testing.T) {
	a := newTestAllocator()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on dealloc of never-allocated ppn")
		}
	}()
	a.dealloc(addr.NewPhysPageNum(3))
}
