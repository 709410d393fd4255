package fd

import "testing"

type fakeEntry struct {
	closed bool
}

func (f *fakeEntry) Read(buf []byte) (int, error)  { return 0, nil }
func (f *fakeEntry) Write(buf []byte) (int, error) { return len(buf), nil }
func (f *fakeEntry) Close() error                  { f.closed = true; return nil }

func TestAllocLowestFreeSlot(t *testing.T) {
	tb := NewTable(&fakeEntry{}, &fakeEntry{}, &fakeEntry{})
	e := &fakeEntry{}
	if got := tb.Alloc(e); got != 3 {
		t.Fatalf("alloc on full stdio = %d, want 3", got)
	}
	if err := tb.Close(1); err != nil {
		t.Fatalf("close stdout slot: %v", err)
	}
	e2 := &fakeEntry{}
	if got := tb.Alloc(e2); got != 1 {
		t.Fatalf("alloc after closing slot 1 = %d, want 1", got)
	}
}

func TestDupSharesEntry(t *testing.T) {
	tb := NewTable()
	e := &fakeEntry{}
	orig := tb.Alloc(e)

	dup, ok := tb.Dup(orig)
	if !ok {
		t.Fatal("expected dup of a valid fd to succeed")
	}
	if dup == orig {
		t.Fatal("expected dup to return a new fd number")
	}

	got, _ := tb.Get(dup)
	if got != e {
		t.Fatal("expected dup'd fd to share the same entry")
	}

	if _, ok := tb.Dup(99); ok {
		t.Fatal("expected dup of an invalid fd to fail")
	}
}

func TestCloseClearsSlotAndInvokesEntry(t *testing.T) {
	tb := NewTable()
	e := &fakeEntry{}
	n := tb.Alloc(e)

	if err := tb.Close(n); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !e.closed {
		t.Fatal("expected entry.Close to be invoked")
	}
	if _, ok := tb.Get(n); ok {
		t.Fatal("expected slot to be cleared after close")
	}
	if err := tb.Close(n); err == nil {
		t.Fatal("expected double-close to error")
	}
}

func TestCloneSharesEntriesNotStruct(t *testing.T) {
	tb := NewTable()
	e := &fakeEntry{}
	n := tb.Alloc(e)

	clone := tb.Clone()
	got, ok := clone.Get(n)
	if !ok || got != e {
		t.Fatal("expected clone to share the parent's entry references")
	}

	clone.Alloc(&fakeEntry{})
	if tb.Len() == clone.Len() {
		t.Fatal("expected clone's table to be independent of the parent's slot array")
	}
}
