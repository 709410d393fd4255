// Package fd implements a per-task table of open file descriptors:
// sequential slot allocation, POSIX-style dup (two descriptors sharing
// one open file), and fork's sharing-not-copying clone (spec.md §4.6,
// §6 syscalls 24/57). Grounded on biscuit's fd.Fd_t (permission bits
// plus an Fops reference) and fd.Copyfd (reopen-and-install-at-new-slot
// duplication), adapted from a single Fd_t pointer table into a generic
// Entry table so the core does not depend on the concrete console/pipe/
// regular-file implementations named out of scope by spec.md §1.
package fd

import "sync"

// Entry is the minimal file-like behavior a table slot needs. The
// concrete console/pipe/regular-file implementations behind it are
// external collaborators (spec.md §1).
type Entry interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
}

// Table is one task's fd table: a sequential slot array, serialized by
// its own lock the way biscuit's Cwd_t guards chdir with its own mutex
// rather than the whole TCB's.
type Table struct {
	mu      sync.Mutex
	entries []Entry
}

// NewTable returns a table preloaded with stdio, one slot per argument,
// fds 0/1/2 by convention; a nil entry reserves the slot without
// backing it (the concrete console implementation is out of scope).
func NewTable(stdio ...Entry) *Table {
	t := &Table{entries: make([]Entry, len(stdio))}
	copy(t.entries, stdio)
	return t
}

// Len reports the table's current slot count.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Get returns the entry at fdNum, or ok=false if fdNum is out of range
// or the slot is closed.
func (t *Table) Get(fdNum int) (e Entry, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fdNum < 0 || fdNum >= len(t.entries) || t.entries[fdNum] == nil {
		return nil, false
	}
	return t.entries[fdNum], true
}

// Alloc installs e at the lowest-numbered closed slot, growing the
// table if every slot is occupied, and returns that slot's number.
func (t *Table) Alloc(e Entry) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocLocked(e)
}

func (t *Table) allocLocked(e Entry) int {
	for i, cur := range t.entries {
		if cur == nil {
			t.entries[i] = e
			return i
		}
	}
	t.entries = append(t.entries, e)
	return len(t.entries) - 1
}

// Dup installs a second reference to fdNum's entry at the lowest free
// slot (spec.md §6 syscall 24: "duplicate fd, return new fd or -1"),
// mirroring biscuit's Copyfd without the reopen step a shared-reference
// Entry does not need.
func (t *Table) Dup(fdNum int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fdNum < 0 || fdNum >= len(t.entries) || t.entries[fdNum] == nil {
		return 0, false
	}
	return t.allocLocked(t.entries[fdNum]), true
}

// Close closes and clears fdNum's slot (spec.md §6 syscall 57).
func (t *Table) Close(fdNum int) error {
	t.mu.Lock()
	e, ok := func() (Entry, bool) {
		if fdNum < 0 || fdNum >= len(t.entries) || t.entries[fdNum] == nil {
			return nil, false
		}
		return t.entries[fdNum], true
	}()
	if ok {
		t.entries[fdNum] = nil
	}
	t.mu.Unlock()
	if !ok {
		return errBadFd
	}
	return e.Close()
}

// Clone returns a table sharing the same Entry references as t, used
// by fork: spec.md §4.6 "copies the fd table by sharing file
// references" — NOT biscuit's Copyfd-per-slot reopen, since this
// kernel's Non-goals exclude refcounted backing-store duplication.
func (t *Table) Clone() *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := &Table{entries: make([]Entry, len(t.entries))}
	copy(c.entries, t.entries)
	return c
}

type errBadFdType struct{}

func (errBadFdType) Error() string { return "fd: bad file descriptor" }

var errBadFd = errBadFdType{}
