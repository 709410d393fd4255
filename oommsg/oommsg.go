// Package oommsg carries the kernel's out-of-memory notification,
// grounded on biscuit's own oommsg package (a package-level channel a
// low-memory reaper listens on). This kernel has no reaper or demand
// paging (spec.md §1 Non-goals), so nothing ever blocks waiting for a
// Resume reply; heap.Alloc's exhaustion path only attempts a
// non-blocking send, purely as a diagnostic hook for a test or future
// caller to observe, before taking the fatal path spec.md §7 requires.
package oommsg

// Msg is sent on Ch when an allocator runs out of memory. Need is the
// byte count that could not be satisfied; Resume exists for parity
// with biscuit's reaper protocol but is never read from in this kernel.
type Msg struct {
	Module string
	Need   int
	Resume chan bool
}

// Ch is the process-wide out-of-memory notification channel.
var Ch = make(chan Msg, 1)

// Notify attempts a non-blocking send of m on Ch, reporting whether
// anything was listening. Never blocks: a kernel with no reaper task
// must not stall its fatal-exhaustion path waiting for a receiver.
func Notify(m Msg) (delivered bool) {
	select {
	case Ch <- m:
		return true
	default:
		return false
	}
}
