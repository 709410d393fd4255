// Package kerrors provides the kernel's fatal-invariant-violation path:
// a small diagnostic error type plus a Panic helper, grounded on
// gopher-os's kernel.Error / kernel.Panic two-step pattern
// (other_examples/...goos-e.../kernel).
//
// Recoverable syscall errors use defs.Err_t instead (spec.md §7); this
// package is only for the "fatal kernel invariant violation" branch of
// the error taxonomy: frame double-free, unmapping an invalid VPN,
// mapping an already-valid VPN, block-cache exhaustion, heap
// allocation failure, bitmap double-clear.
package kerrors

import (
	"fmt"

	"rv39os/caller"
)

// Fault describes a fatal kernel invariant violation.
type Fault struct {
	Module  string
	Message string
	Stack   string
}

func (e *Fault) Error() string {
	if e.Stack == "" {
		return fmt.Sprintf("[%s] %s", e.Module, e.Message)
	}
	return fmt.Sprintf("[%s] %s\n%s", e.Module, e.Message, e.Stack)
}

// Panic panics with e. It is the kernel's only response to a fatal
// invariant violation; there is no recovery path (spec.md §7).
func Panic(e *Fault) {
	panic(e)
}

// Fatalf builds a Fault from module and a formatted message, captures
// the caller's stack the way biscuit's fatal paths dump Callerdump
// before halting, and panics with it immediately.
func Fatalf(module, format string, args ...interface{}) {
	Panic(&Fault{
		Module:  module,
		Message: fmt.Sprintf(format, args...),
		Stack:   caller.Dump(1),
	})
}
