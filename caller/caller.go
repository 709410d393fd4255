// Package caller renders the active Go call stack as a diagnostic
// string, grounded on biscuit's caller.Callerdump (a runtime.Caller
// loop printed straight to stdout). Adapted from a print-in-place
// helper into one that returns the text, so the fatal-panic path
// (kerrors) can fold it into the single diagnostic a panic carries
// (spec.md §7: "panic with diagnostic").
package caller

import (
	"fmt"
	"runtime"
	"strings"
)

// Dump returns the call stack starting skip frames above its own
// caller, one "file:line" per line, innermost frame first.
func Dump(skip int) string {
	var b strings.Builder
	for i := skip + 1; ; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fmt.Fprintf(&b, "\t%s:%d\n", file, line)
	}
	return b.String()
}
