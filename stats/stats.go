// Package stats implements runtime-toggleable kernel counters,
// grounded on biscuit's stats.go (Counter_t/Cycles_t gated behind a
// Stats/Timing const so the increment compiles to nothing when
// disabled). Adapted from a profiling aid for biscuit's network/AHCI
// hot paths into counters for this kernel's own hot paths: block-cache
// hit/miss/eviction (blockcache) and scheduler dispatch count (sched),
// surfaced by the diagnostic syscall (spec.md §6 id 22, "ls/taskinfo").
package stats

import (
	"strconv"
	"sync/atomic"
)

// Enabled gates every counter increment below to a no-op when false,
// mirroring biscuit's Stats const (flipped at build time there; a
// plain var here since this module is not freestanding).
var Enabled = true

// Counter is a statistical counter, safe for concurrent increment.
type Counter struct {
	n int64
}

// Inc increments the counter by one if counting is enabled.
func (c *Counter) Inc() {
	if Enabled {
		atomic.AddInt64(&c.n, 1)
	}
}

// Load returns the counter's current value.
func (c *Counter) Load() int64 {
	return atomic.LoadInt64(&c.n)
}

// String renders the counter for diagnostic output.
func (c *Counter) String() string {
	return strconv.FormatInt(c.Load(), 10)
}
