// Package accnt tracks per-task CPU time, grounded on biscuit's
// accnt.Accnt_t (user/system nanosecond counters behind a mutex),
// trimmed to what a cooperative single-hart kernel can actually
// measure: sched charges a task's dispatch-to-yield interval through
// Utadd on every voluntary suspend and folds the final quantum in with
// Finish on exit (task.Waitpid then merges a reaped child's Accnt_t
// into its parent's with Add, mirroring wait4's rusage accumulation).
// Biscuit's Io_time/Sleep_time hooks are dropped: this kernel has no
// blocking I/O or timer-sleep syscall to subtract wait time from.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"

	"rv39os/util"
)

// Accnt_t accumulates one task's CPU-time usage. The zero value is
// ready to use. The embedded mutex only guards Add/Fetch, which need a
// consistent snapshot across both counters; Utadd/Systadd are plain
// atomic adds so sched can charge time without contending on it.
type Accnt_t struct {
	Userns int64 // nanoseconds of user-mode time
	Sysns  int64 // nanoseconds of system-mode time
	sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int) {
	atomic.AddInt64(&a.Userns, int64(delta))
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int) {
	atomic.AddInt64(&a.Sysns, int64(delta))
}

// Now returns the current time in nanoseconds, in the same units Utadd
// and Finish expect their arguments in.
func (a *Accnt_t) Now() int {
	return int(time.Now().UnixNano())
}

// Finish adds the time elapsed since inttime to the system-time
// counter, for the final quantum a task runs before it exits.
func (a *Accnt_t) Finish(inttime int) {
	a.Systadd(a.Now() - inttime)
}

// Add merges n's counters into a's, accumulating a reaped child's CPU
// usage into its parent the way wait4's rusage does.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += n.Userns
	a.Sysns += n.Sysns
	a.Unlock()
}

// Fetch returns a consistent snapshot of a's counters encoded as an
// rusage-style pair of (seconds, microseconds) timevals, suitable for
// copying to user space by a future rusage/taskinfo syscall.
func (a *Accnt_t) Fetch() []uint8 {
	a.Lock()
	defer a.Unlock()
	return a.toRusage()
}

func (a *Accnt_t) toRusage() []uint8 {
	const words = 4
	ret := make([]uint8, words*8)
	totv := func(nano int64) (int, int) {
		secs := int(nano / 1e9)
		usecs := int((nano % 1e9) / 1000)
		return secs, usecs
	}
	off := 0
	s, us := totv(a.Userns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	off += 8
	s, us = totv(a.Sysns)
	util.Writen(ret, 8, off, s)
	off += 8
	util.Writen(ret, 8, off, us)
	return ret
}
