// Package klog is the kernel's console logger. It is gated by a maximum
// level the way biscuit's fs package gates disk tracing behind a
// bdev_debug flag and stats gates counters behind a Stats const, except
// the level is read from the LOG environment variable (spec.md §6)
// rather than being a compile-time constant, matching
// original_source/os/src/logging.rs.
package klog

import (
	"fmt"
	"os"
	"sync"
)

// Level orders log severities from most to least critical.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "?"
	}
}

func (l Level) colorCode() int {
	switch l {
	case LevelError:
		return 31
	case LevelWarn:
		return 93
	case LevelInfo:
		return 34
	case LevelDebug:
		return 32
	case LevelTrace:
		return 90
	default:
		return 0
	}
}

var (
	mu  sync.Mutex
	max = parseLevel(os.Getenv("LOG"))
)

func parseLevel(s string) Level {
	switch s {
	case "error", "ERROR":
		return LevelError
	case "warn", "WARN":
		return LevelWarn
	case "debug", "DEBUG":
		return LevelDebug
	case "trace", "TRACE":
		return LevelTrace
	case "info", "INFO", "":
		return LevelInfo
	default:
		return LevelInfo
	}
}

// SetMaxLevel overrides the level derived from LOG; used by tests and by
// boot code that wants to force a level regardless of environment.
func SetMaxLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	max = l
}

// MaxLevel returns the currently configured maximum level.
func MaxLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return max
}

// Printf logs a message at lvl if lvl is at or above the configured
// maximum severity (i.e. numerically <=).
func Printf(lvl Level, format string, args ...interface{}) {
	mu.Lock()
	cur := max
	mu.Unlock()
	if lvl > cur {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Printf("\x1b[%dm[%5s][kernel] %s\x1b[0m\n", lvl.colorCode(), lvl.String(), msg)
}

func Error(format string, args ...interface{}) { Printf(LevelError, format, args...) }
func Warn(format string, args ...interface{})  { Printf(LevelWarn, format, args...) }
func Info(format string, args ...interface{})  { Printf(LevelInfo, format, args...) }
func Debug(format string, args ...interface{}) { Printf(LevelDebug, format, args...) }
func Trace(format string, args ...interface{}) { Printf(LevelTrace, format, args...) }
