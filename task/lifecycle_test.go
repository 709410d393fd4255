package task

import (
	"testing"

	"rv39os/defs"
)

// TestForkWaitExit exercises scenario S1 (spec.md §8): an init task
// forks a child, the child exits with code 42, and the parent's
// Waitpid returns the child's pid, the exit code, and removes the
// child from its children list.
func TestForkWaitExit(t *testing.T) {
	tramp := setup(t)
	img := buildMinimalELF(0x1000, 0x1004, []byte{1, 2, 3, 4})
	parent := New(img, tramp, 0xdead, 0x100, 0x200)

	child := parent.Fork()
	childPid := child.Pid.PID

	if n, _ := parent.Waitpid(childPid); n != defs.WaitNotZombie {
		t.Fatalf("waitpid before exit = %d, want WaitNotZombie", n)
	}

	child.Mu.Lock()
	child.Status = Zombie
	child.ExitCode = 42
	child.Accounting.Utadd(1000)
	child.Accounting.Systadd(250)
	child.Mu.Unlock()
	parent.Accounting.Utadd(500)

	gotPid, code := parent.Waitpid(childPid)
	if gotPid != childPid {
		t.Fatalf("waitpid returned pid %d, want %d", gotPid, childPid)
	}
	if code != 42 {
		t.Fatalf("exit code = %d, want 42", code)
	}
	for _, c := range parent.Children {
		if c.Pid.PID == childPid {
			t.Fatal("expected child to be removed from parent's children list")
		}
	}
	if parent.Accounting.Userns != 1500 {
		t.Fatalf("parent Userns after reap = %d, want 1500", parent.Accounting.Userns)
	}
	if parent.Accounting.Sysns != 250 {
		t.Fatalf("parent Sysns after reap = %d, want 250", parent.Accounting.Sysns)
	}
}

func TestWaitpidNoSuchChild(t *testing.T) {
	tramp := setup(t)
	img := buildMinimalELF(0x1000, 0x1004, []byte{1, 2, 3, 4})
	parent := New(img, tramp, 0xdead, 0x100, 0x200)

	if n, _ := parent.Waitpid(999); n != defs.WaitNoChild {
		t.Fatalf("waitpid with no matching child = %d, want WaitNoChild", n)
	}
}
