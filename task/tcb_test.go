package task

import (
	"encoding/binary"
	"testing"

	"rv39os/addr"
	"rv39os/frame"
	"rv39os/memset"
	"rv39os/rvconf"
)

func buildMinimalELF(vaddr, entry uint64, payload []byte) []byte {
	const ehsize = 64
	const phentsize = 56
	phoff := uint64(ehsize)
	dataOff := phoff + phentsize
	buf := make([]byte, dataOff+uint64(len(payload)))

	copy(buf[0:4], []byte{0x7f, 'E', 'L', 'F'})
	buf[4] = 2
	buf[5] = 1
	buf[6] = 1
	le := binary.LittleEndian
	le.PutUint16(buf[16:], 2)
	le.PutUint16(buf[18:], 0xf3)
	le.PutUint32(buf[20:], 1)
	le.PutUint64(buf[24:], entry)
	le.PutUint64(buf[32:], phoff)
	le.PutUint16(buf[52:], ehsize)
	le.PutUint16(buf[54:], phentsize)
	le.PutUint16(buf[56:], 1)

	ph := buf[phoff:]
	le.PutUint32(ph[0:], 1)
	le.PutUint32(ph[4:], 5)
	le.PutUint64(ph[8:], dataOff)
	le.PutUint64(ph[16:], vaddr)
	le.PutUint64(ph[24:], vaddr)
	le.PutUint64(ph[32:], uint64(len(payload)))
	le.PutUint64(ph[40:], uint64(len(payload)))
	le.PutUint64(ph[48:], rvconf.PageSize)

	copy(buf[dataOff:], payload)
	return buf
}

func setup(t *testing.T) (trampoline addr.PhysPageNum) {
	t.Helper()
	frame.Init(addr.NewPhysPageNum(0), addr.NewPhysPageNum(4096))
	KernelSpace = memset.NewMemorySet()
	tr, ok := frame.Alloc()
	if !ok {
		t.Fatal("expected frame alloc for trampoline")
	}
	return tr.PPN
}

func TestNewTaskIsReadyWithTrapContext(t *testing.T) {
	tramp := setup(t)
	img := buildMinimalELF(0x1000, 0x1004, []byte{1, 2, 3, 4})

	tsk := New(img, tramp, 0xdead, 0x100, 0x200)
	if tsk.Status != Ready {
		t.Fatalf("status = %v, want Ready", tsk.Status)
	}
	tc := tsk.TrapContext()
	if tc.Sepc != 0x1004 {
		t.Fatalf("sepc = %#x, want 0x1004", tc.Sepc)
	}
	if tc.KernelSatp != 0xdead {
		t.Fatal("kernel satp not propagated")
	}
}

func TestForkSharesFdTableAndZeroesReturn(t *testing.T) {
	tramp := setup(t)
	img := buildMinimalELF(0x1000, 0x1004, []byte{1, 2, 3, 4})
	parent := New(img, tramp, 0xdead, 0x100, 0x200)
	parent.TrapContext().X[10] = 77

	child := parent.Fork()
	if child.Parent != parent {
		t.Fatal("expected child to reference parent")
	}
	if len(parent.Children) != 1 || parent.Children[0] != child {
		t.Fatal("expected parent's children list to contain the fork")
	}
	if child.TrapContext().X[10] != 0 {
		t.Fatalf("child x[10] = %d, want 0", child.TrapContext().X[10])
	}
	if child.FdTable.Len() != parent.FdTable.Len() {
		t.Fatal("expected fd table to be copied")
	}
	if child.FdTable == parent.FdTable {
		t.Fatal("expected fork to clone the fd table, not share the struct")
	}
	if child.MemorySet == parent.MemorySet {
		t.Fatal("expected fork to clone the memory set, not share it")
	}
}

func TestExecRewritesEntryAndArgv(t *testing.T) {
	tramp := setup(t)
	img := buildMinimalELF(0x1000, 0x1004, []byte{1, 2, 3, 4})
	tsk := New(img, tramp, 0xdead, 0x100, 0x200)

	img2 := buildMinimalELF(0x2000, 0x2008, []byte{5, 6, 7, 8})
	tsk.Exec(img2, []string{"a", "bb"}, tramp, 0xbeef, 0x300)

	tc := tsk.TrapContext()
	if tc.Sepc != 0x2008 {
		t.Fatalf("sepc = %#x, want 0x2008", tc.Sepc)
	}
	if tc.X[10] != 2 {
		t.Fatalf("argc = %d, want 2", tc.X[10])
	}
	if tc.X[11] == 0 {
		t.Fatal("expected nonzero argv_base")
	}
}

func TestCheckFatalPriorityOrder(t *testing.T) {
	code, _, ok := CheckFatal(SIGSEGV | SIGINT)
	if !ok || code != -2 {
		t.Fatalf("expected SIGINT (-2) to win priority, got code=%d ok=%v", code, ok)
	}
	if _, _, ok := CheckFatal(SIGHUP); ok {
		t.Fatal("expected no fatal signal pending")
	}
}
