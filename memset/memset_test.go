package memset

import (
	"testing"

	"rv39os/addr"
	"rv39os/frame"
	"rv39os/rvconf"
)

func setup(t *testing.T) {
	t.Helper()
	frame.Init(addr.NewPhysPageNum(0), addr.NewPhysPageNum(256))
}

func TestFramedAreaMapUnmap(t *testing.T) {
	setup(t)
	ms := NewMemorySet()
	start := addr.NewVirtAddr(0x1000)
	end := addr.NewVirtAddr(0x4000)
	ms.InsertFramedArea(start, end, PermR|PermW|PermU)

	vpn := start.Floor()
	e, ok := ms.pt.Translate(vpn)
	if !ok {
		t.Fatal("expected first page of area to be mapped")
	}
	if !e.Readable() || !e.Writable() {
		t.Fatal("expected R|W on framed area")
	}

	ms.RecycleDataPages()
	if _, ok := ms.pt.Translate(vpn); ok {
		t.Fatal("expected mapping gone after RecycleDataPages")
	}
}

func TestOverlappingAreasFatal(t *testing.T) {
	setup(t)
	ms := NewMemorySet()
	ms.InsertFramedArea(addr.NewVirtAddr(0x1000), addr.NewVirtAddr(0x4000), PermR|PermW)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overlapping area insertion")
		}
	}()
	ms.InsertFramedArea(addr.NewVirtAddr(0x3000), addr.NewVirtAddr(0x5000), PermR)
}

func TestFromExistedUserCopiesData(t *testing.T) {
	setup(t)
	src := NewMemorySet()
	src.InsertFramedArea(addr.NewVirtAddr(0), addr.NewVirtAddr(0x1000), PermR|PermW|PermU)

	vpn := addr.NewVirtPageNum(0)
	e, _ := src.pt.Translate(vpn)
	srcBuf := frame.BytesAt(e.PPN())
	srcBuf[0] = 0x42

	dst := FromExistedUser(src)
	de, ok := dst.pt.Translate(vpn)
	if !ok {
		t.Fatal("expected cloned area to be mapped")
	}
	if de.PPN() == e.PPN() {
		t.Fatal("expected clone to use a distinct frame")
	}
	if frame.BytesAt(de.PPN())[0] != 0x42 {
		t.Fatal("expected cloned frame contents to match source")
	}

	// Mutating the clone must not affect the source (independent frames).
	frame.BytesAt(de.PPN())[0] = 0x99
	if srcBuf[0] != 0x42 {
		t.Fatal("clone and source unexpectedly alias the same memory")
	}
}

func TestMapTrampolineIsGlobalAndExecutable(t *testing.T) {
	setup(t)
	ms := NewMemorySet()
	tramp, ok := frame.Alloc()
	if !ok {
		t.Fatal("expected frame alloc to succeed")
	}
	ms.MapTrampoline(tramp.PPN)

	e, ok := ms.pt.Translate(addr.NewVirtAddr(rvconf.TrampolineVA).Floor())
	if !ok {
		t.Fatal("expected trampoline to be mapped")
	}
	if !e.Executable() {
		t.Fatal("expected trampoline to be executable")
	}
}

func TestNewKernelSpaceMapsSectionsMMIOAndTrampoline(t *testing.T) {
	setup(t)
	tramp, ok := frame.Alloc()
	if !ok {
		t.Fatal("expected frame alloc to succeed")
	}
	ms := NewKernelSpace(tramp.PPN)

	// .text should be identity-mapped and executable.
	textVPN := addr.NewVirtAddr(rvconf.KernelBase).Floor()
	e, ok := ms.pt.Translate(textVPN)
	if !ok {
		t.Fatal("expected .text to be mapped")
	}
	if !e.Executable() || e.PPN().Uint64() != textVPN.Uint64() {
		t.Fatal("expected .text identity-mapped and executable")
	}

	// .rodata must not be writable.
	rodataVPN := addr.NewVirtAddr(rvconf.TextEnd).Floor()
	e, ok = ms.pt.Translate(rodataVPN)
	if !ok {
		t.Fatal("expected .rodata to be mapped")
	}
	if e.Writable() {
		t.Fatal("expected .rodata to be read-only")
	}

	// the physical-memory tail up to MemoryEnd must be mapped RW.
	tailVPN := addr.NewVirtAddr(rvconf.MemoryEnd - rvconf.PageSize).Floor()
	e, ok = ms.pt.Translate(tailVPN)
	if !ok {
		t.Fatal("expected physical-memory tail to be mapped")
	}
	if !e.Writable() {
		t.Fatal("expected physical-memory tail to be writable")
	}

	// every MMIO window must be mapped.
	for _, w := range rvconf.MMIO {
		vpn := addr.NewVirtAddr(w.Start).Floor()
		if _, ok := ms.pt.Translate(vpn); !ok {
			t.Fatalf("expected MMIO window at %#x to be mapped", w.Start)
		}
	}

	// the trampoline is always mapped too.
	if _, ok := ms.pt.Translate(addr.NewVirtAddr(rvconf.TrampolineVA).Floor()); !ok {
		t.Fatal("expected trampoline to be mapped")
	}
}
