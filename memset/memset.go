// Package memset implements MapArea and MemorySet (spec.md §4.4): an
// ordered, non-overlapping collection of virtual memory areas backing
// one address space, built either as the kernel's own identity-mapped
// space or as a user space loaded from an ELF image. Grounded on
// vm.Vm_t's lock discipline (an embedded sync.Mutex guarding the region
// list and page table, vm/as.go) generalized from Vm_t's single
// region-lookup/page-fault model to spec.md's eager, fault-free
// construction: demand paging and copy-on-write are an explicit
// Non-goal, so every framed area is populated up front instead of on
// first touch.
package memset

import (
	"debug/elf"
	"sync"

	"rv39os/addr"
	"rv39os/frame"
	"rv39os/kerrors"
	"rv39os/pagetable"
	"rv39os/rvconf"
)

// MapType distinguishes an area that maps virtual addresses straight to
// identical physical addresses from one backed by independently
// allocated frames.
type MapType int

const (
	Identical MapType = iota
	Framed
)

// MapPermission is the RWX+U subset of pagetable.Flags relevant to a
// user- or kernel-mode mapping (V is added by the page table itself).
type MapPermission = pagetable.Flags

const (
	PermR MapPermission = pagetable.R
	PermW MapPermission = pagetable.W
	PermX MapPermission = pagetable.X
	PermU MapPermission = pagetable.U
)

// MapArea is one contiguous, page-aligned virtual range within a
// MemorySet, along with the frames backing it when Framed.
type MapArea struct {
	startVPN, endVPN addr.VirtPageNum
	mapType          MapType
	perm             MapPermission
	data             map[addr.VirtPageNum]*frame.Tracker
}

// NewMapArea constructs an area covering [start, end) with the given
// mapping strategy and permission bits.
func NewMapArea(start, end addr.VirtAddr, mt MapType, perm MapPermission) *MapArea {
	return &MapArea{
		startVPN: start.Floor(),
		endVPN:   end.Ceil(),
		mapType:  mt,
		perm:     perm,
		data:     make(map[addr.VirtPageNum]*frame.Tracker),
	}
}

func (a *MapArea) mapOne(pt *pagetable.PageTable, vpn addr.VirtPageNum) {
	var ppn addr.PhysPageNum
	switch a.mapType {
	case Identical:
		ppn = addr.NewPhysPageNum(vpn.Uint64())
	case Framed:
		f, ok := frame.Alloc()
		if !ok {
			kerrors.Fatalf("memset", "out of frames mapping vpn %#x", vpn.Uint64())
		}
		a.data[vpn] = f
		ppn = f.PPN
	}
	pt.Map(vpn, ppn, a.perm)
}

func (a *MapArea) unmapOne(pt *pagetable.PageTable, vpn addr.VirtPageNum) {
	if a.mapType == Framed {
		if f, ok := a.data[vpn]; ok {
			f.Recycle()
		}
		delete(a.data, vpn)
	}
	pt.Unmap(vpn)
}

func (a *MapArea) mapAll(pt *pagetable.PageTable) {
	for vpn := a.startVPN; vpn.Uint64() < a.endVPN.Uint64(); vpn = vpn.Next() {
		a.mapOne(pt, vpn)
	}
}

func (a *MapArea) unmapAll(pt *pagetable.PageTable) {
	for vpn := a.startVPN; vpn.Uint64() < a.endVPN.Uint64(); vpn = vpn.Next() {
		a.unmapOne(pt, vpn)
	}
}

// copyData copies data into the area's frames page by page, starting at
// the area's first page; len(data) must not exceed the area's span.
func (a *MapArea) copyData(pt *pagetable.PageTable, data []byte) {
	start := 0
	vpn := a.startVPN
	for start < len(data) {
		src := data[start:]
		if len(src) > rvconf.PageSize {
			src = src[:rvconf.PageSize]
		}
		e, ok := pt.Translate(vpn)
		if !ok {
			kerrors.Fatalf("memset", "copyData: vpn %#x not mapped", vpn.Uint64())
		}
		dst := frame.BytesAt(e.PPN())
		copy(dst, src)
		start += len(src)
		vpn = vpn.Next()
	}
}

// MemorySet owns a page table and the ordered list of areas mapped
// through it. The mutex mirrors vm.Vm_t's single lock protecting region
// list and page table together.
type MemorySet struct {
	mu    sync.Mutex
	pt    *pagetable.PageTable
	areas []*MapArea
}

// NewMemorySet returns an empty address space with a freshly allocated
// root page table.
func NewMemorySet() *MemorySet {
	return &MemorySet{pt: pagetable.New()}
}

// Token returns the satp-ready token for this address space's page
// table.
func (ms *MemorySet) Token() uint64 {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.pt.Token()
}

// PageTable exposes the underlying page table for translation helpers.
func (ms *MemorySet) PageTable() *pagetable.PageTable { return ms.pt }

// push appends area to the set, forbidding overlap with any existing
// area (the page table's Map assertion would catch this too, but
// checking here gives a cleaner diagnostic and matches the "overlapping
// ranges are forbidden" invariant named by spec.md §4.4 directly).
func (ms *MemorySet) push(area *MapArea, data []byte) {
	for _, other := range ms.areas {
		if area.startVPN.Uint64() < other.endVPN.Uint64() && other.startVPN.Uint64() < area.endVPN.Uint64() {
			kerrors.Fatalf("memset", "area [%#x,%#x) overlaps existing area [%#x,%#x)",
				area.startVPN.Uint64(), area.endVPN.Uint64(), other.startVPN.Uint64(), other.endVPN.Uint64())
		}
	}
	area.mapAll(ms.pt)
	if data != nil {
		area.copyData(ms.pt, data)
	}
	ms.areas = append(ms.areas, area)
}

// InsertFramedArea adds a new user-permissioned framed area covering
// [start, end).
func (ms *MemorySet) InsertFramedArea(start, end addr.VirtAddr, perm MapPermission) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.push(NewMapArea(start, end, Framed, perm), nil)
}

// MapTrampoline unconditionally maps the shared trampoline frame at the
// top of the address space with RX+G (no U, no area bookkeeping: it is
// never unmapped or recycled individually).
func (ms *MemorySet) MapTrampoline(trampolinePPN addr.PhysPageNum) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.pt.Map(addr.NewVirtAddr(rvconf.TrampolineVA).Floor(), trampolinePPN,
		pagetable.R|pagetable.X|pagetable.G)
}

// Activate returns this address space's satp token. This simulation has
// no satp register or TLB, so nothing is written or flushed.
func (ms *MemorySet) Activate() uint64 {
	return ms.Token()
}

// RecycleDataPages drops every area, releasing its frames, while
// preserving the page table object itself for later reuse (spec.md
// §4.4, used by process exit).
func (ms *MemorySet) RecycleDataPages() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, a := range ms.areas {
		a.unmapAll(ms.pt)
	}
	ms.areas = nil
}

// NewKernelSpace builds the kernel's own address space (spec.md §4.4):
// identical-mapped .text (RX), .rodata (R), .data (RW), .bss (RW), the
// physical-memory tail up to rvconf.MemoryEnd (RW), each rvconf.MMIO
// window (RW), and the shared trampoline. Grounded on spec.md §4.4's
// "kernel space construction" operation, over rvconf's fixed section
// boundaries since this hosted simulation has no linker script to read
// real section symbols from.
func NewKernelSpace(trampolinePPN addr.PhysPageNum) *MemorySet {
	ms := NewMemorySet()
	ms.MapTrampoline(trampolinePPN)

	sections := []struct {
		start, end uint64
		perm       MapPermission
	}{
		{rvconf.KernelBase, rvconf.TextEnd, PermR | PermX},
		{rvconf.TextEnd, rvconf.RodataEnd, PermR},
		{rvconf.RodataEnd, rvconf.DataEnd, PermR | PermW},
		{rvconf.DataEnd, rvconf.BssEnd, PermR | PermW},
		{rvconf.BssEnd, rvconf.MemoryEnd, PermR | PermW},
	}
	ms.mu.Lock()
	for _, s := range sections {
		ms.push(NewMapArea(addr.NewVirtAddr(s.start), addr.NewVirtAddr(s.end), Identical, s.perm), nil)
	}
	for _, w := range rvconf.MMIO {
		ms.push(NewMapArea(addr.NewVirtAddr(w.Start), addr.NewVirtAddr(w.End), Identical, PermR|PermW), nil)
	}
	ms.mu.Unlock()

	return ms
}

// FromExistedUser eagerly clones src: for every framed area it allocates
// fresh frames and copies their contents page by page, and re-creates
// identical areas by mapping the same physical range again. Grounded on
// spec.md §4.4's "clones memory set via from_existed_user" semantics,
// chosen over copy-on-write because demand paging is an explicit
// Non-goal.
func FromExistedUser(src *MemorySet) *MemorySet {
	src.mu.Lock()
	defer src.mu.Unlock()

	dst := NewMemorySet()
	for _, a := range src.areas {
		newArea := &MapArea{
			startVPN: a.startVPN,
			endVPN:   a.endVPN,
			mapType:  a.mapType,
			perm:     a.perm,
			data:     make(map[addr.VirtPageNum]*frame.Tracker),
		}
		newArea.mapAll(dst.pt)
		if a.mapType == Framed {
			for vpn := a.startVPN; vpn.Uint64() < a.endVPN.Uint64(); vpn = vpn.Next() {
				srcPPN := a.data[vpn].PPN
				dstPPN := newArea.data[vpn].PPN
				copy(frame.BytesAt(dstPPN), frame.BytesAt(srcPPN))
			}
		}
		dst.areas = append(dst.areas, newArea)
	}
	return dst
}

// elfPermToMap translates an ELF program header's R/W/X flags into a
// user-mode MapPermission.
func elfPermToMap(flags elf.ProgFlag) MapPermission {
	var perm MapPermission = PermU
	if flags&elf.PF_R != 0 {
		perm |= PermR
	}
	if flags&elf.PF_W != 0 {
		perm |= PermW
	}
	if flags&elf.PF_X != 0 {
		perm |= PermX
	}
	return perm
}

// FromELF builds a user address space from an ELF image: one framed
// area per PT_LOAD segment, a guard page, a user stack, and a private
// TRAP_CONTEXT page. It returns the memory set, the initial user stack
// pointer, and the entry point. Grounded on debug/elf's program-header
// iteration the way kernel/chentry.go uses it, generalized from a
// single-purpose dumping tool to full segment loading.
func FromELF(image []byte, trampolinePPN addr.PhysPageNum) (ms *MemorySet, userSP uint64, entry uint64, err error) {
	f, rerr := elf.NewFile(byteReaderAt{image})
	if rerr != nil {
		return nil, 0, 0, rerr
	}

	ms = NewMemorySet()
	ms.MapTrampoline(trampolinePPN)

	var maxEndVA addr.VirtAddr
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		startVA := addr.NewVirtAddr(prog.Vaddr)
		endVA := addr.NewVirtAddr(prog.Vaddr + prog.Memsz)
		perm := elfPermToMap(prog.Flags)

		data := make([]byte, prog.Filesz)
		if _, rerr := prog.ReadAt(data, 0); rerr != nil {
			return nil, 0, 0, rerr
		}

		ms.mu.Lock()
		ms.push(NewMapArea(startVA, endVA, Framed, perm), data)
		ms.mu.Unlock()

		if endVA.Uint64() > maxEndVA.Uint64() {
			maxEndVA = endVA
		}
	}

	// Guard page, then the user stack, growing up from stack_bottom.
	stackBottom := addr.NewVirtAddr(maxEndVA.Ceil().Addr().Uint64() + rvconf.PageSize)
	stackTop := addr.NewVirtAddr(stackBottom.Uint64() + rvconf.UserStackSize)
	ms.InsertFramedArea(stackBottom, stackTop, PermR|PermW|PermU)

	// Private TRAP_CONTEXT page, kernel-accessible only (no U).
	ms.mu.Lock()
	ms.push(NewMapArea(addr.NewVirtAddr(rvconf.TrapContextVA),
		addr.NewVirtAddr(rvconf.TrapContextVA+rvconf.PageSize), Framed, PermR|PermW), nil)
	ms.mu.Unlock()

	return ms, stackTop.Uint64(), f.Entry, nil
}

type byteReaderAt struct{ b []byte }

func (r byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(r.b)) {
		return 0, errOutOfRange
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, errOutOfRange
	}
	return n, nil
}

var errOutOfRange = &rangeError{}

type rangeError struct{}

func (*rangeError) Error() string { return "memset: read out of range" }
