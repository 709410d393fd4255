// Package pagetable implements the Sv39 three-level page table: the
// PageTableEntry bit layout and the PageTable map/unmap/translate
// operations (spec.md §4.3). Grounded on biscuit's PTE flag-constant
// style (mem/mem.go's PTE_P/PTE_W/PTE_U/PTE_ADDR block) adapted to
// Sv39's V/R/W/X/U/G/A/D layout and on
// original_source/os/src/mm/page_table.rs for the exact map/unmap/
// find_pte_create descent and validity assertions. Interior page-table
// pages are reinterpreted as [512]PageTableEntry the way
// mem.Pg2bytes/Bytepg2pg reinterpret a Pg_t as a Bytepg_t via
// unsafe.Pointer.
package pagetable

import (
	"unsafe"

	"rv39os/addr"
	"rv39os/frame"
	"rv39os/kerrors"
	"rv39os/rvconf"
)

// Flags are the eight low bits of a page table entry.
type Flags uint8

const (
	V Flags = 1 << 0 // Valid
	R Flags = 1 << 1 // Readable
	W Flags = 1 << 2 // Writable
	X Flags = 1 << 3 // Executable
	U Flags = 1 << 4 // User-accessible
	G Flags = 1 << 5 // Global
	A Flags = 1 << 6 // Accessed
	D Flags = 1 << 7 // Dirty
)

const (
	pteAddrOffset = 10
	pteAddrWidth  = 44
	pteAddrMask   = (uint64(1) << pteAddrWidth) - 1
)

// Entry is one Sv39 page table entry: a 44-bit physical page number
// shifted into bits [53:10] with an 8-bit flags field in bits [7:0].
type Entry uint64

// NewEntry packs ppn and flags into an entry.
func NewEntry(ppn addr.PhysPageNum, flags Flags) Entry {
	return Entry(ppn.Uint64()<<pteAddrOffset | uint64(flags))
}

// PPN extracts the physical page number from the entry.
func (e Entry) PPN() addr.PhysPageNum {
	return addr.NewPhysPageNum((uint64(e) >> pteAddrOffset) & pteAddrMask)
}

// Flags extracts the entry's flag bits.
func (e Entry) Flags() Flags { return Flags(e) }

func (e Entry) Valid() bool    { return e.Flags()&V != 0 }
func (e Entry) Readable() bool { return e.Flags()&R != 0 }
func (e Entry) Writable() bool { return e.Flags()&W != 0 }
func (e Entry) Executable() bool { return e.Flags()&X != 0 }

// entryArray reinterprets the 4096-byte frame at ppn as 512 page table
// entries.
func entryArray(ppn addr.PhysPageNum) *[512]Entry {
	b := frame.BytesAt(ppn)
	return (*[512]Entry)(unsafe.Pointer(&b[0]))
}

// PageTable is a three-level Sv39 page table. An owning table (built
// via New) holds the frame.Tracker for every interior and root frame it
// allocates; a non-owning table (built via FromToken) only ever reads.
type PageTable struct {
	rootPPN addr.PhysPageNum
	frames  []*frame.Tracker
}

// New allocates a root frame and returns an owning, empty page table.
func New() *PageTable {
	root, ok := frame.Alloc()
	if !ok {
		kerrors.Fatalf("pagetable", "out of frames allocating root page table")
	}
	return &PageTable{rootPPN: root.PPN, frames: []*frame.Tracker{root}}
}

// FromToken reconstructs a non-owning view of the page table rooted at
// the satp token's root PPN. It allocates no frames and releases none.
func FromToken(satp uint64) *PageTable {
	return &PageTable{rootPPN: addr.NewPhysPageNum(satp & ((uint64(1) << 44) - 1))}
}

// Token encodes this table's root into an Sv39 satp value.
func (pt *PageTable) Token() uint64 {
	return rvconf.SatpToken(pt.rootPPN.Uint64())
}

// Map installs ppn at vpn with flags|V. It is a fatal kernel invariant
// violation to map an already-valid vpn.
func (pt *PageTable) Map(vpn addr.VirtPageNum, ppn addr.PhysPageNum, flags Flags) {
	pte := pt.findOrCreate(vpn)
	if pte.Valid() {
		kerrors.Fatalf("pagetable", "vpn %#x is mapped before mapping", vpn.Uint64())
	}
	*pte = NewEntry(ppn, flags|V)
}

// Unmap clears vpn's mapping. It is a fatal kernel invariant violation
// to unmap a vpn that is not currently valid.
func (pt *PageTable) Unmap(vpn addr.VirtPageNum) {
	pte := pt.find(vpn)
	if pte == nil || !pte.Valid() {
		kerrors.Fatalf("pagetable", "vpn %#x is invalid before unmapping", vpn.Uint64())
	}
	*pte = Entry(0)
}

// Translate returns a copy of vpn's leaf entry and whether it exists
// (is valid).
func (pt *PageTable) Translate(vpn addr.VirtPageNum) (Entry, bool) {
	pte := pt.find(vpn)
	if pte == nil || !pte.Valid() {
		return 0, false
	}
	return *pte, true
}

// TranslateVA resolves a virtual address to its backing physical
// address via the page containing it.
func (pt *PageTable) TranslateVA(va addr.VirtAddr) (addr.PhysAddr, bool) {
	pte := pt.find(va.Floor())
	if pte == nil {
		return 0, false
	}
	return addr.NewPhysAddr(pte.PPN().Addr().Uint64() + va.PageOffset()), true
}

// findOrCreate descends the three levels, allocating interior frames as
// needed, and returns the leaf entry's address.
func (pt *PageTable) findOrCreate(vpn addr.VirtPageNum) *Entry {
	idx := vpn.Indexes()
	ppn := pt.rootPPN
	var result *Entry
	for i, ix := range idx {
		arr := entryArray(ppn)
		pte := &arr[ix]
		if i == 2 {
			result = pte
			break
		}
		if !pte.Valid() {
			f, ok := frame.Alloc()
			if !ok {
				kerrors.Fatalf("pagetable", "out of frames extending page table")
			}
			*pte = NewEntry(f.PPN, V)
			pt.frames = append(pt.frames, f)
		}
		ppn = pte.PPN()
	}
	return result
}

// find descends the three levels without creating anything, returning
// nil if an interior entry is invalid.
func (pt *PageTable) find(vpn addr.VirtPageNum) *Entry {
	idx := vpn.Indexes()
	ppn := pt.rootPPN
	var result *Entry
	for i, ix := range idx {
		arr := entryArray(ppn)
		pte := &arr[ix]
		if i == 2 {
			result = pte
			break
		}
		if !pte.Valid() {
			return nil
		}
		ppn = pte.PPN()
	}
	return result
}

// TranslatedByteBuffer returns the ordered, non-overlapping kernel-side
// byte slices backing [ptr, ptr+length) in the address space named by
// token, split at page boundaries. Grounded on vm.Vm_t.Userdmap8_inner's
// "advance by however much of the current page remains" loop
// (vm/as.go), generalized from a single 8-byte read to an arbitrary
// length and bounded by rvconf.MaxUserCopy so a bogus user-supplied
// length cannot spin the kernel forever (SPEC_FULL.md §10.4).
func TranslatedByteBuffer(token uint64, ptr addr.VirtAddr, length uint64) ([][]byte, bool) {
	if length > rvconf.MaxUserCopy {
		return nil, false
	}
	pt := FromToken(token)
	start := ptr
	end := addr.NewVirtAddr(ptr.Uint64() + length)
	var out [][]byte
	for start.Uint64() < end.Uint64() {
		vpn := start.Floor()
		pte, ok := pt.Translate(vpn)
		if !ok {
			return nil, false
		}
		pageEnd := vpn.Next().Addr()
		stop := pageEnd
		if end.Uint64() < stop.Uint64() {
			stop = end
		}
		buf := frame.BytesAt(pte.PPN())
		out = append(out, buf[start.PageOffset():stop.Uint64()-vpn.Addr().Uint64()])
		start = stop
	}
	return out, true
}

// TranslatedStr reads a NUL-terminated string starting at ptr in the
// address space named by token, one byte at a time across page
// boundaries, up to maxLen bytes. Grounded on vm.Vm_t.Userstr
// (vm/as.go).
func TranslatedStr(token uint64, ptr addr.VirtAddr, maxLen int) (string, bool) {
	out := make([]byte, 0, 32)
	va := ptr
	for i := 0; i < maxLen; i++ {
		bufs, ok := TranslatedByteBuffer(token, va, 1)
		if !ok || len(bufs) == 0 {
			return "", false
		}
		b := bufs[0][0]
		if b == 0 {
			return string(out), true
		}
		out = append(out, b)
		va = addr.NewVirtAddr(va.Uint64() + 1)
	}
	return "", false
}

// TranslatedRef resolves a single user pointer of size bytes to a
// kernel-addressable slice, asserting the page is mapped. Callers that
// need a typed view reinterpret the returned bytes with unsafe.Pointer,
// the way mem.Pg2bytes/Bytepg2pg reinterpret a Pg_t.
func TranslatedRef(token uint64, ptr addr.VirtAddr, size uint64) ([]byte, bool) {
	bufs, ok := TranslatedByteBuffer(token, ptr, size)
	if !ok || len(bufs) != 1 {
		return nil, false
	}
	return bufs[0], true
}
