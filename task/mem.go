package task

import (
	"unsafe"

	"rv39os/addr"
	"rv39os/frame"
	"rv39os/pagetable"
)

// ptrAt reinterprets the frame at ppn as a *trapctx.TrapContext, the way
// mem.Pg2bytes/Bytepg2pg reinterpret a page via unsafe.Pointer.
func ptrAt(ppn addr.PhysPageNum) unsafe.Pointer {
	b := frame.BytesAt(ppn)
	return unsafe.Pointer(&b[0])
}

// writeUserBytes copies data into the address space named by token
// starting at va, splitting the copy across page boundaries via
// pagetable.TranslatedByteBuffer.
func writeUserBytes(token uint64, va addr.VirtAddr, data []byte) {
	bufs, ok := pagetable.TranslatedByteBuffer(token, va, uint64(len(data)))
	if !ok {
		panic("task: writeUserBytes: destination not mapped")
	}
	off := 0
	for _, b := range bufs {
		n := copy(b, data[off:])
		off += n
	}
}

// writeArgvTable writes a table of argv pointers (each 8 bytes,
// little-endian-by-host-layout) starting at base, for exec's argv array.
func writeArgvTable(token uint64, base addr.VirtAddr, ptrs []uint64) {
	for i, p := range ptrs {
		va := addr.NewVirtAddr(base.Uint64() + uint64(i)*8)
		buf, ok := pagetable.TranslatedRef(token, va, 8)
		if !ok {
			panic("task: writeArgvTable: destination not mapped")
		}
		*(*uint64)(unsafe.Pointer(&buf[0])) = p
	}
}
