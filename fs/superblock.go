// Package fs holds the on-disk super block describing a bitmap's
// extent on a block device (SPEC_FULL.md §5.10), grounded on biscuit's
// fs.Superblock_t typed field-accessor style (biscuit/src/fs/super.go)
// adapted to read and write through blockcache's typed block access
// instead of a raw *mem.Bytepg_t, since there is no longer a bare
// physical-page type in this kernel's fs layer.
package fs

import "rv39os/blockcache"

// superblockFields is the typed layout ModifyT/ReadT reinterpret block
// 0's bytes as: eight 64-bit fields, matching biscuit's fieldr/fieldw
// convention of one machine word per logical field.
type superblockFields struct {
	Loglen       uint64
	Iorphanblock uint64
	Iorphanlen   uint64
	Imaplen      uint64
	Freeblock    uint64
	Freeblocklen uint64
	Inodelen     uint64
	Lastblock    uint64
}

// SuperblockBlockID is the fixed block holding the super block, block
// 0 of any image built by cmd/mkfs.
const SuperblockBlockID = 0

// Superblock describes a filesystem image's layout: log extent,
// orphan-inode map, inode bitmap length, free-block bitmap extent,
// inode region length, and the address of the last block on the
// device. It is scaffolding for the bitmap/block-cache core, not a
// full inode/directory filesystem.
type Superblock struct {
	h *blockcache.Handle
}

// Open loads the super block (block SuperblockBlockID) from disk.
// Callers must call Close when done.
func Open(disk blockcache.Disk) *Superblock {
	return &Superblock{h: blockcache.GetBlockCache(SuperblockBlockID, disk)}
}

// Close releases the super block's cache handle.
func (sb *Superblock) Close() { sb.h.Release() }

func (sb *Superblock) read() superblockFields {
	return blockcache.ReadT[superblockFields](sb.h.Cache(), 0)
}

func (sb *Superblock) write(f func(*superblockFields)) {
	blockcache.ModifyT(sb.h.Cache(), 0, f)
}

// Loglen returns the length of the on-disk log in blocks.
func (sb *Superblock) Loglen() int { return int(sb.read().Loglen) }

// Iorphanblock returns the starting block of the orphan inode map.
func (sb *Superblock) Iorphanblock() int { return int(sb.read().Iorphanblock) }

// Iorphanlen returns the length of the orphan inode map.
func (sb *Superblock) Iorphanlen() int { return int(sb.read().Iorphanlen) }

// Imaplen returns the length of the inode bitmap.
func (sb *Superblock) Imaplen() int { return int(sb.read().Imaplen) }

// Freeblock returns the starting block of the free block bitmap.
func (sb *Superblock) Freeblock() int { return int(sb.read().Freeblock) }

// Freeblocklen returns the length of the free block bitmap.
func (sb *Superblock) Freeblocklen() int { return int(sb.read().Freeblocklen) }

// Inodelen reports the number of blocks containing inodes.
func (sb *Superblock) Inodelen() int { return int(sb.read().Inodelen) }

// Lastblock returns the address of the last block on the device.
func (sb *Superblock) Lastblock() int { return int(sb.read().Lastblock) }

// SetLoglen updates the log length field.
func (sb *Superblock) SetLoglen(n int) { sb.write(func(f *superblockFields) { f.Loglen = uint64(n) }) }

// SetIorphanblock records the starting block of the orphan map.
func (sb *Superblock) SetIorphanblock(n int) {
	sb.write(func(f *superblockFields) { f.Iorphanblock = uint64(n) })
}

// SetIorphanlen writes the length of the orphan map.
func (sb *Superblock) SetIorphanlen(n int) {
	sb.write(func(f *superblockFields) { f.Iorphanlen = uint64(n) })
}

// SetImaplen writes the length of the inode bitmap.
func (sb *Superblock) SetImaplen(n int) {
	sb.write(func(f *superblockFields) { f.Imaplen = uint64(n) })
}

// SetFreeblock stores the start block of the free block bitmap.
func (sb *Superblock) SetFreeblock(n int) {
	sb.write(func(f *superblockFields) { f.Freeblock = uint64(n) })
}

// SetFreeblocklen writes the free block bitmap length.
func (sb *Superblock) SetFreeblocklen(n int) {
	sb.write(func(f *superblockFields) { f.Freeblocklen = uint64(n) })
}

// SetInodelen writes the number of inode blocks.
func (sb *Superblock) SetInodelen(n int) {
	sb.write(func(f *superblockFields) { f.Inodelen = uint64(n) })
}

// SetLastblock stores the address of the last block on the disk.
func (sb *Superblock) SetLastblock(n int) {
	sb.write(func(f *superblockFields) { f.Lastblock = uint64(n) })
}
