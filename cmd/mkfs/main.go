// Command mkfs lays out a disk image exercising the bitmap and
// blockcache core together: a super block, a free-block bitmap, and a
// log region, enough to exercise fs.Superblock and bitmap.Bitmap
// end-to-end. It does not build directories, inodes, or file data —
// parsing on-disk file formats beyond ELF program headers is out of
// scope (spec.md §1). Grounded on biscuit's mkfs/mkfs.go CLI shape
// (flag-free os.Args parsing, fmt.Printf diagnostics, os.Exit on
// error), adapted away from ufs.MkDisk's full inode-tree assembly.
package main

import (
	"fmt"
	"os"

	"rv39os/bitmap"
	"rv39os/blockcache"
	"rv39os/blockdev"
	"rv39os/fs"
	"rv39os/rvconf"
)

const (
	logBlocks      = 1024
	freeBlockCount = 8192
)

func run(image string) error {
	disk, err := blockdev.Open(image)
	if err != nil {
		return fmt.Errorf("open %s: %w", image, err)
	}
	defer disk.Close()

	freeBlockStart := 1 + logBlocks
	bitmapBlocks := (freeBlockCount + 64*64 - 1) / (64 * 64)
	inodeRegionStart := freeBlockStart + bitmapBlocks
	lastBlock := inodeRegionStart + freeBlockCount

	sb := fs.Open(disk)
	sb.SetLoglen(logBlocks)
	sb.SetIorphanblock(0)
	sb.SetIorphanlen(0)
	sb.SetImaplen(0)
	sb.SetFreeblock(freeBlockStart)
	sb.SetFreeblocklen(bitmapBlocks)
	sb.SetInodelen(0)
	sb.SetLastblock(lastBlock)
	sb.Close()

	bm := bitmap.New(freeBlockStart, bitmapBlocks)
	reserved := 1 + logBlocks + bitmapBlocks
	for i := 0; i < reserved; i++ {
		if _, ok := bm.Alloc(disk); !ok {
			return fmt.Errorf("bitmap exhausted reserving %d boot blocks", reserved)
		}
	}
	blockcache.SyncAll()

	fmt.Printf("mkfs: wrote %s: %d blocks (%d reserved, block size %d)\n",
		image, lastBlock, reserved, rvconf.BlockSize)
	return nil
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: mkfs <output image>\n")
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs: %v\n", err)
		os.Exit(1)
	}
}
