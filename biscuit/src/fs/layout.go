// Package fs implements the on-disk file system spec.md §4.3 describes:
// a fixed free-sector bitmap at sector 0, a fixed root directory at
// sector 1, and inodes indexed by 12 direct, 1 single-indirect and 1
// double-indirect pointers, addressing 12+N+N² sectors with N=128
// pointers per index sector. This replaces the teacher's own fs package
// (a log-structured design at a 4096-byte block size) entirely --
// spec.md's layout is the original Pintos inode format, not Biscuit's --
// but keeps the teacher's separation of concerns (superblock/layout,
// inode growth, directory entries, path parsing, all serialized through
// one file-system-wide lock) and its Err_t-returning method shape.
package fs

import (
	"encoding/binary"

	"cache"
)

const (
	BitmapSector = 0
	RootSector   = 1
	OrphanSector = 2
	FirstFree    = 3

	PtrsPerSector = cache.SectorSize / 4 // N = 128
	DirectPtrs    = 12

	InodeMagic = 0xb16cab10

	// MaxFileSectors is 12 + N + N^2, the largest sector count a single
	// inode can index.
	MaxFileSectors = DirectPtrs + PtrsPerSector + PtrsPerSector*PtrsPerSector

	// DefaultDiskSectors sizes a freshly formatted image in the absence
	// of a caller-supplied geometry -- 32MiB, shared by cmd/kernel and
	// cmd/mkfs so an image either of them formats is mountable by both.
	DefaultDiskSectors = 65536
)

func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
func getU32(b []byte, off int) uint32    { return binary.LittleEndian.Uint32(b[off:]) }
