package fs

import (
	"cache"
	"defs"
)

// inode_t is spec.md §3's on-disk Inode entity, kept entirely in one
// cache sector: "length; is_dir; 12 direct sectors, 1 single-indirect, 1
// double-indirect; magic."
type inode_t struct {
	magic    uint32
	isDir    bool
	removed  bool
	length   int
	direct   [DirectPtrs]uint32
	indirect uint32
	dindirect uint32
}

func decodeInode(b []byte) *inode_t {
	in := &inode_t{}
	in.magic = getU32(b, 0)
	flags := getU32(b, 4)
	in.isDir = flags&1 != 0
	in.removed = flags&2 != 0
	in.length = int(getU32(b, 8))
	for i := 0; i < DirectPtrs; i++ {
		in.direct[i] = getU32(b, 12+4*i)
	}
	in.indirect = getU32(b, 12+4*DirectPtrs)
	in.dindirect = getU32(b, 12+4*DirectPtrs+4)
	return in
}

func (in *inode_t) encode(b []byte) {
	for i := range b {
		b[i] = 0
	}
	putU32(b, 0, in.magic)
	var flags uint32
	if in.isDir {
		flags |= 1
	}
	if in.removed {
		flags |= 2
	}
	putU32(b, 4, flags)
	putU32(b, 8, uint32(in.length))
	for i := 0; i < DirectPtrs; i++ {
		putU32(b, 12+4*i, in.direct[i])
	}
	putU32(b, 12+4*DirectPtrs, in.indirect)
	putU32(b, 12+4*DirectPtrs+4, in.dindirect)
}

func (fsys *Fs_t) readInode(sector int) (*inode_t, defs.Err_t) {
	var b [cache.SectorSize]byte
	if err := fsys.cache.Read(sector, b[:], false); err != 0 {
		return nil, err
	}
	in := decodeInode(b[:])
	if in.magic != InodeMagic {
		return nil, -defs.EINVAL
	}
	return in, 0
}

func (fsys *Fs_t) writeInode(sector int, in *inode_t) defs.Err_t {
	var b [cache.SectorSize]byte
	in.encode(b[:])
	return fsys.cache.Write(sector, b[:], false)
}

// position maps a byte offset within an inode's content to the data
// sector that holds it, per spec.md's "position function maps a byte
// offset to (level, idx1, idx2)". allocate controls whether an absent
// index/data sector is allocated on the fly (true for extend/write,
// false for a pure read that must not silently grow the file).
func (fsys *Fs_t) position(in *inode_t, sector int, off int, allocate bool) (int, defs.Err_t) {
	blk := off / cache.SectorSize
	if blk < DirectPtrs {
		if in.direct[blk] == 0 {
			if !allocate {
				return 0, -defs.EINVAL
			}
			s, err := fsys.allocSector()
			if err != 0 {
				return 0, err
			}
			in.direct[blk] = uint32(s)
			if err := fsys.writeInode(sector, in); err != 0 {
				return 0, err
			}
		}
		return int(in.direct[blk]), 0
	}
	blk -= DirectPtrs
	if blk < PtrsPerSector {
		ind, err := fsys.indexSector(&in.indirect, sector, in, allocate)
		if err != 0 {
			return 0, err
		}
		return fsys.indexEntry(ind, blk, allocate)
	}
	blk -= PtrsPerSector
	if blk < PtrsPerSector*PtrsPerSector {
		outer, err := fsys.indexSector(&in.dindirect, sector, in, allocate)
		if err != 0 {
			return 0, err
		}
		i1 := blk / PtrsPerSector
		i2 := blk % PtrsPerSector
		mid, err := fsys.indexEntryAlloc(outer, i1, allocate)
		if err != 0 {
			return 0, err
		}
		return fsys.indexEntry(mid, i2, allocate)
	}
	panic("fs: offset exceeds maximum inode length")
}

// indexSector returns the sector number stored in *ptr, allocating a
// fresh (zeroed) index sector and persisting ptr into the owning inode
// if it is currently unset and allocate is true.
func (fsys *Fs_t) indexSector(ptr *uint32, inodeSector int, in *inode_t, allocate bool) (int, defs.Err_t) {
	if *ptr == 0 {
		if !allocate {
			return 0, -defs.EINVAL
		}
		s, err := fsys.allocSector()
		if err != 0 {
			return 0, err
		}
		var zero [cache.SectorSize]byte
		fsys.cache.Write(s, zero[:], false)
		*ptr = uint32(s)
		if err := fsys.writeInode(inodeSector, in); err != 0 {
			return 0, err
		}
	}
	return int(*ptr), 0
}

func (fsys *Fs_t) indexEntry(indexSector, idx int, allocate bool) (int, defs.Err_t) {
	var b [cache.SectorSize]byte
	if err := fsys.cache.Read(indexSector, b[:], false); err != 0 {
		return 0, err
	}
	v := getU32(b[:], 4*idx)
	if v == 0 {
		if !allocate {
			return 0, -defs.EINVAL
		}
		s, err := fsys.allocSector()
		if err != 0 {
			return 0, err
		}
		var zero [cache.SectorSize]byte
		fsys.cache.Write(s, zero[:], false)
		putU32(b[:], 4*idx, uint32(s))
		if err := fsys.cache.Write(indexSector, b[:], false); err != 0 {
			return 0, err
		}
		return s, 0
	}
	return int(v), 0
}

// indexEntryAlloc is indexEntry specialized for a double-indirect
// sector's middle level, which itself holds sector numbers of leaf index
// sectors (zeroed on allocation, same as a top-level index sector).
func (fsys *Fs_t) indexEntryAlloc(outerSector, idx int, allocate bool) (int, defs.Err_t) {
	return fsys.indexEntry(outerSector, idx, allocate)
}

// extend grows in (identified by sector) to newLength bytes, per
// spec.md: "rounds up and fills the tree, allocating intermediate index
// blocks lazily and zero-filling newly allocated data blocks." It panics
// on exceeding maximum length, matching the spec's stated behavior.
func (fsys *Fs_t) extend(sector int, in *inode_t, newLength int) defs.Err_t {
	if newLength > MaxFileSectors*cache.SectorSize {
		panic("fs: extend exceeds maximum inode length")
	}
	if newLength <= in.length {
		return 0
	}
	oldBlocks := (in.length + cache.SectorSize - 1) / cache.SectorSize
	newBlocks := (newLength + cache.SectorSize - 1) / cache.SectorSize
	var zero [cache.SectorSize]byte
	for b := oldBlocks; b < newBlocks; b++ {
		ds, err := fsys.position(in, sector, b*cache.SectorSize, true)
		if err != 0 {
			return err
		}
		if err := fsys.cache.Write(ds, zero[:], false); err != 0 {
			return err
		}
	}
	in.length = newLength
	return fsys.writeInode(sector, in)
}

// readAt/writeAt copy across as many sectors as needed, starting at a
// byte offset that need not be sector-aligned.
func (fsys *Fs_t) readAt(sector int, in *inode_t, off int, buf []byte) (int, defs.Err_t) {
	did := 0
	for did < len(buf) && off+did < in.length {
		blkoff := (off + did) % cache.SectorSize
		ds, err := fsys.position(in, sector, off+did, false)
		if err != 0 {
			return did, err
		}
		var sec [cache.SectorSize]byte
		if err := fsys.cache.Read(ds, sec[:], false); err != 0 {
			return did, err
		}
		n := cache.SectorSize - blkoff
		if rem := len(buf) - did; n > rem {
			n = rem
		}
		if rem := in.length - (off + did); n > rem {
			n = rem
		}
		copy(buf[did:did+n], sec[blkoff:blkoff+n])
		did += n
	}
	return did, 0
}

func (fsys *Fs_t) writeAt(sector int, in *inode_t, off int, buf []byte) (int, defs.Err_t) {
	if off+len(buf) > in.length {
		if err := fsys.extend(sector, in, off+len(buf)); err != 0 {
			return 0, err
		}
	}
	did := 0
	for did < len(buf) {
		blkoff := (off + did) % cache.SectorSize
		ds, err := fsys.position(in, sector, off+did, true)
		if err != 0 {
			return did, err
		}
		var sec [cache.SectorSize]byte
		if err := fsys.cache.Read(ds, sec[:], false); err != 0 {
			return did, err
		}
		n := cache.SectorSize - blkoff
		if rem := len(buf) - did; n > rem {
			n = rem
		}
		copy(sec[blkoff:blkoff+n], buf[did:did+n])
		if err := fsys.cache.Write(ds, sec[:], false); err != 0 {
			return did, err
		}
		did += n
	}
	return did, 0
}
