package fs

import "defs"

// bitmap.go implements free-sector tracking over the fixed-layout disk
// image: one bit per sector, stored starting at BitmapSector, persisted
// through the same cache the rest of the file system uses. There is no
// separate "bitmap inode" -- the bitmap occupies as many whole sectors
// as the disk image needs, beginning right after the reserved layout
// sectors, grounded on spec.md §4.3's "a fixed bitmap region tracks
// free/used sectors across the whole device."

func bitmapSectors(totalSectors int) int {
	bits := totalSectors
	return (bits + cacheBitsPerSector - 1) / cacheBitsPerSector
}

const cacheBitsPerSector = 512 * 8

// allocSector finds the first free sector, marks it used, and returns
// it. Returns -ENOMEM if the device is full.
func (fsys *Fs_t) allocSector() (int, defs.Err_t) {
	fsys.bmu.Lock()
	defer fsys.bmu.Unlock()

	nbsec := bitmapSectors(fsys.totalSectors)
	for bs := 0; bs < nbsec; bs++ {
		var b [512]byte
		sec := BitmapSector + bs
		if err := fsys.cache.Read(sec, b[:], false); err != 0 {
			return 0, err
		}
		for byteIdx := 0; byteIdx < len(b); byteIdx++ {
			if b[byteIdx] == 0xff {
				continue
			}
			for bit := 0; bit < 8; bit++ {
				if b[byteIdx]&(1<<uint(bit)) != 0 {
					continue
				}
				sectorNum := bs*cacheBitsPerSector + byteIdx*8 + bit
				if sectorNum >= fsys.totalSectors || sectorNum < FirstFree {
					continue
				}
				b[byteIdx] |= 1 << uint(bit)
				if err := fsys.cache.Write(sec, b[:], false); err != 0 {
					return 0, err
				}
				return sectorNum, 0
			}
		}
	}
	return 0, -defs.ENOMEM
}

// freeSector clears sectorNum's bit, making it available for reuse.
func (fsys *Fs_t) freeSector(sectorNum int) defs.Err_t {
	fsys.bmu.Lock()
	defer fsys.bmu.Unlock()

	byteOff := sectorNum / 8
	bit := uint(sectorNum % 8)
	sec := BitmapSector + byteOff/512
	var b [512]byte
	if err := fsys.cache.Read(sec, b[:], false); err != 0 {
		return err
	}
	idx := byteOff % 512
	b[idx] &^= 1 << bit
	return fsys.cache.Write(sec, b[:], false)
}

// markSectorUsed forces sectorNum's bit on, used during format to
// reserve the fixed layout sectors (bitmap region, root dir, orphan
// table) before any allocSector call can hand them out.
func (fsys *Fs_t) markSectorUsed(sectorNum int) defs.Err_t {
	byteOff := sectorNum / 8
	bit := uint(sectorNum % 8)
	sec := BitmapSector + byteOff/512
	var b [512]byte
	if err := fsys.cache.Read(sec, b[:], false); err != 0 {
		return err
	}
	idx := byteOff % 512
	b[idx] |= 1 << bit
	return fsys.cache.Write(sec, b[:], false)
}
