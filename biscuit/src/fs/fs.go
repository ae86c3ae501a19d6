package fs

import (
	"sync"

	"cache"
	"defs"
	"klog"
	"ustr"
)

// Fs_t is the whole file system: one process-wide lock serializing the
// namespace operations (Open, including create; Mkdir; Remove) and the
// reclaim of a removed inode on its final Close, mirroring the teacher's
// single Fslog lock -- this kernel has no log/journal to pipeline writes
// through, so the lock is held for the duration of each call rather than
// just while appending a log record. Reads, writes and extends through a
// FileHandle take only that handle's own lock.
type Fs_t struct {
	cache *cache.Cache_t

	fsmu sync.Mutex // serializes open/create, mkdir, remove and orphan reclaim
	bmu  sync.Mutex // serializes bitmap alloc/free

	openMu    sync.Mutex
	openCount map[int]int // sector -> count of live FileHandles, for the orphan-cleanup rule below

	totalSectors int
}

// Mount opens an existing file system image already formatted by
// Format.
func Mount(disk cache.Disk_i, totalSectors int) *Fs_t {
	fsys := &Fs_t{cache: cache.New(disk), openCount: map[int]int{}, totalSectors: totalSectors}
	fsys.sweepOrphans()
	return fsys
}

// Format lays down a fresh file system: reserves the bitmap/root/orphan
// sectors, writes an empty root directory inode (with "." and ".."
// self-entries) and an empty orphan table.
func Format(disk cache.Disk_i, totalSectors int) *Fs_t {
	fsys := &Fs_t{cache: cache.New(disk), openCount: map[int]int{}, totalSectors: totalSectors}

	nbsec := bitmapSectors(totalSectors)
	var zero [cache.SectorSize]byte
	for i := 0; i < nbsec; i++ {
		fsys.cache.Write(BitmapSector+i, zero[:], false)
	}
	for s := 0; s < FirstFree; s++ {
		fsys.markSectorUsed(s)
	}

	root := &inode_t{magic: InodeMagic, isDir: true}
	fsys.writeInode(RootSector, root)
	fsys.dirAdd(RootSector, root, ustr.MkUstrDot(), RootSector)
	fsys.dirAdd(RootSector, root, ustr.DotDot, RootSector)

	var orphanBlk [cache.SectorSize]byte
	fsys.cache.Write(OrphanSector, orphanBlk[:], false)

	return fsys
}

func (fsys *Fs_t) Sync() defs.Err_t {
	return fsys.cache.WritebackAll()
}

// Stat is the subset of inode metadata spec.md's fstat/stat syscalls
// expose.
type Stat_t struct {
	Size  int
	IsDir bool
}

func (fsys *Fs_t) Stat(path ustr.Ustr) (Stat_t, defs.Err_t) {
	sector, _, _, err := fsys.parse(path)
	if err != 0 {
		return Stat_t{}, err
	}
	in, err := fsys.readInode(sector)
	if err != 0 {
		return Stat_t{}, err
	}
	return Stat_t{Size: in.length, IsDir: in.isDir}, 0
}

// Lookup resolves path to an inode sector without opening it, used by
// Vm's exec path to find the executable file.
func (fsys *Fs_t) Lookup(path ustr.Ustr) (int, defs.Err_t) {
	sector, _, _, err := fsys.parse(path)
	return sector, err
}

// Open resolves path to a file handle, creating a new regular file at
// the final component when flags&defs.O_CREAT is set and it does not
// yet exist. Opening a directory is allowed (readdir uses the same
// handle type); creating one is Mkdir's job, not Open's.
func (fsys *Fs_t) Open(path ustr.Ustr, flags int) (*FileHandle, defs.Err_t) {
	fsys.fsmu.Lock()
	defer fsys.fsmu.Unlock()

	sector, parentSector, last, err := fsys.parse(path)
	created := false
	if err == -defs.ENOENT && flags&defs.O_CREAT != 0 {
		parentIn, perr := fsys.readInode(parentSector)
		if perr != 0 {
			return nil, perr
		}
		if !parentIn.isDir {
			return nil, -defs.ENOTDIR
		}
		newSector, aerr := fsys.allocSector()
		if aerr != 0 {
			return nil, aerr
		}
		in := &inode_t{magic: InodeMagic}
		if werr := fsys.writeInode(newSector, in); werr != 0 {
			return nil, werr
		}
		if derr := fsys.dirAdd(parentSector, parentIn, last, newSector); derr != 0 {
			return nil, derr
		}
		sector = newSector
		err = 0
		created = true
	}
	if err != 0 {
		return nil, err
	}
	if !created && flags&defs.O_CREAT != 0 && flags&defs.O_EXCL != 0 {
		return nil, -defs.EEXIST
	}
	return fsys.openSector(sector)
}

func (fsys *Fs_t) openSector(sector int) (*FileHandle, defs.Err_t) {
	in, err := fsys.readInode(sector)
	if err != 0 {
		return nil, err
	}
	fsys.openRef(sector)
	return &FileHandle{fs: fsys, sector: sector, cachedLen: in.length, isDir: in.isDir, refs: 1}, 0
}

// Mkdir creates an empty directory at path, with "." and ".." entries
// already populated.
func (fsys *Fs_t) Mkdir(path ustr.Ustr) defs.Err_t {
	fsys.fsmu.Lock()
	defer fsys.fsmu.Unlock()

	_, parentSector, last, err := fsys.parse(path)
	if err == 0 {
		return -defs.EEXIST
	}
	if err != -defs.ENOENT {
		return err
	}
	parentIn, perr := fsys.readInode(parentSector)
	if perr != 0 {
		return perr
	}
	if !parentIn.isDir {
		return -defs.ENOTDIR
	}
	newSector, aerr := fsys.allocSector()
	if aerr != 0 {
		return aerr
	}
	in := &inode_t{magic: InodeMagic, isDir: true}
	fsys.writeInode(newSector, in)
	fsys.dirAdd(newSector, in, ustr.MkUstrDot(), newSector)
	fsys.dirAdd(newSector, in, ustr.DotDot, parentSector)
	return fsys.dirAdd(parentSector, parentIn, last, newSector)
}

// Remove unlinks path. A regular file whose inode is still referenced
// by an open FileHandle is not freed immediately -- it is recorded in
// the orphan table and reaped on the handle's final Close (or at the
// next Mount, if the kernel never got the chance), per the
// "orphan-inode cleanup" behavior spec.md's original Pintos ancestor
// implements via its own open-count bookkeeping.
func (fsys *Fs_t) Remove(path ustr.Ustr) defs.Err_t {
	fsys.fsmu.Lock()
	defer fsys.fsmu.Unlock()

	sector, parentSector, last, err := fsys.parse(path)
	if err != 0 {
		return err
	}
	in, err := fsys.readInode(sector)
	if err != 0 {
		return err
	}
	if in.isDir {
		empty, eerr := fsys.dirEmpty(sector, in)
		if eerr != 0 {
			return eerr
		}
		if !empty {
			return -defs.ENOTEMPTY
		}
	}
	parentIn, perr := fsys.readInode(parentSector)
	if perr != 0 {
		return perr
	}
	if derr := fsys.dirRemove(parentSector, parentIn, last); derr != 0 {
		return derr
	}

	if fsys.openCountOf(sector) > 0 {
		in.removed = true
		if werr := fsys.writeInode(sector, in); werr != 0 {
			return werr
		}
		fsys.addOrphan(sector)
		return 0
	}
	return fsys.freeInode(sector, in)
}

func (fsys *Fs_t) freeInode(sector int, in *inode_t) defs.Err_t {
	n := (in.length + cache.SectorSize - 1) / cache.SectorSize
	for b := 0; b < n; b++ {
		if ds, err := fsys.position(in, sector, b*cache.SectorSize, false); err == 0 {
			fsys.freeSector(ds)
		}
	}
	if in.indirect != 0 {
		fsys.freeSector(int(in.indirect))
	}
	if in.dindirect != 0 {
		var b [cache.SectorSize]byte
		fsys.cache.Read(int(in.dindirect), b[:], false)
		for i := 0; i < PtrsPerSector; i++ {
			if mid := getU32(b[:], 4*i); mid != 0 {
				fsys.freeSector(int(mid))
			}
		}
		fsys.freeSector(int(in.dindirect))
	}
	in.removed = true
	fsys.writeInode(sector, in)
	return fsys.freeSector(sector)
}

// --- open-inode refcounting, for the orphan-cleanup rule above. Scoped
// per Fs_t since sector numbers are only unique within one disk image --
// two mounted file systems must not share one counter. ---

func (fsys *Fs_t) openCountOf(sector int) int {
	fsys.openMu.Lock()
	defer fsys.openMu.Unlock()
	return fsys.openCount[sector]
}

func (fsys *Fs_t) openRef(sector int) {
	fsys.openMu.Lock()
	fsys.openCount[sector]++
	fsys.openMu.Unlock()
}

func (fsys *Fs_t) openUnref(sector int) int {
	fsys.openMu.Lock()
	defer fsys.openMu.Unlock()
	fsys.openCount[sector]--
	n := fsys.openCount[sector]
	if n <= 0 {
		delete(fsys.openCount, sector)
	}
	return n
}

// --- orphan table: a flat array of sector numbers (0 = empty slot) at
// OrphanSector, swept on Mount so a crash between Remove's dirRemove and
// freeInode doesn't leak the sector forever. ---

func (fsys *Fs_t) addOrphan(sector int) {
	var b [cache.SectorSize]byte
	fsys.cache.Read(OrphanSector, b[:], false)
	for i := 0; i < cache.SectorSize/4; i++ {
		if getU32(b[:], 4*i) == 0 {
			putU32(b[:], 4*i, uint32(sector))
			fsys.cache.Write(OrphanSector, b[:], false)
			return
		}
	}
	klog.Warnf("fs: orphan table full, leaking sector %d", sector)
}

func (fsys *Fs_t) removeOrphan(sector int) {
	var b [cache.SectorSize]byte
	fsys.cache.Read(OrphanSector, b[:], false)
	for i := 0; i < cache.SectorSize/4; i++ {
		if getU32(b[:], 4*i) == uint32(sector) {
			putU32(b[:], 4*i, 0)
			fsys.cache.Write(OrphanSector, b[:], false)
			return
		}
	}
}

func (fsys *Fs_t) sweepOrphans() {
	var b [cache.SectorSize]byte
	fsys.cache.Read(OrphanSector, b[:], false)
	for i := 0; i < cache.SectorSize/4; i++ {
		sector := getU32(b[:], 4*i)
		if sector == 0 {
			continue
		}
		in, err := fsys.readInode(int(sector))
		if err == 0 {
			fsys.freeInode(int(sector), in)
			klog.Infof("fs: reclaimed orphan inode at sector %d", sector)
		}
		putU32(b[:], 4*i, 0)
	}
	fsys.cache.Write(OrphanSector, b[:], false)
}
