package fs

import (
	"sync"

	"cache"
	"defs"
	"fdops"
	"ustr"
)

// FileHandle is the single open-file type this kernel uses for every
// fd-visible object and for every Vm mmap mapping: it implements
// fdops.Fdops_i (for read/write/lseek/fstat syscalls) and vm.FileBacker
// (ReadAt/WriteAt/Size/Close, for lazy page population and mmap
// writeback) over the same inode, so a file opened, mmap'd, and closed
// again shares one cache-backed view of its content -- there is no
// separate "page cache" from "buffer cache" split.
type FileHandle struct {
	fs     *Fs_t
	sector int
	isDir  bool

	mu        sync.Mutex
	off       int
	cachedLen int
	refs      int // live references (the handle itself, plus one per Reopen); the sector is only unreffed in the fs when this drops to 0
}

// --- fdops.Fdops_i ---

func (fh *FileHandle) Read(dst fdops.Ubuf_i) (int, defs.Err_t) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if fh.isDir {
		return 0, -defs.EISDIR
	}
	in, err := fh.fs.readInode(fh.sector)
	if err != 0 {
		return 0, err
	}
	var buf [cache.SectorSize]byte
	did := 0
	for did < dst.Remain() {
		n := len(buf)
		if rem := dst.Remain() - did; n > rem {
			n = rem
		}
		got, rerr := fh.fs.readAt(fh.sector, in, fh.off, buf[:n])
		if rerr != 0 {
			return did, rerr
		}
		if got == 0 {
			break
		}
		wrote, werr := dst.Uiowrite(buf[:got])
		fh.off += wrote
		did += wrote
		if werr != 0 {
			return did, werr
		}
		if wrote < got {
			break
		}
	}
	return did, 0
}

func (fh *FileHandle) Write(src fdops.Ubuf_i) (int, defs.Err_t) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if fh.isDir {
		return 0, -defs.EISDIR
	}
	in, err := fh.fs.readInode(fh.sector)
	if err != 0 {
		return 0, err
	}
	var buf [cache.SectorSize]byte
	did := 0
	for src.Remain() > 0 {
		n := len(buf)
		if rem := src.Remain(); n > rem {
			n = rem
		}
		got, rerr := src.Uioread(buf[:n])
		if got == 0 {
			if rerr != 0 {
				return did, rerr
			}
			break
		}
		wrote, werr := fh.fs.writeAt(fh.sector, in, fh.off, buf[:got])
		fh.off += wrote
		did += wrote
		if werr != 0 {
			return did, werr
		}
		if wrote < got {
			break
		}
	}
	fh.cachedLen = in.length
	return did, 0
}

func (fh *FileHandle) Close() defs.Err_t {
	fh.mu.Lock()
	if fh.refs <= 0 {
		fh.mu.Unlock()
		return 0
	}
	fh.refs--
	if fh.refs > 0 {
		fh.mu.Unlock()
		return 0
	}
	sector := fh.sector
	fh.mu.Unlock()
	if fh.fs.openUnref(sector) == 0 {
		fh.fs.fsmu.Lock()
		defer fh.fs.fsmu.Unlock()
		in, err := fh.fs.readInode(sector)
		if err == 0 && in.removed {
			fh.fs.removeOrphan(sector)
			fh.fs.freeInode(sector, in)
		}
	}
	return 0
}

func (fh *FileHandle) Reopen() defs.Err_t {
	fh.mu.Lock()
	fh.refs++
	fh.mu.Unlock()
	return 0
}

func (fh *FileHandle) Lseek(off, whence int) defs.Err_t {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	switch whence {
	case defs.SEEK_SET:
		fh.off = off
	case defs.SEEK_CUR:
		fh.off += off
	case defs.SEEK_END:
		fh.off = fh.cachedLen + off
	default:
		return -defs.EINVAL
	}
	if fh.off < 0 {
		fh.off = 0
		return -defs.EINVAL
	}
	return 0
}

func (fh *FileHandle) Fsize() (int, defs.Err_t) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	in, err := fh.fs.readInode(fh.sector)
	if err != 0 {
		return 0, err
	}
	return in.length, 0
}

// Readdir returns the next not-yet-returned in-use entry name in a
// directory handle, skipping "." and "..", or (nil, 0) once exhausted.
// It advances the handle's own read cursor, so repeated calls walk the
// directory exactly once, matching spec.md's readdir(fd, name) contract.
func (fh *FileHandle) Readdir() (ustr.Ustr, defs.Err_t) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if !fh.isDir {
		return nil, -defs.ENOTDIR
	}
	in, err := fh.fs.readInode(fh.sector)
	if err != 0 {
		return nil, err
	}
	for fh.off+dirEntrySize <= in.length {
		var b [dirEntrySize]byte
		if _, rerr := fh.fs.readAt(fh.sector, in, fh.off, b[:]); rerr != 0 {
			return nil, rerr
		}
		fh.off += dirEntrySize
		d := decodeDirent(b[:])
		if !d.inuse {
			continue
		}
		nm := d.nameStr()
		if nm.Isdot() || nm.Isdotdot() {
			continue
		}
		return nm, 0
	}
	return nil, 0
}

// IsDir reports whether this handle was opened on a directory inode.
func (fh *FileHandle) IsDir() bool {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	return fh.isDir
}

// Inumber returns the handle's backing inode sector, this kernel's
// stand-in for a persistent inode number.
func (fh *FileHandle) Inumber() int {
	return fh.sector
}

// Truncate sets the file's length to newSize, zero-extending if it
// grows, used by create(name, initial_size) to pre-size a new file.
func (fh *FileHandle) Truncate(newSize int) defs.Err_t {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	in, err := fh.fs.readInode(fh.sector)
	if err != 0 {
		return err
	}
	if newSize <= in.length {
		in.length = newSize
		return fh.fs.writeInode(fh.sector, in)
	}
	return fh.fs.extend(fh.sector, in, newSize)
}

// --- vm.FileBacker ---

func (fh *FileHandle) ReadAt(buf []byte, off int64) (int, error) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	in, err := fh.fs.readInode(fh.sector)
	if err != 0 {
		return 0, errForIO(err)
	}
	n, rerr := fh.fs.readAt(fh.sector, in, int(off), buf)
	if rerr != 0 {
		return n, errForIO(rerr)
	}
	return n, nil
}

func (fh *FileHandle) WriteAt(buf []byte, off int64) (int, error) {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	in, err := fh.fs.readInode(fh.sector)
	if err != 0 {
		return 0, errForIO(err)
	}
	n, werr := fh.fs.writeAt(fh.sector, in, int(off), buf)
	if werr != 0 {
		return n, errForIO(werr)
	}
	fh.cachedLen = in.length
	return n, nil
}

func (fh *FileHandle) Size() int64 {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	in, err := fh.fs.readInode(fh.sector)
	if err != 0 {
		return 0
	}
	return int64(in.length)
}

type ioErr struct{ e defs.Err_t }

func (e ioErr) Error() string { return e.e.String() }

func errForIO(e defs.Err_t) error {
	if e == 0 {
		return nil
	}
	return ioErr{e}
}
