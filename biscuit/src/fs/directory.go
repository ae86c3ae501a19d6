package fs

import (
	"cache"
	"defs"
	"ustr"
)

// directory.go implements directories as regular inode-backed files
// containing a flat array of fixed-size entries, per spec.md §4.3:
// "a directory's content is a sequence of (name, inode sector) pairs; a
// removed entry's sector is zeroed and the slot may be reused." Entries
// never move once allocated except on removal, so open directory file
// offsets used mid-scan stay valid -- matching Pintos's own directory
// format, which this kernel's layout is grounded on.

const (
	// NameMax is spec.md §3's data-model limit on a path component:
	// "name (≤14 bytes, NUL-terminated)".
	NameMax = 14
	// direntNameField is the on-disk storage for a name: NameMax bytes
	// plus its NUL terminator, matching §6's disk format
	// "{u32 sector, char name[15], u8 in_use}".
	direntNameField = NameMax + 1
	dirEntrySize    = direntNameField + 4 + 1 // name + sector + inuse
	direntsPerSec   = cache.SectorSize / dirEntrySize
)

type dirent_t struct {
	name   [direntNameField]byte
	nlen   int
	sector uint32
	inuse  bool
}

func decodeDirent(b []byte) dirent_t {
	var d dirent_t
	copy(d.name[:], b[:direntNameField])
	d.sector = getU32(b, direntNameField)
	d.inuse = b[direntNameField+4] != 0
	for d.nlen < direntNameField && d.name[d.nlen] != 0 {
		d.nlen++
	}
	return d
}

func (d *dirent_t) encode(b []byte) {
	for i := range b[:dirEntrySize] {
		b[i] = 0
	}
	copy(b[:direntNameField], d.name[:])
	putU32(b, direntNameField, d.sector)
	if d.inuse {
		b[direntNameField+4] = 1
	}
}

func (d *dirent_t) nameStr() ustr.Ustr {
	return ustr.Ustr(d.name[:d.nlen])
}

// dirLookup scans dirSector's directory content for name, returning the
// child inode sector or 0 if not found.
func (fsys *Fs_t) dirLookup(dirSector int, in *inode_t, name ustr.Ustr) (int, defs.Err_t) {
	n := in.length / dirEntrySize
	for i := 0; i < n; i++ {
		var b [dirEntrySize]byte
		if _, err := fsys.readAt(dirSector, in, i*dirEntrySize, b[:]); err != 0 {
			return 0, err
		}
		d := decodeDirent(b[:])
		if d.inuse && d.nameStr().Eq(name) {
			return int(d.sector), 0
		}
	}
	return 0, 0
}

// dirAdd appends (name, childSector) to dirSector's directory content,
// reusing the first removed slot if one exists.
func (fsys *Fs_t) dirAdd(dirSector int, in *inode_t, name ustr.Ustr, childSector int) defs.Err_t {
	if len(name) > NameMax {
		return -defs.ENAMETOOLONG
	}
	n := in.length / dirEntrySize
	for i := 0; i < n; i++ {
		var b [dirEntrySize]byte
		if _, err := fsys.readAt(dirSector, in, i*dirEntrySize, b[:]); err != 0 {
			return err
		}
		d := decodeDirent(b[:])
		if !d.inuse {
			return fsys.dirPutAt(dirSector, in, i, name, childSector)
		}
	}
	return fsys.dirPutAt(dirSector, in, n, name, childSector)
}

func (fsys *Fs_t) dirPutAt(dirSector int, in *inode_t, idx int, name ustr.Ustr, childSector int) defs.Err_t {
	var d dirent_t
	copy(d.name[:], name)
	d.nlen = len(name)
	d.sector = uint32(childSector)
	d.inuse = true
	var b [dirEntrySize]byte
	d.encode(b[:])
	_, err := fsys.writeAt(dirSector, in, idx*dirEntrySize, b[:])
	return err
}

// dirRemove clears the entry matching name, if present.
func (fsys *Fs_t) dirRemove(dirSector int, in *inode_t, name ustr.Ustr) defs.Err_t {
	n := in.length / dirEntrySize
	for i := 0; i < n; i++ {
		var b [dirEntrySize]byte
		if _, err := fsys.readAt(dirSector, in, i*dirEntrySize, b[:]); err != 0 {
			return err
		}
		d := decodeDirent(b[:])
		if d.inuse && d.nameStr().Eq(name) {
			var zero [dirEntrySize]byte
			_, err := fsys.writeAt(dirSector, in, i*dirEntrySize, zero[:])
			return err
		}
	}
	return -defs.ENOENT
}

// dirEmpty reports whether dirSector's directory holds nothing but
// (optionally) "." and "..".
func (fsys *Fs_t) dirEmpty(dirSector int, in *inode_t) (bool, defs.Err_t) {
	n := in.length / dirEntrySize
	for i := 0; i < n; i++ {
		var b [dirEntrySize]byte
		if _, err := fsys.readAt(dirSector, in, i*dirEntrySize, b[:]); err != 0 {
			return false, err
		}
		d := decodeDirent(b[:])
		if !d.inuse {
			continue
		}
		nm := d.nameStr()
		if nm.Isdot() || nm.Isdotdot() {
			continue
		}
		return false, 0
	}
	return true, 0
}

// dirList returns the in-use entry names, for readdir-style consumers.
func (fsys *Fs_t) dirList(dirSector int, in *inode_t) ([]ustr.Ustr, defs.Err_t) {
	var names []ustr.Ustr
	n := in.length / dirEntrySize
	for i := 0; i < n; i++ {
		var b [dirEntrySize]byte
		if _, err := fsys.readAt(dirSector, in, i*dirEntrySize, b[:]); err != 0 {
			return nil, err
		}
		d := decodeDirent(b[:])
		if d.inuse {
			names = append(names, d.nameStr())
		}
	}
	return names, 0
}
