package fs

import (
	"bpath"
	"defs"
	"ustr"
)

// parse resolves an already-canonicalized path (see bpath.Canonicalize,
// applied by the caller via cwd.Canonicalpath) to the inode sector it
// names, walking "." and ".." against the live directory tree as it
// goes -- bpath only collapses slashes, it does not know about the
// tree. Returns (sector, parentSector, lastComponent, err); parentSector
// and lastComponent are populated even on ENOENT so callers creating a
// new entry (open O_CREAT, mkdir) can do so without a second walk.
func (fsys *Fs_t) parse(p ustr.Ustr) (int, int, ustr.Ustr, defs.Err_t) {
	p = bpath.Canonicalize(p)
	parts := bpath.Split(p)

	cur := RootSector
	parent := RootSector
	var last ustr.Ustr

	for i, part := range parts {
		last = part
		parent = cur

		if part.Isdot() {
			continue
		}

		// get_next_part-style tokenization (original_source's
		// filesys/directory.c): reject any component over NAME_MAX
		// bytes before it ever reaches a directory entry, rather than
		// relying solely on dirAdd's own guard at creation time.
		if len(part) > NameMax {
			return 0, 0, nil, -defs.ENAMETOOLONG
		}

		in, err := fsys.readInode(cur)
		if err != 0 {
			return 0, 0, nil, err
		}
		if !in.isDir {
			return 0, 0, nil, -defs.ENOTDIR
		}

		if part.Isdotdot() {
			child, err := fsys.dirLookup(cur, in, ustr.DotDot)
			if err != 0 {
				return 0, 0, nil, err
			}
			if child == 0 {
				child = RootSector // ".." above root stays at root
			}
			cur = child
			continue
		}

		child, err := fsys.dirLookup(cur, in, part)
		if err != 0 {
			return 0, 0, nil, err
		}
		if child == 0 {
			if i != len(parts)-1 {
				return 0, 0, nil, -defs.ENOENT
			}
			return 0, parent, last, -defs.ENOENT
		}
		cur = child
	}

	if len(parts) == 0 {
		return RootSector, RootSector, ustr.MkUstrRoot(), 0
	}
	return cur, parent, last, 0
}
