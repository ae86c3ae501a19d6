package vm

import (
	"sort"

	"bounds"
	"defs"
	"mem"
)

// Role_t classifies a VMA region the way spec.md's data model does: every
// faultable user address belongs to exactly one of these, decided by
// position rather than by an open-ended permission bitmask.
type Role_t int

const (
	RoleUnused Role_t = iota
	RoleCode
	RoleData
	RoleStack
	RoleMmap
)

func (r Role_t) String() string {
	switch r {
	case RoleCode:
		return "code"
	case RoleData:
		return "data"
	case RoleStack:
		return "stack"
	case RoleMmap:
		return "mmap"
	default:
		return "unused"
	}
}

// FileBacker is the narrow slice of an open file handle the VMM needs to
// populate and write back Mmap pages. fs's open-file type implements it;
// vm does not import fs, so there is no cycle between the VMM and the
// file system it pages files in from.
type FileBacker interface {
	ReadAt(buf []byte, off int64) (int, error)
	WriteAt(buf []byte, off int64) (int, error)
	Size() int64
	Close() defs.Err_t
}

// Vminfo_t is one VMA region: a contiguous, page-aligned range of user
// address space with one Role and one permission set. Stack and code
// regions grow in place (spec.md §4.2 step 4); Mmap regions are fixed at
// reservation time.
type Vminfo_t struct {
	Range bounds.Range_t
	Role  Role_t
	Perms uintptr // PTE_W is the only bit that varies by region

	// File-backed fields: MapID is set only for Mmap regions; File and
	// FileOff also back the ELF loader's code and data regions.
	MapID int
	File  FileBacker
	// FileOff is the backing file's starting offset for this region's
	// first page -- always 0 for a single mmap() call, but kept explicit
	// since Vmregion_t stores one Vminfo_t per reservation, not per call.
	FileOff int64

	// Floor is the lowest address a Stack region is ever allowed to grow
	// down to (spec.md's "no pages are faulted below PHYS_BASE-8 MiB");
	// unused for every other Role. Range.Begin only tracks how far the
	// stack has actually grown so far, which starts well above Floor, so
	// Lookup must special-case stack regions to still find addresses
	// between Floor and the current Begin.
	Floor uintptr
}

func (v *Vminfo_t) isGuard() bool { return v.Perms == 0 }

// Vmregion_t is a process's full VMA layout: a sorted, non-overlapping
// set of regions, mirroring the teacher's Vmregion_t but without the
// COW/shadow-copy bookkeeping fork requires.
type Vmregion_t struct {
	segs []*Vminfo_t
}

// Lookup returns the region containing the page-aligned address covering
// va, if any. A Stack region also claims any address down to its Floor,
// not just its currently-grown Range, so a fault below the populated
// frontier but still above Floor reaches pagefault's growth logic
// instead of failing Lookup outright.
func (vr *Vmregion_t) Lookup(va uintptr) (*Vminfo_t, bool) {
	for _, v := range vr.segs {
		if v.Range.Contains(va) {
			return v, true
		}
		if v.Role == RoleStack && va < v.Range.End && va >= v.Floor {
			return v, true
		}
	}
	return nil, false
}

// Add inserts a new region. It panics if the region overlaps an existing
// one, enforcing spec.md's invariant that VMA regions never overlap. Mmap
// scans the existing regions for overlap itself before calling Add; the
// ELF loader does no such check.
func (vr *Vmregion_t) Add(v *Vminfo_t) {
	for _, o := range vr.segs {
		if v.Range.Overlaps(o.Range) {
			panic("vm: overlapping vma region")
		}
	}
	vr.segs = append(vr.segs, v)
	sort.Slice(vr.segs, func(i, j int) bool {
		return vr.segs[i].Range.Begin < vr.segs[j].Range.Begin
	})
}

// Remove deletes the region with the given map-id (mmap regions only).
func (vr *Vmregion_t) Remove(mapid int) (*Vminfo_t, bool) {
	for i, v := range vr.segs {
		if v.Role == RoleMmap && v.MapID == mapid {
			vr.segs = append(vr.segs[:i], vr.segs[i+1:]...)
			return v, true
		}
	}
	return nil, false
}

// GrowStack extends the stack region downward by one page, the way
// spec.md step 4 describes stack growth. newBegin must be page-aligned
// and below the current stack base.
func (vr *Vmregion_t) GrowStack(newBegin uintptr) {
	for _, v := range vr.segs {
		if v.Role == RoleStack {
			v.Range.Begin = newBegin
			return
		}
	}
	panic("vm: no stack region")
}

// GrowCode extends the code/BSS region upward by one page.
func (vr *Vmregion_t) GrowCode(newEnd uintptr) {
	for _, v := range vr.segs {
		if v.Role == RoleCode {
			v.Range.End = newEnd
			return
		}
	}
	panic("vm: no code region")
}

// Empty searches [startva, startva+length) for a page-aligned gap of at
// least length bytes not covered by any existing region, returning its
// start. Its only caller is Vm_t.Unusedva.
func (vr *Vmregion_t) Empty(startva uintptr, length uintptr) uintptr {
	start := startva &^ uintptr(mem.PGSIZE-1)
	cand := bounds.Range_t{Begin: start, End: start + length}
	for {
		clash := false
		for _, v := range vr.segs {
			if v.Range.Overlaps(cand) {
				clash = true
				cand.Begin = v.Range.End
				cand.End = cand.Begin + length
				break
			}
		}
		if !clash {
			return cand.Begin
		}
	}
}
