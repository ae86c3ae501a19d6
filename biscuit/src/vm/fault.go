package vm

import (
	"mem"

	"defs"
)

// pagefault resolves a not-present access to uva inside region vmi,
// implementing spec.md §4.2's fault algorithm:
//
//  1. classify by VMA (vmi.Role, already looked up by the caller)
//  2. a guard region or a write to a read-only region faults
//  3. an SPT entry may already exist (swapped out, or a previously
//     evicted mmap page) -- not modeled further since swap is not
//     persisted (spec's Open Questions); treat as a fresh population
//  4. allocate a frame, install it, create/refresh the SPT entry, and
//     grow the owning VMA region if it is code or stack
//  5. for Mmap, populate the frame from the backing file
//
// The caller must hold as's pmap lock.
func (as *Vm_t) pagefault(vmi *Vminfo_t, uva uintptr, ecode uintptr) defs.Err_t {
	as.Lockassert_pmap()

	iswrite := ecode&PTE_W != 0
	writeok := vmi.Perms&PTE_W != 0
	if vmi.isGuard() || (iswrite && !writeok) {
		return -defs.EFAULT
	}
	if ecode&PTE_U == 0 {
		panic("vm: fault from kernel-only access")
	}

	upage := uva &^ uintptr(mem.PGSIZE-1)

	switch vmi.Role {
	case RoleStack:
		if upage < vmi.Floor {
			// "no pages are faulted below PHYS_BASE-8 MiB" -- Lookup
			// only let this through because it's within the stack's
			// reserved growth band, not its populated frontier.
			return -defs.EFAULT
		}
		if upage < vmi.Range.Begin {
			// Spec invariant: "a read from a stack page that was never
			// allocated... terminate -- stack pages must be written
			// first." Growth only happens on a write fault.
			if !iswrite {
				return -defs.EFAULT
			}
			as.Vmregion.GrowStack(upage)
		}
	case RoleCode, RoleData:
		if upage >= vmi.Range.End {
			as.Vmregion.GrowCode(upage + uintptr(mem.PGSIZE))
		}
	}

	pa, ok := Frames.Alloc(as, upage)
	if !ok {
		return -defs.ENOMEM
	}

	// Code, data and Mmap pages are all file-backed and populated lazily
	// (spec.md §4.2: "on-demand population of pages for code, stack, and
	// mmap regions"); stack pages are anonymous and start zero-filled.
	if vmi.File != nil {
		pg := mem.Physmem.Dmap(pa)
		off := vmi.FileOff + int64(upage-vmi.Range.Begin)
		n := mem.PGSIZE
		if rem := vmi.Range.End - upage; uintptr(n) > rem {
			n = int(rem)
		}
		for i := n; i < mem.PGSIZE; i++ {
			pg[i] = 0
		}
		if off < vmi.File.Size() {
			vmi.File.ReadAt(pg[:n], off)
		}
	}

	perms := PTE_U | PTE_P
	if vmi.Perms&PTE_W != 0 {
		perms |= PTE_W
	}
	pte, _ := as.Pmap.Walk(upage, true)
	pte.Set(pa, perms)

	as.spt[upage] = &sptEntry{
		Upage:    upage,
		Role:     vmi.Role,
		Location: LocMemory,
		Frame:    &pa,
	}
	return 0
}
