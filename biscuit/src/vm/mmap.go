package vm

import (
	"mem"

	"bounds"
	"defs"
)

// Mmap reserves [addr, addr+file.Size()) as an Mmap-role VMA region
// backed by file, per spec.md §4.2: addr must be page-aligned and
// non-null, and the file must be non-empty. The reservation is lazy --
// no frame is allocated until the first fault. It returns a fresh map-id,
// never reused within the address space's lifetime.
func (as *Vm_t) Mmap(addr uintptr, file FileBacker) (int, defs.Err_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()

	if addr == 0 || !bounds.PageAligned(addr, mem.PGSIZE) {
		return 0, -defs.EINVAL
	}
	sz := file.Size()
	if sz <= 0 {
		return 0, -defs.EINVAL
	}
	end := addr + bounds.RoundupPage(uintptr(sz), mem.PGSIZE)
	cand := bounds.Range_t{Begin: addr, End: end}
	if _, ok := as.Vmregion.Lookup(addr); ok {
		return 0, -defs.EINVAL
	}
	for _, v := range as.Vmregion.segs {
		if v.Range.Overlaps(cand) {
			return 0, -defs.EINVAL
		}
	}

	as.nextMapID++
	id := as.nextMapID
	as.Vmregion.Add(&Vminfo_t{
		Range: cand,
		Role:  RoleMmap,
		Perms: PTE_W,
		MapID: id,
		File:  file,
	})
	return id, 0
}

// Munmap walks the mmap region named by id, writes any dirty pages back
// to the file at their corresponding offsets, closes the file handle, and
// removes the mmap-node (spec.md §4.2).
func (as *Vm_t) Munmap(id int) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()

	vmi, ok := as.Vmregion.Remove(id)
	if !ok {
		return -defs.EINVAL
	}
	for upage := vmi.Range.Begin; upage < vmi.Range.End; upage += uintptr(mem.PGSIZE) {
		sp, ok := as.spt[upage]
		if !ok || sp.Location != LocMemory {
			continue
		}
		pte, ok := as.Pmap.Walk(upage, false)
		if ok && pte.Dirty() {
			writebackPage(as, vmi, upage, *sp.Frame)
		}
		Frames.Free(*sp.Frame)
		delete(as.spt, upage)
		as.Pmap.Clear(upage)
	}
	vmi.File.Close()
	return 0
}
