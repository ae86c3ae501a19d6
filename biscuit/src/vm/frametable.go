package vm

import (
	"sync"

	"klog"
	"mem"
	"oommsg"
)

// frameOwner records which SPT entry a physical frame currently backs, so
// the clock hand can find the hardware PTE to inspect/evict and the SPT
// entry to update. A nil As means the frame is unowned (fresh from
// mem.Physmem, not yet assigned).
type frameOwner struct {
	as     *Vm_t
	upage  uintptr
	pinned bool
}

// FrameTable_t is the single system-wide frame table (spec.md §3's Frame
// entity: "kernel-accessible page; back-ref to single page-node; pinned
// flag"). It layers ownership and eviction on top of mem.Physmem's raw
// allocator, which only knows about refcounts.
type FrameTable_t struct {
	mu      sync.Mutex
	owners  map[mem.Pa_t]*frameOwner
	clock   []mem.Pa_t // all frames ever handed out, for the clock hand
	handIdx int
}

var Frames = &FrameTable_t{owners: make(map[mem.Pa_t]*frameOwner)}

// Pin marks a frame ineligible for eviction -- used around syscalls that
// touch user memory, per spec.md §4.2's "Pinning" note, to prevent a
// recursive fault from evicting the very page being copied.
func (ft *FrameTable_t) Pin(pa mem.Pa_t) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if o, ok := ft.owners[pa]; ok {
		o.pinned = true
	}
}

// Unpin reverses Pin.
func (ft *FrameTable_t) Unpin(pa mem.Pa_t) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if o, ok := ft.owners[pa]; ok {
		o.pinned = false
	}
}

// Alloc hands back a zero-filled frame for upage in as, evicting a victim
// first if the pool is exhausted. The caller must hold as's pmap lock.
func (ft *FrameTable_t) Alloc(as *Vm_t, upage uintptr) (mem.Pa_t, bool) {
	_, pa, ok := mem.Physmem.Refpg_new()
	if !ok {
		if !ft.evictOne(as) {
			ft.notifyOOM()
			_, pa, ok = mem.Physmem.Refpg_new()
			if !ok {
				return 0, false
			}
		} else {
			_, pa, ok = mem.Physmem.Refpg_new()
			if !ok {
				return 0, false
			}
		}
	}
	ft.mu.Lock()
	ft.owners[pa] = &frameOwner{as: as, upage: upage}
	ft.clock = append(ft.clock, pa)
	ft.mu.Unlock()
	return pa, true
}

// Free releases a frame back to the pool and removes its owner record.
// Called when an SPT entry is destroyed (unmap, process exit).
func (ft *FrameTable_t) Free(pa mem.Pa_t) {
	ft.mu.Lock()
	delete(ft.owners, pa)
	for i, c := range ft.clock {
		if c == pa {
			ft.clock = append(ft.clock[:i], ft.clock[i+1:]...)
			break
		}
	}
	ft.mu.Unlock()
	mem.Physmem.Refdown(pa)
}

func (ft *FrameTable_t) notifyOOM() {
	resume := make(chan bool, 1)
	select {
	case oommsg.OomCh <- oommsg.Oommsg_t{Need: mem.PGSIZE, Resume: resume}:
		<-resume
	default:
		// no OOM listener registered (e.g. in tests); proceed and let
		// the subsequent Refpg_new simply fail.
	}
}

// evictOne runs one pass of second-chance clock eviction over non-pinned
// frames, preferring a not-accessed/not-dirty victim (spec.md §4.2's
// eviction policy). Mmap-role dirty victims are written back to their
// file; other dirty victims would spill to swap, which this kernel does
// not implement (see spec's Open Questions) -- evictOne therefore skips
// dirty anonymous pages entirely rather than silently dropping data.
//
// caller is the address space whose pmap lock the invoking pagefault
// already holds (Alloc's doc comment). A candidate victim owned by that
// same address space must NOT be locked again here -- Vm_t's pmap mutex
// isn't reentrant, and in a single-process boot (every test, and the
// kernel's own init) every frame belongs to that one address space, so
// re-locking it would deadlock the first eviction under memory
// pressure. Such a victim's pmap is instead inspected directly, relying
// on the lock the caller already took.
func (ft *FrameTable_t) evictOne(caller *Vm_t) bool {
	ft.mu.Lock()
	n := len(ft.clock)
	if n == 0 {
		ft.mu.Unlock()
		return false
	}
	start := ft.handIdx % n
	for i := 0; i < 2*n; i++ {
		idx := (start + i) % n
		pa := ft.clock[idx]
		o := ft.owners[pa]
		if o == nil || o.pinned {
			continue
		}
		selfLocked := o.as == caller
		if !selfLocked {
			o.as.Lock_pmap()
		}
		pte, ok := o.as.Pmap.Walk(o.upage, false)
		if !ok || pte == nil {
			if !selfLocked {
				o.as.Unlock_pmap()
			}
			continue
		}
		vmi, _ := o.as.Vmregion.Lookup(o.upage)
		if pte.Accessed() {
			pte.ClearAccessed()
			if !selfLocked {
				o.as.Unlock_pmap()
			}
			continue
		}
		if pte.Dirty() {
			if vmi != nil && vmi.Role == RoleMmap {
				writebackPage(o.as, vmi, o.upage, pa)
			} else {
				// anonymous dirty page: swap not implemented, not a
				// safe victim.
				if !selfLocked {
					o.as.Unlock_pmap()
				}
				continue
			}
		}
		pte.Invalidate()
		if sp, ok := o.as.spt[o.upage]; ok {
			sp.Location = LocNotPresent
			sp.Frame = nil
		}
		if !selfLocked {
			o.as.Unlock_pmap()
		}
		ft.handIdx = (idx + 1) % n
		ft.mu.Unlock()
		klog.Debugf("vm: evicted upage=%#x pa=%#x", o.upage, pa)
		ft.Free(pa)
		return true
	}
	ft.mu.Unlock()
	return false
}

func writebackPage(as *Vm_t, vmi *Vminfo_t, upage uintptr, pa mem.Pa_t) {
	pg := mem.Physmem.Dmap(pa)
	off := vmi.FileOff + int64(upage-vmi.Range.Begin)
	n := mem.PGSIZE
	if rem := vmi.Range.End - upage; uintptr(n) > rem {
		n = int(rem)
	}
	if _, err := vmi.File.WriteAt(pg[:n], off); err != nil {
		klog.Warnf("vm: writeback upage=%#x failed: %v", upage, err)
	}
}
