// Package vm implements the per-process virtual-memory manager: the
// supplemental page table, frame table, lazy page population for code,
// stack and memory-mapped files, and the user/kernel memory-copy helpers
// the syscall layer uses to reach into user space (spec.md §4.2). The
// shape -- Vm_t, Vmregion_t, Lock_pmap/Unlock_pmap, Userdmap8_inner
// resolving a fault lazily -- follows the teacher's vm/as.go; the COW,
// fork and cross-CPU TLB-shootdown machinery in the teacher's Sys_pgfault
// has no counterpart in spec.md (no fork syscall is in scope) and is not
// carried over.
package vm

import (
	"sync"
	"time"

	"defs"
	"mem"
	"ustr"
	"util"
)

// Vm_t is one process's address space: its VMA layout, its supplemental
// page table, and the simulated hardware page table backing it.
type Vm_t struct {
	sync.Mutex

	Vmregion Vmregion_t
	Pmap     *Pmap_t
	spt      map[uintptr]*sptEntry

	nextMapID int
	pgfltaken bool
}

// NewVm returns an empty address space, ready to have segments installed
// by the ELF loader.
func NewVm() *Vm_t {
	return &Vm_t{
		Pmap: NewPmap(),
		spt:  make(map[uintptr]*sptEntry),
	}
}

// Lock_pmap acquires the address space mutex and marks that page-table
// manipulation is in progress, the way the teacher's Vm_t does for single-
// CPU deadlock diagnosis.
func (as *Vm_t) Lock_pmap() {
	as.Lock()
	as.pgfltaken = true
}

// Unlock_pmap releases the address space mutex.
func (as *Vm_t) Unlock_pmap() {
	as.pgfltaken = false
	as.Unlock()
}

// Lockassert_pmap panics if the address space mutex is not held.
func (as *Vm_t) Lockassert_pmap() {
	if !as.pgfltaken {
		panic("vm: pmap lock must be held")
	}
}

// Userdmap8_inner returns the kernel-accessible slice backing the user
// page containing va, resolving a page fault first if the page is not
// yet present. k2u requests write access (the kernel is about to write
// through a user pointer, e.g. to satisfy a read syscall).
func (as *Vm_t) Userdmap8_inner(va int, k2u bool) ([]uint8, defs.Err_t) {
	as.Lockassert_pmap()

	voff := va & (mem.PGSIZE - 1)
	uva := uintptr(va)
	vmi, ok := as.Vmregion.Lookup(uva)
	if !ok {
		return nil, -defs.EFAULT
	}
	if vmi.isGuard() {
		return nil, -defs.EFAULT
	}
	if k2u && vmi.Perms&PTE_W == 0 {
		return nil, -defs.EFAULT
	}

	upage := uva &^ uintptr(mem.PGSIZE-1)
	pte, _ := as.Pmap.Walk(upage, true)
	if !pte.Present() {
		ecode := PTE_U
		if k2u {
			ecode |= PTE_W
		}
		if err := as.pagefault(vmi, uva, ecode); err != 0 {
			return nil, err
		}
		pte, _ = as.Pmap.Walk(upage, false)
	}

	pg := mem.Physmem.Dmap(pte.Addr())
	if k2u {
		*pte |= Pte_t(PTE_D)
	}
	*pte |= Pte_t(PTE_A)
	return pg[voff:], 0
}

func (as *Vm_t) _userdmap8(va int, k2u bool) ([]uint8, defs.Err_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.Userdmap8_inner(va, k2u)
}

// Userdmap8r maps the user address for reading.
func (as *Vm_t) Userdmap8r(va int) ([]uint8, defs.Err_t) {
	return as._userdmap8(va, false)
}

func (as *Vm_t) usermapped(va, n int) bool {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	_, ok := as.Vmregion.Lookup(uintptr(va))
	return ok
}

// Userreadn reads n (<=8) bytes from the user address va as a
// little-endian integer.
func (as *Vm_t) Userreadn(va, n int) (int, defs.Err_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.userreadn_inner(va, n)
}

func (as *Vm_t) userreadn_inner(va, n int) (int, defs.Err_t) {
	as.Lockassert_pmap()
	if n > 8 {
		panic("vm: large n")
	}
	var ret int
	for i := 0; i < n; {
		src, err := as.Userdmap8_inner(va+i, false)
		if err != 0 {
			return 0, err
		}
		l := n - i
		if len(src) < l {
			l = len(src)
		}
		v := util.Readn(src, l, 0)
		ret |= v << (8 * uint(i))
		i += l
	}
	return ret, 0
}

// Userwriten writes the low n bytes of val to the user address va.
func (as *Vm_t) Userwriten(va, n, val int) defs.Err_t {
	if n > 8 {
		panic("vm: large n")
	}
	as.Lock_pmap()
	defer as.Unlock_pmap()
	for i := 0; i < n; {
		dst, err := as.Userdmap8_inner(va+i, true)
		if err != 0 {
			return err
		}
		l := n - i
		if len(dst) < l {
			l = len(dst)
		}
		util.Writen(dst, l, 0, val>>(8*uint(i)))
		i += l
	}
	return 0
}

// Userstr copies a NUL-terminated string from user space, up to lenmax
// bytes.
func (as *Vm_t) Userstr(uva int, lenmax int) (ustr.Ustr, defs.Err_t) {
	if lenmax < 0 {
		return nil, 0
	}
	as.Lock_pmap()
	defer as.Unlock_pmap()
	s := ustr.MkUstr()
	i := 0
	for {
		str, err := as.Userdmap8_inner(uva+i, false)
		if err != 0 {
			return nil, err
		}
		for j, c := range str {
			if c == 0 {
				return append(s, str[:j]...), 0
			}
		}
		s = append(s, str...)
		i += len(str)
		if len(s) >= lenmax {
			return nil, -defs.ENAMETOOLONG
		}
	}
}

// Usertimespec reads a {secs, nsecs} pair from user memory at va.
func (as *Vm_t) Usertimespec(va int) (time.Duration, time.Time, defs.Err_t) {
	var zt time.Time
	secs, err := as.Userreadn(va, 8)
	if err != 0 {
		return 0, zt, err
	}
	nsecs, err := as.Userreadn(va+8, 8)
	if err != 0 {
		return 0, zt, err
	}
	if secs < 0 || nsecs < 0 {
		return 0, zt, -defs.EINVAL
	}
	tot := time.Duration(secs)*time.Second + time.Duration(nsecs)*time.Nanosecond
	return tot, time.Unix(int64(secs), int64(nsecs)), 0
}

// K2user copies src into the user address space starting at uva.
func (as *Vm_t) K2user(src []uint8, uva int) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.K2user_inner(src, uva)
}

func (as *Vm_t) K2user_inner(src []uint8, uva int) defs.Err_t {
	as.Lockassert_pmap()
	cnt := 0
	for cnt != len(src) {
		dst, err := as.Userdmap8_inner(uva+cnt, true)
		if err != 0 {
			return err
		}
		n := copy(dst, src[cnt:])
		if n == 0 {
			return -defs.EFAULT
		}
		cnt += n
	}
	return 0
}

// User2k copies len(dst) bytes from the user address uva into dst.
func (as *Vm_t) User2k(dst []uint8, uva int) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	return as.User2k_inner(dst, uva)
}

func (as *Vm_t) User2k_inner(dst []uint8, uva int) defs.Err_t {
	as.Lockassert_pmap()
	cnt := 0
	for cnt != len(dst) {
		src, err := as.Userdmap8_inner(uva+cnt, false)
		if err != 0 {
			return err
		}
		n := copy(dst[cnt:], src)
		if n == 0 {
			return -defs.EFAULT
		}
		cnt += n
	}
	return 0
}

// Unusedva finds a page-aligned gap of at least length bytes at or after
// startva. The loader places the stack at the fixed StackTop and Mmap
// takes a caller-chosen address, so neither calls it.
func (as *Vm_t) Unusedva(startva, length int) int {
	as.Lockassert_pmap()
	start := util.Rounddown(startva, mem.PGSIZE)
	if start < 0 {
		start = 0
	}
	return int(as.Vmregion.Empty(uintptr(start), uintptr(length)))
}

// Destroy frees every frame owned by this address space's SPT, for
// process exit (spec.md's Cancellation: "frees all process-owned
// resources... before the thread transitions to Dying").
func (as *Vm_t) Destroy() {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	for upage, sp := range as.spt {
		if sp.Location == LocMemory && sp.Frame != nil {
			Frames.Free(*sp.Frame)
		}
		delete(as.spt, upage)
		as.Pmap.Clear(upage)
	}
	closed := map[FileBacker]bool{}
	for _, vmi := range as.Vmregion.segs {
		if vmi.File != nil && !closed[vmi.File] {
			vmi.File.Close()
			closed[vmi.File] = true
		}
	}
}
