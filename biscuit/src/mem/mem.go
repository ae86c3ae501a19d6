// Package mem implements the kernel's fixed physical-frame pool (spec.md
// §3's Frame entity and §4.2's "Frame pool"). The teacher's mem.Physmem_t
// backs this with real physical memory reached through a bespoke Go
// runtime fork (runtime.Get_phys, unsafe direct-map pointer arithmetic,
// per-CPU free lists sharded by runtime.CPUHint()). None of that substrate
// exists in an ordinary Go program, and SMP is explicitly out of scope
// (spec.md §1), so this is a substrate change, not a scope cut: the same
// Refup/Refdown/Refpg_new shape, a single pool instead of per-CPU shards,
// plain byte-array pages instead of a direct physical-memory mapping.
package mem

import (
	"sync"
)

/// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks the offset within a page.
const PGOFFSET Pa_t = Pa_t(PGSIZE - 1)

/// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^PGOFFSET

/// Pa_t is a simulated physical frame address: an index into the frame
/// pool's backing store, shifted as if it were a real physical address, so
/// arithmetic that mirrors the teacher's (masking, shifting) still works.
type Pa_t uintptr

/// Pg_t is one page of kernel-accessible bytes.
type Pg_t [PGSIZE]byte

/// Page_i abstracts frame allocation for callers that only need
/// alloc/refcount, not the full Physmem_t API.
type Page_i interface {
	Refpg_new() (*Pg_t, Pa_t, bool)
	Refpg_new_nozero() (*Pg_t, Pa_t, bool)
	Refcnt(Pa_t) int
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

type frame_t struct {
	page   Pg_t
	refcnt int32
	inuse  bool
}

/// Physmem_t is the system-wide pool of physical frames. A fixed array
/// sized at Init time; Refpg_new draws from a simple free list built over
/// that array. There is exactly one instance per kernel (Physmem below),
/// matching spec.md's "Fixed array of physical frames."
type Physmem_t struct {
	mu    sync.Mutex
	pages []frame_t
	free  []int32 // stack of free indices
}

/// Physmem is the global frame pool, matching the teacher's global
/// singleton (flagged in spec.md §9 as something to wrap with explicit
/// init/shutdown rather than expose as a raw global -- Init does that).
var Physmem = &Physmem_t{}

/// Init allocates n frames and resets the pool. Re-Init (e.g. between
/// kernel boots in the same test process) discards prior allocations.
func Init(n int) {
	Physmem.mu.Lock()
	defer Physmem.mu.Unlock()
	Physmem.pages = make([]frame_t, n)
	Physmem.free = make([]int32, n)
	for i := 0; i < n; i++ {
		Physmem.free[i] = int32(i)
	}
}

func (p *Physmem_t) idx(pa Pa_t) int32 {
	return int32(pa >> PGSHIFT)
}

func (p *Physmem_t) _alloc(zero bool) (*Pg_t, Pa_t, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return nil, 0, false
	}
	idx := p.free[n-1]
	p.free = p.free[:n-1]
	f := &p.pages[idx]
	if f.inuse {
		panic("mem: double alloc")
	}
	f.inuse = true
	f.refcnt = 1
	if zero {
		f.page = Pg_t{}
	}
	return &f.page, Pa_t(idx) << PGSHIFT, true
}

/// Refpg_new allocates a zero-filled frame.
func (p *Physmem_t) Refpg_new() (*Pg_t, Pa_t, bool) {
	return p._alloc(true)
}

/// Refpg_new_nozero allocates a frame without zeroing it.
func (p *Physmem_t) Refpg_new_nozero() (*Pg_t, Pa_t, bool) {
	return p._alloc(false)
}

/// Dmap returns the kernel-accessible page for a simulated physical
/// address -- in the teacher this is a direct-map pointer computation; here
/// the "direct map" is simply indexing the backing array.
func (p *Physmem_t) Dmap(pa Pa_t) *Pg_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.idx(pa)
	if int(idx) < 0 || int(idx) >= len(p.pages) {
		panic("mem: out of range frame address")
	}
	return &p.pages[idx].page
}

/// Refcnt returns the current reference count of the frame at pa.
func (p *Physmem_t) Refcnt(pa Pa_t) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.pages[p.idx(pa)].refcnt)
}

/// Refup increments the reference count of the frame at pa.
func (p *Physmem_t) Refup(pa Pa_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := &p.pages[p.idx(pa)]
	if !f.inuse {
		panic("mem: refup of free frame")
	}
	f.refcnt++
}

/// Refdown decrements the reference count of the frame at pa and returns
/// the frame to the free list when it reaches zero, reporting whether it
/// did.
func (p *Physmem_t) Refdown(pa Pa_t) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.idx(pa)
	f := &p.pages[idx]
	if !f.inuse {
		panic("mem: refdown of free frame")
	}
	f.refcnt--
	if f.refcnt < 0 {
		panic("mem: negative refcount")
	}
	if f.refcnt == 0 {
		f.inuse = false
		p.free = append(p.free, idx)
		return true
	}
	return false
}

/// Nfree reports how many frames remain unallocated, for eviction/OOM
/// decisions and for tests.
func (p *Physmem_t) Nfree() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

/// Ntotal reports the pool's fixed capacity.
func (p *Physmem_t) Ntotal() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}
