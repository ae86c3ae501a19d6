// Package cache implements the kernel's fixed-size buffer cache
// (spec.md §4.4): a bounded set of sector-sized entries, a hash table
// from sector number to entry, and clock-second-chance eviction with
// write-back. It is the only component that writes disk sectors.
package cache

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"defs"
	"hashtable"
)

// SectorSize is the on-disk unit spec.md's file system lays out inodes,
// directory entries and data blocks in: 512 bytes, not the teacher's
// 4096-byte log-structured block, since SPEC_FULL.md follows the
// original Pintos inode format (12 direct + 1 single + 1 double indirect
// 512-byte sectors).
const SectorSize = 512

// NumEntries is the fixed cache size spec.md §4.4 names: "Fixed set of 64
// entries, each holding one sector."
const NumEntries = 64

// Disk_i is the block device the cache reads and writes through.
// Grounded on the teacher's fs.Disk_i, narrowed to the single
// synchronous read/write pair this kernel's disk image actually needs
// (no async Bdev_req_t/AckCh queueing -- there is only ever one
// outstanding request since the cache serializes access per entry).
type Disk_i interface {
	ReadSector(sector int, dst []byte) error
	WriteSector(sector int, src []byte) error
}

type entry_t struct {
	mu       sync.Mutex
	sector   int
	data     [SectorSize]byte
	valid    bool
	dirty    bool
	accessed bool
	pinCount int
}

// Cache_t is the system-wide buffer cache.
type Cache_t struct {
	disk Disk_i

	mu      sync.Mutex // protects slots/ht/clockHand, not entry contents
	slots   [NumEntries]*entry_t
	ht      *hashtable.Hashtable_t // sector -> *entry_t
	clockHand int
	nextFree  int
}

func New(disk Disk_i) *Cache_t {
	c := &Cache_t{disk: disk, ht: hashtable.MkHash(NumEntries * 2)}
	for i := range c.slots {
		c.slots[i] = &entry_t{}
	}
	return c
}

// lookupOrInstall returns the entry for sector, installing it (reading
// through to disk, possibly evicting a victim) on miss. pin, when true,
// keeps the entry from being evicted until Unpin is called.
func (c *Cache_t) lookupOrInstall(sector int, pin bool) (*entry_t, defs.Err_t) {
	c.mu.Lock()
	if v, ok := c.ht.Get(sector); ok {
		e := v.(*entry_t)
		c.mu.Unlock()
		e.mu.Lock()
		e.accessed = true
		if pin {
			e.pinCount++
		}
		e.mu.Unlock()
		return e, 0
	}

	e, err := c.evictLocked()
	if err != 0 {
		c.mu.Unlock()
		return nil, err
	}
	e.mu.Lock()
	e.sector = sector
	e.valid = true
	e.dirty = false
	e.accessed = true
	if pin {
		e.pinCount = 1
	} else {
		e.pinCount = 0
	}
	e.mu.Unlock()
	c.ht.Set(sector, e)
	c.mu.Unlock()

	if err := c.disk.ReadSector(sector, e.data[:]); err != nil {
		return nil, -defs.EIO
	}
	return e, 0
}

// evictLocked picks a clock-second-chance victim among unpinned entries,
// installing it as free; caller holds c.mu. It also claims any entry
// still marked !valid before scanning for a victim.
func (c *Cache_t) evictLocked() (*entry_t, defs.Err_t) {
	for i := range c.slots {
		if !c.slots[i].valid {
			return c.slots[i], 0
		}
	}
	n := len(c.slots)
	for i := 0; i < 2*n; i++ {
		idx := c.clockHand % n
		c.clockHand++
		e := c.slots[idx]
		e.mu.Lock()
		if e.pinCount > 0 {
			e.mu.Unlock()
			continue
		}
		if e.accessed {
			e.accessed = false
			e.mu.Unlock()
			continue
		}
		if e.dirty {
			if err := c.disk.WriteSector(e.sector, e.data[:]); err != nil {
				e.mu.Unlock()
				return nil, -defs.EIO
			}
			e.dirty = false
		}
		old := e.sector
		e.valid = false
		e.mu.Unlock()
		c.ht.Del(old)
		return e, 0
	}
	return nil, -defs.ENOMEM
}

// Read copies the full sector into dst. pin keeps it cache-resident
// until Unpin.
func (c *Cache_t) Read(sector int, dst []byte, pin bool) defs.Err_t {
	e, err := c.lookupOrInstall(sector, pin)
	if err != 0 {
		return err
	}
	e.mu.Lock()
	copy(dst, e.data[:])
	e.mu.Unlock()
	return 0
}

// Write overwrites the full sector and marks the entry dirty.
func (c *Cache_t) Write(sector int, src []byte, pin bool) defs.Err_t {
	e, err := c.lookupOrInstall(sector, pin)
	if err != 0 {
		return err
	}
	e.mu.Lock()
	copy(e.data[:], src)
	e.dirty = true
	e.accessed = true
	e.mu.Unlock()
	return 0
}

// Unpin releases a pin taken by Read/Write, making the entry eligible
// for eviction again.
func (c *Cache_t) Unpin(sector int) {
	c.mu.Lock()
	v, ok := c.ht.Get(sector)
	c.mu.Unlock()
	if !ok {
		return
	}
	e := v.(*entry_t)
	e.mu.Lock()
	if e.pinCount > 0 {
		e.pinCount--
	}
	e.mu.Unlock()
}

// WritebackAll flushes every dirty entry, the durability fence spec.md
// §4.4 calls for on process exit and shutdown. Entries are independent,
// so the flush fans out across goroutines via errgroup rather than
// walking them one at a time.
func (c *Cache_t) WritebackAll() defs.Err_t {
	var g errgroup.Group
	for i := range c.slots {
		e := c.slots[i]
		g.Go(func() error {
			e.mu.Lock()
			defer e.mu.Unlock()
			if !e.valid || !e.dirty {
				return nil
			}
			if err := c.disk.WriteSector(e.sector, e.data[:]); err != nil {
				return err
			}
			e.dirty = false
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return -defs.EIO
	}
	return 0
}
