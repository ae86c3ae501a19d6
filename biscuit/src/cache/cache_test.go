package cache_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cache"
	"defs"
)

type memDisk struct {
	sectors    map[int][cache.SectorSize]byte
	reads      int
	failWrites bool
}

func newMemDisk() *memDisk {
	return &memDisk{sectors: map[int][cache.SectorSize]byte{}}
}

func (d *memDisk) ReadSector(sector int, dst []byte) error {
	d.reads++
	s := d.sectors[sector]
	copy(dst, s[:])
	return nil
}

func (d *memDisk) WriteSector(sector int, src []byte) error {
	if d.failWrites {
		return errors.New("disk full")
	}
	var s [cache.SectorSize]byte
	copy(s[:], src)
	d.sectors[sector] = s
	return nil
}

func TestWriteThenReadRoundtrips(t *testing.T) {
	disk := newMemDisk()
	c := cache.New(disk)

	buf := make([]byte, cache.SectorSize)
	buf[0] = 0x42
	require.Equal(t, defs.Err_t(0), c.Write(5, buf, false))

	got := make([]byte, cache.SectorSize)
	require.Equal(t, defs.Err_t(0), c.Read(5, got, false))
	assert.Equal(t, byte(0x42), got[0])
}

func TestEvictionWritesBackDirtyEntries(t *testing.T) {
	disk := newMemDisk()
	c := cache.New(disk)

	// Fill every slot with a dirty, unpinned entry, then install one more
	// sector to force eviction of some victim -- whichever it picks, the
	// disk must have received that sector's data before giving up the slot.
	for sector := 0; sector < cache.NumEntries; sector++ {
		buf := make([]byte, cache.SectorSize)
		buf[0] = byte(sector)
		require.Equal(t, defs.Err_t(0), c.Write(sector, buf, false))
	}

	buf := make([]byte, cache.SectorSize)
	buf[0] = 0xff
	require.Equal(t, defs.Err_t(0), c.Write(cache.NumEntries, buf, false))

	dirtyOnDisk := 0
	for sector := 0; sector < cache.NumEntries; sector++ {
		if disk.sectors[sector][0] == byte(sector) {
			dirtyOnDisk++
		}
	}
	assert.GreaterOrEqual(t, dirtyOnDisk, 1)
}

func TestPinnedEntrySurvivesEviction(t *testing.T) {
	disk := newMemDisk()
	c := cache.New(disk)

	buf := make([]byte, cache.SectorSize)
	buf[0] = 0x7
	require.Equal(t, defs.Err_t(0), c.Write(0, buf, true))

	// Pressure every other slot through eviction candidacy repeatedly;
	// sector 0 must still read back its in-memory value since it stays
	// pinned the whole time.
	for round := 0; round < 4; round++ {
		for sector := 1; sector <= cache.NumEntries; sector++ {
			b := make([]byte, cache.SectorSize)
			require.Equal(t, defs.Err_t(0), c.Write(sector, b, false))
		}
	}

	got := make([]byte, cache.SectorSize)
	require.Equal(t, defs.Err_t(0), c.Read(0, got, false))
	assert.Equal(t, byte(0x7), got[0])

	c.Unpin(0)
}

func TestWritebackAllFlushesDirtyEntriesAndClearsThem(t *testing.T) {
	disk := newMemDisk()
	c := cache.New(disk)

	buf := make([]byte, cache.SectorSize)
	buf[0] = 0x9
	require.Equal(t, defs.Err_t(0), c.Write(1, buf, false))

	require.Equal(t, defs.Err_t(0), c.WritebackAll())
	assert.Equal(t, byte(0x9), disk.sectors[1][0])
}

func TestWritebackAllPropagatesDiskError(t *testing.T) {
	disk := newMemDisk()
	c := cache.New(disk)

	buf := make([]byte, cache.SectorSize)
	require.Equal(t, defs.Err_t(0), c.Write(2, buf, false))

	disk.failWrites = true
	assert.Equal(t, defs.Err_t(-defs.EIO), c.WritebackAll())
}

func TestEvictionExhaustionReturnsENOMEMWhenAllPinned(t *testing.T) {
	disk := newMemDisk()
	c := cache.New(disk)

	for sector := 0; sector < cache.NumEntries; sector++ {
		buf := make([]byte, cache.SectorSize)
		require.Equal(t, defs.Err_t(0), c.Write(sector, buf, true))
	}

	buf := make([]byte, cache.SectorSize)
	assert.Equal(t, defs.Err_t(-defs.ENOMEM), c.Write(cache.NumEntries, buf, false))
}
