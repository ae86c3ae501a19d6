package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cache"
	"defs"
	"fs"
	"ustr"
)

type memDisk struct {
	sectors map[int][cache.SectorSize]byte
}

func newMemDisk() *memDisk {
	return &memDisk{sectors: map[int][cache.SectorSize]byte{}}
}

func (d *memDisk) ReadSector(sector int, dst []byte) error {
	s := d.sectors[sector]
	copy(dst, s[:])
	return nil
}

func (d *memDisk) WriteSector(sector int, src []byte) error {
	var s [cache.SectorSize]byte
	copy(s[:], src)
	d.sectors[sector] = s
	return nil
}

func TestAddTreeReplicatesSkeletonDir(t *testing.T) {
	skel := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(skel, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skel, "sub", "greeting.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(skel, "top.txt"), []byte("top level"), 0644))

	fsys := fs.Format(newMemDisk(), 512)
	addTree(fsys, skel)

	st, serr := fsys.Stat(ustr.Ustr("/sub"))
	require.Equal(t, defs.Err_t(0), serr)
	assert.True(t, st.IsDir)

	fh, oerr := fsys.Open(ustr.Ustr("/sub/greeting.txt"), 0)
	require.Equal(t, defs.Err_t(0), oerr)
	sz, szerr := fh.Fsize()
	require.Equal(t, defs.Err_t(0), szerr)
	assert.Equal(t, 5, sz)
	fh.Close()

	fh2, oerr2 := fsys.Open(ustr.Ustr("/top.txt"), 0)
	require.Equal(t, defs.Err_t(0), oerr2)
	sz2, szerr2 := fh2.Fsize()
	require.Equal(t, defs.Err_t(0), szerr2)
	assert.Equal(t, len("top level"), sz2)
	fh2.Close()
}
