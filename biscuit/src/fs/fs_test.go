package fs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cache"
	"defs"
	"fs"
	"ustr"
	"vm"
)

// memDisk is an in-memory cache.Disk_i backing a test file system image,
// standing in for cache.FileDisk_t the way the teacher's own fs tests
// use a plain byte-slice disk rather than a real file.
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

const testDiskSectors = 512

func write(t *testing.T, fh *fs.FileHandle, data []byte) {
	t.Helper()
	n, err := fh.Write(vm.NewFakeubuf(data))
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, len(data), n)
}

func readAll(t *testing.T, fh *fs.FileHandle, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	got, err := fh.Read(vm.NewFakeubuf(buf))
	require.Equal(t, defs.Err_t(0), err)
	return buf[:got]
}

func TestMkdirAndFileRoundtrip(t *testing.T) {
	fsys := fs.Format(newMemDisk(), testDiskSectors)

	require.Equal(t, defs.Err_t(0), fsys.Mkdir(ustr.Ustr("/dir")))
	require.Equal(t, defs.Err_t(-defs.EEXIST), fsys.Mkdir(ustr.Ustr("/dir")))

	fh, err := fsys.Open(ustr.Ustr("/dir/file"), defs.O_CREAT|defs.O_EXCL)
	require.Equal(t, defs.Err_t(0), err)
	write(t, fh, []byte("hello biscuit"))
	require.Equal(t, defs.Err_t(0), fh.Close())

	fh2, err := fsys.Open(ustr.Ustr("/dir/file"), 0)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, "hello biscuit", string(readAll(t, fh2, 64)))

	st, err := fsys.Stat(ustr.Ustr("/dir/file"))
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, len("hello biscuit"), st.Size)
	assert.False(t, st.IsDir)
	require.Equal(t, defs.Err_t(0), fh2.Close())
}

func TestRemoveDeferredWhileOpen(t *testing.T) {
	fsys := fs.Format(newMemDisk(), testDiskSectors)

	fh, err := fsys.Open(ustr.Ustr("/doomed"), defs.O_CREAT)
	require.Equal(t, defs.Err_t(0), err)
	write(t, fh, []byte("payload"))

	// Remove succeeds immediately (the directory entry is gone right
	// away); the inode itself is only reclaimed once every handle on it
	// is closed.
	require.Equal(t, defs.Err_t(0), fsys.Remove(ustr.Ustr("/doomed")))
	_, err = fsys.Stat(ustr.Ustr("/doomed"))
	assert.Equal(t, defs.Err_t(-defs.ENOENT), err)

	// The still-open handle keeps working; its content survived the
	// unlink.
	assert.Equal(t, "payload", string(readAll(t, fh, 64)))

	require.Equal(t, defs.Err_t(0), fh.Close())

	// The name stays gone, and creating it again must not collide with
	// the orphaned (and now reclaimed) inode.
	fh2, err := fsys.Open(ustr.Ustr("/doomed"), defs.O_CREAT|defs.O_EXCL)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), fh2.Close())
}

// TestOpenRefcountScopedPerFs guards against a regression to the
// package-level open-refcount bug: two independently mounted file
// systems land their first-ever allocated file at the same sector
// number (the allocator is deterministic and both start from an
// identical freshly formatted layout), so a refcount keyed only by
// sector number and shared across Fs_t instances would let one file
// system's Close reach into another's bookkeeping.
func TestOpenRefcountScopedPerFs(t *testing.T) {
	fsysA := fs.Format(newMemDisk(), testDiskSectors)
	fsysB := fs.Format(newMemDisk(), testDiskSectors)

	fhA, err := fsysA.Open(ustr.Ustr("/a"), defs.O_CREAT)
	require.Equal(t, defs.Err_t(0), err)
	fhB, err := fsysB.Open(ustr.Ustr("/b"), defs.O_CREAT)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, fhA.Inumber(), fhB.Inumber(), "both file systems' first file must land on the same sector number")

	// A is removed while still open, so it is orphaned in fsysA only.
	require.Equal(t, defs.Err_t(0), fsysA.Remove(ustr.Ustr("/a")))

	// Closing A must not disturb B, which was never removed and lives
	// in a completely different Fs_t.
	require.Equal(t, defs.Err_t(0), fhA.Close())

	write(t, fhB, []byte("still alive"))
	assert.Equal(t, "still alive", string(readAll(t, fhB, 64)))
	st, err := fsysB.Stat(ustr.Ustr("/b"))
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, len("still alive"), st.Size)
	require.Equal(t, defs.Err_t(0), fhB.Close())
}

// TestReopenRefcountedClose guards against the FileHandle.refs bug: a
// duplicated handle (fd.Copyfd's pattern, modeled here directly via
// Reopen) must require as many Closes as there were opens before the
// underlying inode's orphan cleanup actually runs.
func TestReopenRefcountedClose(t *testing.T) {
	fsys := fs.Format(newMemDisk(), testDiskSectors)

	fh, err := fsys.Open(ustr.Ustr("/dup"), defs.O_CREAT)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), fh.Reopen())

	require.Equal(t, defs.Err_t(0), fsys.Remove(ustr.Ustr("/dup")))

	// First Close only drops one of the two references; the handle
	// (and the orphaned inode behind it) must still be usable.
	require.Equal(t, defs.Err_t(0), fh.Close())
	assert.Equal(t, 0, len(readAll(t, fh, 64)), "freshly created file has no content yet, but the handle must still be live")

	require.Equal(t, defs.Err_t(0), fh.Close())

	fh2, err := fsys.Open(ustr.Ustr("/dup"), defs.O_CREAT|defs.O_EXCL)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), fh2.Close())
}

func TestOrphanSweptOnMount(t *testing.T) {
	disk := newMemDisk()
	fsys := fs.Format(disk, testDiskSectors)

	fh, err := fsys.Open(ustr.Ustr("/crashed"), defs.O_CREAT)
	require.Equal(t, defs.Err_t(0), err)
	write(t, fh, []byte("orphaned"))
	require.Equal(t, defs.Err_t(0), fsys.Remove(ustr.Ustr("/crashed")))
	// Simulate a crash: the handle is never closed, so the inode stays
	// an orphan on disk instead of being reclaimed immediately.
	require.Equal(t, defs.Err_t(0), fsys.Sync())

	remounted := fs.Mount(disk, testDiskSectors)
	_, err = remounted.Stat(ustr.Ustr("/crashed"))
	assert.Equal(t, defs.Err_t(-defs.ENOENT), err)

	// The reclaimed sector must be back on the free list and reusable.
	fh2, err := remounted.Open(ustr.Ustr("/new"), defs.O_CREAT|defs.O_EXCL)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), fh2.Close())
}

func TestRemoveNonEmptyDirFails(t *testing.T) {
	fsys := fs.Format(newMemDisk(), testDiskSectors)

	require.Equal(t, defs.Err_t(0), fsys.Mkdir(ustr.Ustr("/d")))
	fh, err := fsys.Open(ustr.Ustr("/d/f"), defs.O_CREAT)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), fh.Close())

	assert.Equal(t, defs.Err_t(-defs.ENOTEMPTY), fsys.Remove(ustr.Ustr("/d")))

	require.Equal(t, defs.Err_t(0), fsys.Remove(ustr.Ustr("/d/f")))
	assert.Equal(t, defs.Err_t(0), fsys.Remove(ustr.Ustr("/d")))
}

func TestComponentOverNameMaxRejected(t *testing.T) {
	fsys := fs.Format(newMemDisk(), testDiskSectors)

	exact := "/12345678901234" // 14-byte component, at the limit
	fh, err := fsys.Open(ustr.Ustr(exact), defs.O_CREAT|defs.O_EXCL)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Err_t(0), fh.Close())

	tooLong := "/123456789012345" // 15 bytes, one over NameMax
	_, err = fsys.Open(ustr.Ustr(tooLong), defs.O_CREAT|defs.O_EXCL)
	assert.Equal(t, defs.Err_t(-defs.ENAMETOOLONG), err)

	assert.Equal(t, defs.Err_t(-defs.ENAMETOOLONG), fsys.Mkdir(ustr.Ustr(tooLong)))
}
