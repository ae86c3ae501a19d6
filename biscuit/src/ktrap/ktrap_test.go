package ktrap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounds"
	"cache"
	"defs"
	"fs"
	"ktrap"
	"mem"
	"proc"
	"vm"
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

// newTestThread spawns a parentless (root) thread with a scratch address
// space containing one writable data region at bufVa, big enough to back
// every syscall argument buffer these tests pass by user pointer. Its
// Spawn-created goroutine never runs (Sched.Start is never called in this
// package's tests -- Dispatch is exercised directly, the way ktrap.go's
// own doc comment describes it being driven without a real instruction
// stream), so it just sits blocked on its resume channel for the rest of
// the test process.
const bufVa = uintptr(0x40000000)

func newTestThread(t *testing.T) *proc.Thread_t {
	t.Helper()
	as := vm.NewVm()
	as.Vmregion.Add(&vm.Vminfo_t{
		Range: bounds.Range_t{Begin: bufVa, End: bufVa + uintptr(mem.PGSIZE)},
		Role:  vm.RoleData,
		Perms: vm.PTE_W,
	})
	th, err := proc.Spawn(nil, "root", as, nil)
	require.Equal(t, defs.Err_t(0), err)
	return th
}

func putPath(t *testing.T, th *proc.Thread_t, p string) int {
	t.Helper()
	b := append([]byte(p), 0)
	require.Equal(t, defs.Err_t(0), th.Vm.K2user(b, int(bufVa)))
	return int(bufVa)
}

// TestExecLoadFailure matches spec.md's scenario 6 exactly: exec'ing a
// nonexistent path returns failure, and a subsequent wait on the
// returned (bogus) id returns failure immediately, with no orphan
// wait-node left behind.
func TestExecLoadFailure(t *testing.T) {
	mem.Init(64)
	fsys := fs.Format(newMemDisk(), 512)
	k := &ktrap.Kernel{Fs: fsys}

	root := newTestThread(t)

	child, err := k.Exec(root, "/nonexistent", []string{"nonexistent", "args"})
	assert.Nil(t, child)
	assert.NotEqual(t, defs.Err_t(0), err)

	status, werr := proc.Wait(root, defs.Tid_t(-1))
	assert.Equal(t, -1, status)
	assert.Equal(t, defs.Err_t(-defs.ECHILD), werr)
}

func TestSyscallFileLifecycle(t *testing.T) {
	mem.Init(64)
	fsys := fs.Format(newMemDisk(), 512)
	k := &ktrap.Kernel{Fs: fsys}
	root := newTestThread(t)

	pathVa := putPath(t, root, "/greeting")

	ret := k.Dispatch(root, defs.SYS_CREATE, ktrap.Args{pathVa, 0})
	require.Equal(t, 1, ret)

	fdn := k.Dispatch(root, defs.SYS_OPEN, ktrap.Args{pathVa})
	require.GreaterOrEqual(t, fdn, 0)

	msg := "hello from userspace"
	putPath(t, root, msg) // reuses the same buffer; msg has no embedded NUL read here
	n := k.Dispatch(root, defs.SYS_WRITE, ktrap.Args{fdn, pathVa, len(msg)})
	assert.Equal(t, len(msg), n)

	sz := k.Dispatch(root, defs.SYS_FILESIZE, ktrap.Args{fdn})
	assert.Equal(t, len(msg), sz)

	assert.Equal(t, 0, k.Dispatch(root, defs.SYS_SEEK, ktrap.Args{fdn, 0}))

	readBackVa := int(bufVa) + 256
	got := k.Dispatch(root, defs.SYS_READ, ktrap.Args{fdn, readBackVa, len(msg)})
	assert.Equal(t, len(msg), got)

	back := make([]byte, len(msg))
	require.Equal(t, defs.Err_t(0), root.Vm.User2k(back, readBackVa))
	assert.Equal(t, msg, string(back))

	assert.Equal(t, 0, k.Dispatch(root, defs.SYS_CLOSE, ktrap.Args{fdn}))

	removedVa := putPath(t, root, "/greeting")
	assert.Equal(t, 1, k.Dispatch(root, defs.SYS_REMOVE, ktrap.Args{removedVa}))
}

func TestSyscallMkdirChdir(t *testing.T) {
	mem.Init(64)
	fsys := fs.Format(newMemDisk(), 512)
	k := &ktrap.Kernel{Fs: fsys}
	root := newTestThread(t)

	dirVa := putPath(t, root, "/sub")
	require.Equal(t, 1, k.Dispatch(root, defs.SYS_MKDIR, ktrap.Args{dirVa}))

	dirVa2 := putPath(t, root, "/sub")
	require.Equal(t, 1, k.Dispatch(root, defs.SYS_CHDIR, ktrap.Args{dirVa2}))
	assert.Equal(t, "/sub", string(root.Cwd.Path))

	fileVa := putPath(t, root, "file")
	require.Equal(t, 1, k.Dispatch(root, defs.SYS_CREATE, ktrap.Args{fileVa, 0}))

	nonDirVa := putPath(t, root, "file")
	fdn := k.Dispatch(root, defs.SYS_OPEN, ktrap.Args{nonDirVa})
	require.GreaterOrEqual(t, fdn, 0)
	assert.Equal(t, 0, k.Dispatch(root, defs.SYS_ISDIR, ktrap.Args{fdn}))
}
