package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bounds"
	"defs"
	"mem"
	"vm"
)

// memFile is a tiny in-memory vm.FileBacker, standing in for an fs
// FileHandle so mmap/pagefault/writeback can be exercised without a real
// file system underneath.
type memFile struct {
	data   []byte
	closed bool
}

func (f *memFile) ReadAt(buf []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(buf, f.data[off:])
	return n, nil
}

func (f *memFile) WriteAt(buf []byte, off int64) (int, error) {
	need := int(off) + len(buf)
	if need > len(f.data) {
		grown := make([]byte, need)
		copy(grown, f.data)
		f.data = grown
	}
	n := copy(f.data[off:], buf)
	return n, nil
}

func (f *memFile) Size() int64 { return int64(len(f.data)) }

func (f *memFile) Close() defs.Err_t {
	f.closed = true
	return 0
}

func TestMmapLazyPopulationAndWriteback(t *testing.T) {
	mem.Init(64)
	as := vm.NewVm()

	const base = uintptr(0x10000000)
	file := &memFile{data: []byte("hello mmap world")}
	id, err := as.Mmap(base, file)
	require.Equal(t, defs.Err_t(0), err)
	require.NotZero(t, id)

	// No frame exists until the first access: Userdmap8r's fault path
	// populates it from the backing file.
	got, err := as.Userdmap8r(int(base))
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, byte('h'), got[0])

	// A write through the mapping dirties the page; Munmap must write it
	// back to the file at the matching offset.
	require.Equal(t, defs.Err_t(0), as.Userwriten(int(base), 1, int('H')))
	require.Equal(t, defs.Err_t(0), as.Munmap(id))

	assert.Equal(t, byte('H'), file.data[0])
	assert.True(t, file.closed)

	as.Destroy()
}

func TestMmapRejectsBadAddrOrEmptyFile(t *testing.T) {
	mem.Init(8)
	as := vm.NewVm()

	_, err := as.Mmap(0, &memFile{data: []byte("x")})
	assert.Equal(t, defs.Err_t(-defs.EINVAL), err)

	_, err = as.Mmap(uintptr(mem.PGSIZE)+1, &memFile{data: []byte("x")})
	assert.Equal(t, defs.Err_t(-defs.EINVAL), err)

	_, err = as.Mmap(uintptr(mem.PGSIZE), &memFile{data: nil})
	assert.Equal(t, defs.Err_t(-defs.EINVAL), err)

	as.Destroy()
}

func TestStackGrowthOnWriteFault(t *testing.T) {
	mem.Init(64)
	as := vm.NewVm()

	const stackTop = uintptr(0x7fff0000)
	as.Vmregion.Add(&vm.Vminfo_t{
		Range: bounds.Range_t{Begin: stackTop, End: stackTop + uintptr(mem.PGSIZE)},
		Role:  vm.RoleStack,
		Perms: vm.PTE_W,
		Floor: stackTop - 4*uintptr(mem.PGSIZE),
	})

	belowStack := stackTop - uintptr(mem.PGSIZE)

	// A read below the mapped stack region is a genuine fault: stack
	// pages must be written before they can be read.
	_, err := as.Userdmap8r(int(belowStack))
	assert.Equal(t, defs.Err_t(-defs.EFAULT), err)

	// A write grows the stack down by one page and succeeds.
	require.Equal(t, defs.Err_t(0), as.Userwriten(int(belowStack), 8, 0xdeadbeef))

	vmi, ok := as.Vmregion.Lookup(belowStack)
	require.True(t, ok)
	assert.Equal(t, belowStack, vmi.Range.Begin)

	v, err := as.Userreadn(int(belowStack), 8)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, 0xdeadbeef, v)

	as.Destroy()
}

// TestStackGrowthRespectsFloor matches spec.md's stack-growth scenario:
// growth may walk down to vm.StackLimit (PHYS_BASE-8 MiB) one page at a
// time, including the page at the floor itself, but any access below that
// floor is a fault, not further growth.
func TestStackGrowthRespectsFloor(t *testing.T) {
	mem.Init(64)
	as := vm.NewVm()

	as.Vmregion.Add(&vm.Vminfo_t{
		Range: bounds.Range_t{Begin: vm.StackTop, End: vm.StackTop + uintptr(mem.PGSIZE)},
		Role:  vm.RoleStack,
		Perms: vm.PTE_U | vm.PTE_W,
		Floor: vm.StackLimit,
	})

	atFloor := vm.StackLimit
	require.Equal(t, defs.Err_t(0), as.Userwriten(int(atFloor), 8, 1))

	belowFloor := vm.StackLimit - uintptr(mem.PGSIZE)
	assert.Equal(t, defs.Err_t(-defs.EFAULT), as.Userwriten(int(belowFloor), 8, 1))

	as.Destroy()
}

func TestUserCopyHelpersRoundtrip(t *testing.T) {
	mem.Init(16)
	as := vm.NewVm()

	const base = uintptr(0x20000000)
	as.Vmregion.Add(&vm.Vminfo_t{
		Range: bounds.Range_t{Begin: base, End: base + uintptr(mem.PGSIZE)},
		Role:  vm.RoleData,
		Perms: vm.PTE_W,
	})

	msg := []byte("copy in, copy out")
	require.Equal(t, defs.Err_t(0), as.K2user(msg, int(base)))

	back := make([]byte, len(msg))
	require.Equal(t, defs.Err_t(0), as.User2k(back, int(base)))
	assert.Equal(t, msg, back)

	str, err := as.Userstr(int(base), 64)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, string(msg), string(str))

	as.Destroy()
}

func TestUserstrTooLong(t *testing.T) {
	mem.Init(16)
	as := vm.NewVm()

	const base = uintptr(0x30000000)
	as.Vmregion.Add(&vm.Vminfo_t{
		Range: bounds.Range_t{Begin: base, End: base + uintptr(mem.PGSIZE)},
		Role:  vm.RoleData,
		Perms: vm.PTE_W,
	})

	// Fill the entire page with a non-zero byte so Userstr's internal
	// per-page scan never finds a NUL terminator, forcing the lenmax
	// check to actually fire.
	filler := make([]byte, mem.PGSIZE)
	for i := range filler {
		filler[i] = 'A'
	}
	require.Equal(t, defs.Err_t(0), as.K2user(filler, int(base)))
	_, err := as.Userstr(int(base), 10)
	assert.Equal(t, defs.Err_t(-defs.ENAMETOOLONG), err)

	as.Destroy()
}
