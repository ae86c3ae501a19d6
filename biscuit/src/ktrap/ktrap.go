// Package ktrap implements the system-call and trap layer spec.md §4.5
// describes: one dispatcher per Sysno_t, argument validation against the
// calling thread's address space and FD table, and the uniform
// bad-user-memory-means-termination rule ("User processes can be
// terminated at any exception by the trap layer ... before the thread
// transitions to Dying"). There is no real interrupt/exception vector
// here -- the execution model substitutes a goroutine-driven UserEntry
// for the instruction stream a real CPU would fetch (see DESIGN.md) --
// so Dispatch is called directly by that driver instead of being reached
// through an IDT entry; the dispatch table, argument shape, and
// termination behavior otherwise follow spec.md exactly.
package ktrap

import (
	"strings"

	"defs"
	"fd"
	"fs"
	"klog"
	"proc"
	"ustr"
	"vm"
)

// Kernel bundles the one file system this kernel mounts; every syscall
// that touches storage goes through it.
type Kernel struct {
	Fs *fs.Fs_t

	// EntryFactory builds the UserEntry driver for a freshly exec'd
	// child, given its resolved path, argv, entry point, and initial
	// stack pointer. A nil factory (or a nil EntryFactory field) spawns
	// a child that runs nothing and exits 0 immediately -- adequate for
	// exercising exec/wait plumbing without a real instruction stream;
	// the kernel command supplies a real one for its `run 'PROG ARGS'`
	// action.
	EntryFactory func(path string, argv []string, entry, sp uintptr) func(*proc.Thread_t)
}

// Args is the fixed six-register argument convention spec.md's syscall
// list implies (at most 3 used by any one call here).
type Args [6]int

// Dispatch executes sysno on behalf of t and returns its result the way
// a trap return value would: a non-negative value or errno on success
// paths that return a value, or 0/-errno for void calls. A thread that
// dereferences bad user memory is terminated here, matching spec.md's
// cancellation rule, rather than propagating an error to its own
// UserEntry.
func (k *Kernel) Dispatch(t *proc.Thread_t, sysno defs.Sysno_t, a Args) int {
	klog.With(klog.Fields{Tid: int(t.Id)}).Debugf("syscall %s", sysno)
	ret, err := k.dispatch(t, sysno, a)
	if err == -defs.EFAULT {
		proc.Exit(t, -1, true)
		return -1
	}
	if err != 0 {
		return int(err)
	}
	return ret
}

func (k *Kernel) dispatch(t *proc.Thread_t, sysno defs.Sysno_t, a Args) (int, defs.Err_t) {
	switch sysno {
	case defs.SYS_HALT:
		return k.sysHalt(t)
	case defs.SYS_EXIT:
		return k.sysExit(t, a[0])
	case defs.SYS_EXEC:
		return k.sysExec(t, a[0])
	case defs.SYS_WAIT:
		return k.sysWait(t, a[0])
	case defs.SYS_CREATE:
		return k.sysCreate(t, a[0], a[1])
	case defs.SYS_REMOVE:
		return k.sysRemove(t, a[0])
	case defs.SYS_OPEN:
		return k.sysOpen(t, a[0])
	case defs.SYS_CLOSE:
		return k.sysClose(t, a[0])
	case defs.SYS_FILESIZE:
		return k.sysFilesize(t, a[0])
	case defs.SYS_READ:
		return k.sysRead(t, a[0], a[1], a[2])
	case defs.SYS_WRITE:
		return k.sysWrite(t, a[0], a[1], a[2])
	case defs.SYS_SEEK:
		return k.sysSeek(t, a[0], a[1])
	case defs.SYS_TELL:
		return k.sysTell(t, a[0])
	case defs.SYS_MMAP:
		return k.sysMmap(t, a[0], a[1])
	case defs.SYS_MUNMAP:
		return k.sysMunmap(t, a[0])
	case defs.SYS_CHDIR:
		return k.sysChdir(t, a[0])
	case defs.SYS_MKDIR:
		return k.sysMkdir(t, a[0])
	case defs.SYS_READDIR:
		return k.sysReaddir(t, a[0], a[1])
	case defs.SYS_ISDIR:
		return k.sysIsdir(t, a[0])
	case defs.SYS_INUMBER:
		return k.sysInumber(t, a[0])
	default:
		return 0, -defs.EINVAL
	}
}

// lookupFile resolves fd to its FileHandle, or -EBADF-equivalent
// (spec.md has no EBADF in scope; EINVAL stands in) if absent or not a
// regular-file/directory handle this package opened.
func (k *Kernel) lookupFile(t *proc.Thread_t, fdn int) (*fd.Fd_t, *fs.FileHandle, defs.Err_t) {
	f, ok := t.GetFd(fdn)
	if !ok {
		return nil, nil, -defs.EINVAL
	}
	fh, ok := f.Fops.(*fs.FileHandle)
	if !ok {
		return nil, nil, -defs.EINVAL
	}
	return f, fh, 0
}

func (k *Kernel) sysHalt(t *proc.Thread_t) (int, defs.Err_t) {
	k.Fs.Sync()
	return 0, 0
}

func (k *Kernel) sysExit(t *proc.Thread_t, status int) (int, defs.Err_t) {
	proc.Exit(t, status, false)
	return 0, 0
}

// sysExec implements spec.md's exec(cmd): resolve the first token as a
// path, load its ELF image into a fresh address space, lay out argv on
// the new stack, and spawn the child. Since this kernel's executing
// thread is the injectable UserEntry driver rather than a real
// instruction stream (see DESIGN.md's Execution model), load success or
// failure is known synchronously here instead of being reported back
// over spec.md's exec_sema by the child itself -- there is no
// instruction stream to run before that report would happen. A load
// failure therefore returns -1 without ever spawning a child or leaving
// a wait-node behind, matching scenario 6's observable contract exactly.
func (k *Kernel) sysExec(t *proc.Thread_t, cmdUva int) (int, defs.Err_t) {
	cmd, err := t.Vm.Userstr(cmdUva, maxPathLen)
	if err == -defs.EFAULT {
		return -1, err
	}
	if err != 0 {
		return -1, 0
	}
	path, argv := splitCmd(string(cmd))
	if path == "" {
		return -1, 0
	}
	child, eerr := k.Exec(t, path, argv)
	if eerr != 0 {
		return -1, 0
	}
	return int(child.Id), 0
}

// Exec loads path (resolved against t's cwd) as an ELF image, lays out
// argv on a fresh stack, and spawns a child thread of t to run it. It is
// the part of sysExec that does not require reading the command string
// out of user memory, so the kernel command's "run 'PROG ARGS'" boot
// action -- which already has path/argv as Go values, not a user
// pointer -- can drive the very same load-and-spawn path a user
// process's exec(2) does, the way Pintos's init.c calls
// process_execute directly instead of going through the syscall trap.
func (k *Kernel) Exec(t *proc.Thread_t, path string, argv []string) (*proc.Thread_t, defs.Err_t) {
	full := t.Cwd.Canonicalpath(ustr.Ustr(path))
	fh, operr := k.Fs.Open(full, 0)
	if operr != 0 {
		return nil, operr
	}
	as, elfEntry, lerr := vm.LoadElf(fh)
	if lerr != nil {
		fh.Close()
		return nil, -defs.ENOENT
	}
	sp, aerr := layoutArgv(as, argv)
	if aerr != 0 {
		as.Destroy()
		fh.Close()
		return nil, aerr
	}
	var entry func(*proc.Thread_t)
	if k.EntryFactory != nil {
		entry = k.EntryFactory(path, argv, elfEntry, sp)
	}

	child, serr := proc.Spawn(t, path, as, entry)
	if serr != 0 {
		as.Destroy()
		fh.Close()
		return nil, serr
	}
	return child, 0
}

func (k *Kernel) sysWait(t *proc.Thread_t, childID int) (int, defs.Err_t) {
	status, err := proc.Wait(t, defs.Tid_t(childID))
	if err != 0 {
		return -1, 0
	}
	return status, 0
}

func (k *Kernel) sysCreate(t *proc.Thread_t, pathUva, initSize int) (int, defs.Err_t) {
	path, err := t.Vm.Userstr(pathUva, maxPathLen)
	if err != 0 {
		return 0, err
	}
	full := t.Cwd.Canonicalpath(path)
	fh, err := k.Fs.Open(full, defs.O_CREAT|defs.O_EXCL)
	if err != 0 {
		return 0, err
	}
	if initSize > 0 {
		if terr := fh.Truncate(initSize); terr != 0 {
			fh.Close()
			return 0, terr
		}
	}
	fh.Close()
	return 1, 0
}

func (k *Kernel) sysRemove(t *proc.Thread_t, pathUva int) (int, defs.Err_t) {
	path, err := t.Vm.Userstr(pathUva, maxPathLen)
	if err != 0 {
		return 0, err
	}
	full := t.Cwd.Canonicalpath(path)
	if err := k.Fs.Remove(full); err != 0 {
		return 0, err
	}
	return 1, 0
}

func (k *Kernel) sysOpen(t *proc.Thread_t, pathUva int) (int, defs.Err_t) {
	path, err := t.Vm.Userstr(pathUva, maxPathLen)
	if err != 0 {
		return -1, err
	}
	full := t.Cwd.Canonicalpath(path)
	fh, err := k.Fs.Open(full, 0)
	if err != 0 {
		return -1, 0
	}
	nfd := t.AddFd(&fd.Fd_t{Fops: fh, Perms: fd.FD_READ | fd.FD_WRITE})
	return nfd, 0
}

func (k *Kernel) sysClose(t *proc.Thread_t, fdn int) (int, defs.Err_t) {
	f, ok := t.RemoveFd(fdn)
	if !ok {
		return 0, -defs.EINVAL
	}
	fd.Close_panic(f)
	return 0, 0
}

func (k *Kernel) sysFilesize(t *proc.Thread_t, fdn int) (int, defs.Err_t) {
	_, fh, err := k.lookupFile(t, fdn)
	if err != 0 {
		return -1, err
	}
	return fh.Fsize()
}

func (k *Kernel) sysRead(t *proc.Thread_t, fdn, bufUva, n int) (int, defs.Err_t) {
	_, fh, err := k.lookupFile(t, fdn)
	if err != 0 {
		return -1, err
	}
	ub := vm.NewUserbuf(t.Vm, bufUva, n)
	return fh.Read(ub)
}

func (k *Kernel) sysWrite(t *proc.Thread_t, fdn, bufUva, n int) (int, defs.Err_t) {
	_, fh, err := k.lookupFile(t, fdn)
	if err != 0 {
		return -1, err
	}
	ub := vm.NewUserbuf(t.Vm, bufUva, n)
	return fh.Write(ub)
}

func (k *Kernel) sysSeek(t *proc.Thread_t, fdn, pos int) (int, defs.Err_t) {
	_, fh, err := k.lookupFile(t, fdn)
	if err != 0 {
		return 0, err
	}
	return 0, fh.Lseek(pos, defs.SEEK_SET)
}

func (k *Kernel) sysTell(t *proc.Thread_t, fdn int) (int, defs.Err_t) {
	_, fh, err := k.lookupFile(t, fdn)
	if err != 0 {
		return 0, err
	}
	fh.Lseek(0, defs.SEEK_CUR)
	sz, _ := fh.Fsize()
	return sz, 0
}

func (k *Kernel) sysMmap(t *proc.Thread_t, fdn, addr int) (int, defs.Err_t) {
	_, fh, err := k.lookupFile(t, fdn)
	if err != 0 {
		return -1, err
	}
	if rerr := fh.Reopen(); rerr != 0 {
		return -1, rerr
	}
	id, merr := t.Vm.Mmap(uintptr(addr), fh)
	if merr != 0 {
		fh.Close()
		return -1, merr
	}
	return id, 0
}

func (k *Kernel) sysMunmap(t *proc.Thread_t, id int) (int, defs.Err_t) {
	return 0, t.Vm.Munmap(id)
}

func (k *Kernel) sysChdir(t *proc.Thread_t, pathUva int) (int, defs.Err_t) {
	path, err := t.Vm.Userstr(pathUva, maxPathLen)
	if err != 0 {
		return 0, err
	}
	full := t.Cwd.Canonicalpath(path)
	st, err := k.Fs.Stat(full)
	if err != 0 {
		return 0, err
	}
	if !st.IsDir {
		return 0, -defs.ENOTDIR
	}
	t.Cwd.Lock()
	defer t.Cwd.Unlock()
	t.Cwd.Path = full
	return 1, 0
}

func (k *Kernel) sysMkdir(t *proc.Thread_t, pathUva int) (int, defs.Err_t) {
	path, err := t.Vm.Userstr(pathUva, maxPathLen)
	if err != 0 {
		return 0, err
	}
	full := t.Cwd.Canonicalpath(path)
	if err := k.Fs.Mkdir(full); err != 0 {
		return 0, err
	}
	return 1, 0
}

func (k *Kernel) sysReaddir(t *proc.Thread_t, fdn, nameUva int) (int, defs.Err_t) {
	_, fh, err := k.lookupFile(t, fdn)
	if err != 0 {
		return 0, err
	}
	name, err := fh.Readdir()
	if err != 0 {
		return 0, err
	}
	if name == nil {
		return 0, 0
	}
	buf := append(append([]byte{}, name...), 0)
	if werr := t.Vm.K2user(buf, nameUva); werr != 0 {
		return 0, werr
	}
	return 1, 0
}

func (k *Kernel) sysIsdir(t *proc.Thread_t, fdn int) (int, defs.Err_t) {
	_, fh, err := k.lookupFile(t, fdn)
	if err != 0 {
		return 0, err
	}
	if fh.IsDir() {
		return 1, 0
	}
	return 0, 0
}

func (k *Kernel) sysInumber(t *proc.Thread_t, fdn int) (int, defs.Err_t) {
	_, fh, err := k.lookupFile(t, fdn)
	if err != 0 {
		return 0, err
	}
	return fh.Inumber(), 0
}

const maxPathLen = 512

// splitCmd tokenizes spec.md's exec() command string into its first
// token (the executable path) and the remaining argv, the way Pintos's
// process_execute does before handing off to the argument-passing code
// in start_process.
func splitCmd(cmd string) (string, []string) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields
}
