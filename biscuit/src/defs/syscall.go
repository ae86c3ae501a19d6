package defs

/// Syscall numbers for the abstract surface named in spec.md's §4.5. Wire
/// numbers are arbitrary here since the user ABI header that would assign
/// them is out of scope (§1); dispatch only needs them to be distinct.

/// Sysno_t numbers a system call.
type Sysno_t int

const (
	SYS_HALT Sysno_t = iota
	SYS_EXIT
	SYS_EXEC
	SYS_WAIT
	SYS_CREATE
	SYS_REMOVE
	SYS_OPEN
	SYS_CLOSE
	SYS_FILESIZE
	SYS_READ
	SYS_WRITE
	SYS_SEEK
	SYS_TELL
	SYS_MMAP
	SYS_MUNMAP
	SYS_CHDIR
	SYS_MKDIR
	SYS_READDIR
	SYS_ISDIR
	SYS_INUMBER
)

/// String names a syscall for logging.
func (s Sysno_t) String() string {
	names := [...]string{
		"halt", "exit", "exec", "wait", "create", "remove", "open", "close",
		"filesize", "read", "write", "seek", "tell", "mmap", "munmap",
		"chdir", "mkdir", "readdir", "isdir", "inumber",
	}
	if int(s) < 0 || int(s) >= len(names) {
		return "sys?"
	}
	return names[s]
}

/// Open flags for fs.Fs_open / the open syscall.
const (
	O_RDONLY int = 0
	O_WRONLY int = 1
	O_RDWR   int = 2
	O_CREAT  int = 0x200
	O_EXCL   int = 0x400
)

/// Seek whence values for the seek syscall.
const (
	SEEK_SET int = 0
	SEEK_CUR int = 1
	SEEK_END int = 2
)

/// UNMAPPED is the sentinel map-id stored in a FD entry that was never
/// mmap'd.
const UNMAPPED int = -1
