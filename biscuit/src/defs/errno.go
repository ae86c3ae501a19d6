package defs

/// Err_t is the kernel's universal error return value. Zero means success;
/// a negative value is the negated errno-style constant below. Err_t never
/// crosses a syscall boundary as a panic or a Go error -- it is always an
/// explicit return value, per the error taxonomy.
type Err_t int

/// Tid_t identifies a thread/process. The scheduler hands these out
/// monotonically; 0 is never a valid id.
type Tid_t int

/// Errno constants mirror the subset of POSIX errno values the original
/// syscall surface (userprog/syscall.c) and the page-fault handler
/// (vm/page.c) actually return.
const (
	EPERM   Err_t = 1  /// operation not permitted
	ENOENT  Err_t = 2  /// no such file or directory
	ESRCH   Err_t = 3  /// no such process
	EINTR   Err_t = 4  /// interrupted
	EIO     Err_t = 5  /// I/O error
	ECHILD  Err_t = 10 /// no such child, or already waited for
	ENOMEM  Err_t = 12 /// out of memory (no frame, no inode sector, ...)
	EFAULT  Err_t = 14 /// bad user address
	ENOTDIR Err_t = 20 /// not a directory
	EISDIR  Err_t = 21 /// is a directory
	EINVAL  Err_t = 22 /// invalid argument
	EEXIST  Err_t = 17 /// file already exists
	ENFILE  Err_t = 23 /// too many open files system-wide
	EMFILE  Err_t = 24 /// too many open files for this process
	EFBIG   Err_t = 27 /// file too large
	ENOSPC  Err_t = 28 /// no space left on device
	ESPIPE  Err_t = 29 /// illegal seek
	ENAMETOOLONG Err_t = 36 /// path component too long
	ENOTEMPTY    Err_t = 39 /// directory not empty
	ELOOP        Err_t = 40 /// too many levels of indirection during lookup
)

/// String names the errno constant for logging; it does not need to be
/// exhaustive since it is a diagnostic aid, not protocol.
func (e Err_t) String() string {
	names := map[Err_t]string{
		EPERM: "EPERM", ENOENT: "ENOENT", ESRCH: "ESRCH", EINTR: "EINTR",
		EIO: "EIO", ECHILD: "ECHILD", ENOMEM: "ENOMEM", EFAULT: "EFAULT", ENOTDIR: "ENOTDIR",
		EISDIR: "EISDIR", EINVAL: "EINVAL", EEXIST: "EEXIST", ENFILE: "ENFILE", EMFILE: "EMFILE",
		EFBIG: "EFBIG", ENOSPC: "ENOSPC", ESPIPE: "ESPIPE",
		ENAMETOOLONG: "ENAMETOOLONG", ENOTEMPTY: "ENOTEMPTY", ELOOP: "ELOOP",
	}
	if e == 0 {
		return "OK"
	}
	if n, ok := names[-e]; ok {
		return n
	}
	return "EUNKNOWN"
}
