package vm

import "defs"

// Ubuf_i is the common interface the syscall layer reads/writes through,
// whether the other end is real user memory (Userbuf_t) or a kernel
// buffer standing in for it (Fakeubuf_t) -- the teacher's vm/userbuf.go
// pairs the same two implementations for the same reason: internal
// callers (e.g. loading argv) want the user-copy semantics without a
// real user address space. Dropped from the teacher's version: the
// resource-accounting hooks around each chunk copy (Resadd_noblock) and
// the scatter-gather Useriovec_t, neither of which spec.md's syscall
// surface (no readv/writev, no memory-exhaustion test harness) needs.
type Ubuf_i interface {
	Remain() int
	Totalsz() int
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
}

// Userbuf_t reads and writes a span of one process's user memory,
// faulting in pages as needed, one chunk at a time.
type Userbuf_t struct {
	as     *Vm_t
	userva int
	len    int
	off    int
}

func NewUserbuf(as *Vm_t, uva, length int) *Userbuf_t {
	if length < 0 {
		panic("vm: negative user buffer length")
	}
	return &Userbuf_t{as: as, userva: uva, len: length}
}

func (ub *Userbuf_t) Remain() int   { return ub.len - ub.off }
func (ub *Userbuf_t) Totalsz() int  { return ub.len }

func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	ub.as.Lock_pmap()
	defer ub.as.Unlock_pmap()
	return ub.tx(dst, false)
}

func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	ub.as.Lock_pmap()
	defer ub.as.Unlock_pmap()
	return ub.tx(src, true)
}

// tx copies min(len(buf), ub.Remain()) bytes between buf and the user
// buffer's current offset, one page-fragment at a time. touser means the
// kernel is writing into user memory (buf -> user).
func (ub *Userbuf_t) tx(buf []uint8, touser bool) (int, defs.Err_t) {
	ub.as.Lockassert_pmap()
	did := 0
	for len(buf) > 0 && ub.Remain() > 0 {
		va := ub.userva + ub.off
		mapped, err := ub.as.Userdmap8_inner(va, touser)
		if err != 0 {
			return did, err
		}
		n := len(mapped)
		if n > len(buf) {
			n = len(buf)
		}
		if n > ub.Remain() {
			n = ub.Remain()
		}
		if touser {
			copy(mapped[:n], buf)
		} else {
			copy(buf, mapped[:n])
		}
		buf = buf[n:]
		ub.off += n
		did += n
	}
	return did, 0
}

// Fakeubuf_t implements Ubuf_i over a plain kernel byte slice, for
// callers (the ELF argv writer, tests) that need the user-copy interface
// without a real address space behind it.
type Fakeubuf_t struct {
	buf []uint8
	len int
}

func NewFakeubuf(buf []uint8) *Fakeubuf_t {
	return &Fakeubuf_t{buf: buf, len: len(buf)}
}

func (fb *Fakeubuf_t) Remain() int  { return len(fb.buf) }
func (fb *Fakeubuf_t) Totalsz() int { return fb.len }

func (fb *Fakeubuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, fb.buf)
	fb.buf = fb.buf[n:]
	return n, 0
}

func (fb *Fakeubuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(fb.buf, src)
	fb.buf = fb.buf[n:]
	return n, 0
}
