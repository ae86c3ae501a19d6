// Package proc implements the kernel's thread/process core: scheduling,
// priority donation, sleep/wake, and parent/child exit reporting
// (spec.md §4.1). It follows the teacher's separation of a thread's
// static identity (Thread_t) from its accounting (accnt.Accnt_t, kept
// unchanged) and FD/cwd state (fd.Fd_t/fd.Cwd_t, kept unchanged); the
// teacher's tinfo.Tinfo_t (per-goroutine thread-local storage reached
// through a forked runtime) has no substrate to stand on here and is
// replaced by Current(), a scheduler-held pointer -- valid because
// spec.md's scheduling model is single-CPU and cooperative, so exactly
// one thread is ever actually running.
package proc

import (
	"sync"

	"accnt"
	"defs"
	"fd"
	"vm"
)

// State_t is a thread's position in spec.md §4.1's state machine.
type State_t int

const (
	Running State_t = iota
	Ready
	Blocked
	Dying
)

func (s State_t) String() string {
	switch s {
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	default:
		return "dying"
	}
}

const (
	PriMin     = 0
	PriMax     = 63
	PriDefault = 31
	NiceMin    = -20
	NiceMax    = 20
	// MaxLocksHeld is the bounded locks-held list spec.md §3 calls for
	// ("list of locks held (bounded, default cap 10)").
	MaxLocksHeld = 10
)

// Thread_t is spec.md §3's Thread entity.
type Thread_t struct {
	mu sync.Mutex

	Id    defs.Tid_t
	Name  string
	state State_t

	// SP stands in for the saved kernel stack pointer a real context
	// switch would restore; there is no real machine stack to save here
	// (see DESIGN.md's Execution model), so it is bookkeeping only,
	// useful for the stack-overflow sentinel check below.
	SP uintptr

	BasePrio int
	EffPrio  int
	locks    []*Lock_t // held locks, len <= MaxLocksHeld
	WaitingOn *Lock_t

	Nice      int
	RecentCPU Fixed_t

	WakeTime int64 // tick count; valid only while Blocked for sleep

	Cwd *fd.Cwd_t
	fds map[int]*fd.Fd_t
	nextFd int

	Vm *vm.Vm_t

	Accnt *accnt.Accnt_t

	parent   *Thread_t
	wn       *waitNode // this thread's own node in its parent's child list
	children []*waitNode

	// ticksLeft counts down the strict-priority scheduler's time slice.
	ticksLeft int

	// resume is signaled by the scheduler to let this thread's goroutine
	// proceed; the goroutine blocks on it whenever it is not Running.
	resume chan struct{}

	// preemptRequested is set by Wake when a newly-readied thread
	// outranks the current one; Checkin consults and clears it.
	preemptRequested bool

	// UserEntry is the injectable driver standing in for the real
	// instruction stream a loaded ELF binary would execute (see
	// DESIGN.md's Execution model). It is called once, on the thread's
	// own goroutine, after the thread is first scheduled; it must call
	// Checkin periodically and return when the simulated program exits.
	UserEntry func(t *Thread_t)

	// exited guards against a double Exit: UserEntry may call proc.Exit
	// itself (the sys_exit path) or simply return (the implicit exit(0)
	// a program that falls off the end gets); Spawn's wrapper goroutine
	// calls Exit unconditionally once UserEntry returns either way, so
	// Exit must be a no-op on the second call.
	exited     bool
	exitStatus int
	killed     bool
}

const stackSentinel = uintptr(0xdeadbeef)

// newThread allocates a thread with base and effective priority equal,
// an empty FD table starting at fd 2 (0 and 1 are conventionally
// reserved, matching the teacher's Ultrix-style fd numbering), and its
// own resume channel.
func newThread(id defs.Tid_t, name string, prio int) *Thread_t {
	t := &Thread_t{
		Id:        id,
		Name:      name,
		state:     Ready,
		SP:        stackSentinel,
		BasePrio:  prio,
		EffPrio:   prio,
		Nice:      0,
		Cwd:       nil,
		fds:       make(map[int]*fd.Fd_t),
		nextFd:    2,
		Accnt:     &accnt.Accnt_t{},
		resume:    make(chan struct{}),
		ticksLeft: timeSlice,
	}
	return t
}

// CheckStack panics if the stack sentinel has been overwritten, per
// spec.md §4.1's "Failure semantics": "a sentinel word at the bottom of
// each kernel stack is verified on every context check; corruption is
// fatal."
func (t *Thread_t) CheckStack() {
	if t.SP != stackSentinel {
		panic("proc: kernel stack sentinel corrupted")
	}
}

func (t *Thread_t) State() State_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Thread_t) setState(s State_t) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// AddFd installs fdo at the next free descriptor number and returns it.
func (t *Thread_t) AddFd(fdo *fd.Fd_t) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.nextFd
	t.nextFd++
	t.fds[n] = fdo
	return n
}

func (t *Thread_t) GetFd(n int) (*fd.Fd_t, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.fds[n]
	return f, ok
}

func (t *Thread_t) RemoveFd(n int) (*fd.Fd_t, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.fds[n]
	if ok {
		delete(t.fds, n)
	}
	return f, ok
}

// CloseAllFds closes every open descriptor, for process exit.
func (t *Thread_t) CloseAllFds() {
	t.mu.Lock()
	fds := t.fds
	t.fds = make(map[int]*fd.Fd_t)
	t.mu.Unlock()
	for _, f := range fds {
		fd.Close_panic(f)
	}
}

// addLock records l as held, enforcing spec.md's bounded cap.
func (t *Thread_t) addLock(l *Lock_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.locks) >= MaxLocksHeld {
		panic("proc: locks-held list exceeds cap")
	}
	t.locks = append(t.locks, l)
}

func (t *Thread_t) removeLock(l *Lock_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, h := range t.locks {
		if h == l {
			t.locks = append(t.locks[:i], t.locks[i+1:]...)
			break
		}
	}
}

// recomputeEffPrio sets EffPrio to the max of base priority and the
// priorities donated by every lock still held, reverting to base when no
// locks remain (spec.md §4.1's donation-release rule).
func (t *Thread_t) recomputeEffPrio() {
	t.mu.Lock()
	defer t.mu.Unlock()
	max := t.BasePrio
	for _, l := range t.locks {
		if p := l.maxWaiterPrio(); p > max {
			max = p
		}
	}
	t.EffPrio = max
}
