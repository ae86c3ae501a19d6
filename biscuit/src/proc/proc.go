package proc

import (
	"sync"

	"defs"
	"fd"
	"vm"
)

var (
	tableMu sync.Mutex
	table   = make(map[defs.Tid_t]*Thread_t)
	nextTid defs.Tid_t = 1
)

// Spawn creates a new thread, wires it into the process table and its
// parent's child-wait-list, and starts its goroutine -- the substrate
// standing in for a real `spawn` trap (spec.md §4.1: "Created via
// spawn"). entry is the UserEntry driver that will run once the
// scheduler first grants this thread the CPU; a nil parent marks the
// initial/root process, which has no wait-node. Allocation failure (the
// table already holding maxProcs threads) returns an error identifier
// without touching the parent, per spec.md's Failure semantics.
func Spawn(parent *Thread_t, name string, as *vm.Vm_t, entry func(*Thread_t)) (*Thread_t, defs.Err_t) {
	tableMu.Lock()
	if len(table) >= maxProcs {
		tableMu.Unlock()
		return nil, -defs.ENOMEM
	}
	id := nextTid
	nextTid++
	tableMu.Unlock()

	t := newThread(id, name, PriDefault)
	t.Vm = as
	t.UserEntry = entry
	if parent != nil {
		t.Cwd = parent.Cwd
		t.parent = parent
		wn := newWaitNode(t)
		parent.mu.Lock()
		parent.children = append(parent.children, wn)
		parent.mu.Unlock()
		t.wn = wn
	} else {
		t.Cwd = fd.MkRootCwd(nil)
	}

	tableMu.Lock()
	table[id] = t
	tableMu.Unlock()

	Sched.AddReady(t)

	go func() {
		<-t.resume
		if t.UserEntry != nil {
			t.UserEntry(t)
		}
		Exit(t, 0, false)
	}()

	return t, 0
}

// maxProcs bounds the process table the way limits.Syslimit bounds
// kernel-wide resource tables elsewhere in this kernel.
const maxProcs = 4096

// Lookup returns the thread with the given id, if it is still live.
func Lookup(id defs.Tid_t) (*Thread_t, bool) {
	tableMu.Lock()
	defer tableMu.Unlock()
	t, ok := table[id]
	return t, ok
}

// Exit tears down a thread's process-owned resources and reports status
// to its parent (spec.md's Cancellation paragraph): closes every FD,
// destroys its address space, posts its wait-node, frees its own child
// wait-nodes, and hands the CPU to the scheduler. killed marks trap-layer
// termination, which spec.md requires to report status -1 regardless of
// the status argument.
func Exit(t *Thread_t, status int, killed bool) {
	t.mu.Lock()
	if t.exited {
		t.mu.Unlock()
		return
	}
	t.exited = true
	if killed {
		status = -1
	}
	t.exitStatus = status
	t.killed = killed
	t.mu.Unlock()

	t.CloseAllFds()
	if t.Vm != nil {
		t.Vm.Destroy()
	}
	ReapChildren(t)

	tableMu.Lock()
	delete(table, t.Id)
	tableMu.Unlock()

	if t.wn != nil {
		t.wn.post(status)
		// An orphan (parent already exited) signals no one, matching
		// ReapChildren's own invariant that orphaned children no longer
		// wake anyone: waking an already-exited parent here would put a
		// thread whose goroutine has already returned back onto the
		// ready queue, and Finish's resume send to it would block
		// forever.
		if _, live := Lookup(t.parent.Id); live {
			Sched.Wake(t.parent)
		}
	}

	Sched.Finish(t)
}
