package proc

import (
	"context"

	"golang.org/x/sync/semaphore"

	"defs"
)

// waitNode is spec.md §3's Wait-node: "child id; waited flag; exit
// status; binary semaphore; parent/child back-refs." Exactly one exists
// per child, allocated at spawn; the parent's child-list is the owning
// reference, the child holds a pointer back to it that outlives the
// child goroutine itself (needed so a dying child can post the
// semaphore after its own Thread_t is otherwise discarded).
type waitNode struct {
	childID  defs.Tid_t
	waited   bool
	status   int
	sem      *semaphore.Weighted // starts held; child releases it at exit
	child    *Thread_t
}

const statusNotSpecified = -0x7fffffff

func newWaitNode(child *Thread_t) *waitNode {
	sem := semaphore.NewWeighted(1)
	sem.Acquire(context.Background(), 1) // held until the child posts
	return &waitNode{childID: child.Id, status: statusNotSpecified, sem: sem, child: child}
}

// post records the child's exit status and releases the semaphore,
// waking a parent blocked in Wait.
func (wn *waitNode) post(status int) {
	wn.status = status
	wn.sem.Release(1)
}

// Wait implements spec.md §4.1's parent/child wait: locates the node
// matching childID in parent's child list, downs its semaphore, reads
// the status, and returns it. Waiting twice on the same child, or on a
// pid the caller never spawned, returns failure immediately rather than
// blocking -- spec.md's "Double-waiting on the same child returns
// immediately with failure," generalized to cover the not-a-child case
// the same way (the source treats both as "no such live wait-node").
func Wait(parent *Thread_t, childID defs.Tid_t) (int, defs.Err_t) {
	parent.mu.Lock()
	var wn *waitNode
	for _, c := range parent.children {
		if c.childID == childID {
			wn = c
			break
		}
	}
	parent.mu.Unlock()

	if wn == nil {
		return -1, -defs.ECHILD
	}
	if wn.waited {
		return -1, -defs.ECHILD
	}
	wn.waited = true

	// Block until the child (or TryAcquire below once posted) signals.
	for {
		if wn.sem.TryAcquire(1) {
			break
		}
		Sched.Block(parent)
	}
	return wn.status, 0
}

// ReapChildren frees every child wait-node owned by parent, for process
// exit: "When the parent itself exits, it frees all child wait-nodes;
// orphaned children no longer signal anyone" -- the child's own post
// becomes a no-op deref since nothing waits on the node again.
func ReapChildren(parent *Thread_t) {
	parent.mu.Lock()
	parent.children = nil
	parent.mu.Unlock()
}
