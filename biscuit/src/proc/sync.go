package proc

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// donationDepthCap bounds how far a priority donation chain is walked
// before giving up, mirroring pintos's own thread.c (donation nesting is
// capped there too, to bound worst-case acquire latency rather than walk
// an unbounded waiter graph).
const donationDepthCap = 8

// Lock_t is a mutex with priority donation, built on a binary semaphore
// the way the teacher's proc package builds its Lock_t on a Go channel --
// here the semaphore comes from golang.org/x/sync/semaphore rather than a
// hand-rolled channel, since that is exactly the primitive it exists for.
type Lock_t struct {
	mu      sync.Mutex // protects owner/waiters bookkeeping only
	sem     *semaphore.Weighted
	owner   *Thread_t
	waiters []*Thread_t
}

func NewLock() *Lock_t {
	return &Lock_t{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is free, donating this thread's effective
// priority up the waiter->holder chain while it waits. Blocking goes
// through Sched.Block/Wake rather than a raw semaphore wait, so the
// virtual single CPU this kernel simulates is handed to another ready
// thread instead of stalling -- the semaphore itself stores only the
// held/free bit (spec.md's Wait-node reuses the same idiom for exit
// status, where it is genuinely the sole state).
func (l *Lock_t) Acquire(t *Thread_t) {
	if l.sem.TryAcquire(1) {
		l.mu.Lock()
		l.owner = t
		l.mu.Unlock()
		t.addLock(l)
		return
	}

	l.mu.Lock()
	l.waiters = append(l.waiters, t)
	t.WaitingOn = l
	l.donate(t)
	l.mu.Unlock()

	for !l.sem.TryAcquire(1) {
		Sched.Block(t)
	}

	l.mu.Lock()
	for i, w := range l.waiters {
		if w == t {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			break
		}
	}
	l.owner = t
	t.WaitingOn = nil
	l.mu.Unlock()
	t.addLock(l)
}

// donate walks from the new waiter up through lock holders, raising each
// holder's effective priority to the waiter's if higher, stopping at
// donationDepthCap links or when a holder is not itself blocked on
// another lock (spec.md §4.1: "walks the waiter→holder chain... up to
// the chain end or a natural break").
func (l *Lock_t) donate(waiter *Thread_t) {
	cur := l
	depth := 0
	for cur != nil && depth < donationDepthCap {
		holder := cur.owner
		if holder == nil {
			return
		}
		holder.mu.Lock()
		if waiter.EffPrio > holder.EffPrio {
			holder.EffPrio = waiter.EffPrio
		}
		holder.mu.Unlock()
		next := holder.WaitingOn
		if next == nil {
			return
		}
		cur = next
		depth++
	}
}

// Release hands the lock to the next waiter (if any) and recomputes this
// thread's effective priority from its remaining held locks.
func (l *Lock_t) Release(t *Thread_t) {
	t.removeLock(l)
	t.recomputeEffPrio()

	l.mu.Lock()
	l.owner = nil
	waiters := append([]*Thread_t(nil), l.waiters...)
	l.mu.Unlock()
	l.sem.Release(1)

	for _, w := range waiters {
		Sched.Wake(w)
	}
}

// maxWaiterPrio returns the highest effective priority among threads
// currently waiting on l, or -1 if none -- used by
// Thread_t.recomputeEffPrio to compute donated priority.
func (l *Lock_t) maxWaiterPrio() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	max := -1
	for _, w := range l.waiters {
		if w.EffPrio > max {
			max = w.EffPrio
		}
	}
	return max
}
