package proc

import (
	"container/list"
	"sync"

	"defs"
)

// Policy_t selects one of spec.md §4.1's two scheduling policies.
type Policy_t int

const (
	PolicyPriority Policy_t = iota
	Policy4BSD
)

const (
	timeSlice  = 4   // default time slice, in ticks
	ticksPerSec = 100 // matches Pintos's TIMER_FREQ
)

// Sched_t is the single system-wide scheduler: one ready queue, one
// notion of "the" running thread, matching spec.md §1's single-CPU,
// cooperative model. Each Thread_t's goroutine blocks on its own resume
// channel whenever it is not the scheduler's chosen thread, so control
// passes between goroutines the way it would pass between stack frames
// on a real single CPU -- exactly one is ever actually executing.
type Sched_t struct {
	mu      sync.Mutex
	policy  Policy_t
	ready   *list.List // of *Thread_t
	current *Thread_t
	ticks   int64
	loadAvg Fixed_t
	all     map[*Thread_t]bool // every live thread, for 4BSD recompute
	sleepers []*Thread_t
	finished []ThreadStat // accounting frozen at each thread's Finish
}

var Sched = &Sched_t{ready: list.New(), all: make(map[*Thread_t]bool)}

// Init selects the scheduling policy and resets the scheduler's
// process-wide state (ready queue, thread set, ticks, load average, sleep
// list, finished-thread stats, shutdown signal) so each boot starts
// fresh; called once at the start of every boot.
func Init(policy Policy_t) {
	Sched.mu.Lock()
	Sched.policy = policy
	Sched.ready = list.New()
	Sched.current = nil
	Sched.ticks = 0
	Sched.loadAvg = 0
	Sched.all = make(map[*Thread_t]bool)
	Sched.sleepers = nil
	Sched.finished = nil
	Sched.mu.Unlock()
	shutdownCh = make(chan struct{})
}

func (s *Sched_t) readyAppend(t *Thread_t) {
	s.ready.PushBack(t)
}

// pickNextLocked returns the highest-effective-priority Ready thread,
// breaking ties by FIFO order (spec.md: "among equal priorities, the
// head of the FIFO wins"). Caller must hold s.mu.
func (s *Sched_t) pickNextLocked() *Thread_t {
	var best *list.Element
	var bestT *Thread_t
	for e := s.ready.Front(); e != nil; e = e.Next() {
		t := e.Value.(*Thread_t)
		if bestT == nil || t.EffPrio > bestT.EffPrio {
			best = e
			bestT = t
		}
	}
	if best == nil {
		return nil
	}
	s.ready.Remove(best)
	return bestT
}

// AddReady registers a newly spawned thread and puts it on the ready
// queue.
func (s *Sched_t) AddReady(t *Thread_t) {
	s.mu.Lock()
	s.all[t] = true
	s.readyAppend(t)
	s.mu.Unlock()
}

// Snapshot returns every thread still admitted to the scheduler (not
// yet finished). Finished threads are dropped from s.all by Finish, so
// this alone can't answer "every thread that ever ran" -- see
// FinishedStats for that.
func (s *Sched_t) Snapshot() []*Thread_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := make([]*Thread_t, 0, len(s.all))
	for t := range s.all {
		ts = append(ts, t)
	}
	return ts
}

// ThreadStat is a frozen copy of one thread's identity and CPU
// accounting, taken at the moment it finished -- kstat's dump reads
// this list since the live Thread_t itself is gone by the time the
// whole system has shut down.
type ThreadStat struct {
	Id     defs.Tid_t
	Name   string
	Userns int64
	Sysns  int64
}

// FinishedStats returns a copy of the accounting for every thread that
// has completed so far.
func (s *Sched_t) FinishedStats() []ThreadStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ThreadStat, len(s.finished))
	copy(out, s.finished)
	return out
}

// Current returns the thread the scheduler believes is presently
// running. It is the substrate-changed replacement for the teacher's
// tinfo.Current() (see package doc).
func Current() *Thread_t {
	Sched.mu.Lock()
	defer Sched.mu.Unlock()
	return Sched.current
}

// Start hands the CPU to the first thread, blocking until the whole
// simulated system (every thread) has run to completion. Call once from
// kernel boot after spawning the init process.
func (s *Sched_t) Start() {
	s.mu.Lock()
	first := s.pickNextLocked()
	s.mu.Unlock()
	if first == nil {
		return
	}
	first.setState(Running)
	s.mu.Lock()
	s.current = first
	s.mu.Unlock()
	first.resume <- struct{}{}
	<-shutdownCh
}

var shutdownCh = make(chan struct{})

// Yield voluntarily gives up the CPU while remaining Ready, then blocks
// until rescheduled.
func (s *Sched_t) Yield(t *Thread_t) {
	t.setState(Ready)
	t.ticksLeft = timeSlice
	s.switchFrom(t, true)
	<-t.resume
}

// Block transitions t to Blocked (caller has already arranged for it to
// be woken, e.g. queued on a lock's waiters or the sleep list) and
// switches away, not re-queuing t.
func (s *Sched_t) Block(t *Thread_t) {
	t.setState(Blocked)
	s.switchFrom(t, false)
	<-t.resume
}

// Wake transitions a Blocked thread back to Ready and onto the queue. If
// the woken thread now outranks the current one, Wake sets the current
// thread's preemptRequested flag, and that thread yields at its next
// Checkin; Wake itself does not switch threads.
func (s *Sched_t) Wake(t *Thread_t) {
	t.setState(Ready)
	s.mu.Lock()
	s.readyAppend(t)
	cur := s.current
	s.mu.Unlock()
	if cur != nil && t.EffPrio > cur.EffPrio {
		cur.preemptRequested = true
	}
}

// Finish hands off the CPU to the next ready thread without re-queuing
// or waiting -- used when a thread's goroutine is about to return
// (process exit).
func (s *Sched_t) Finish(t *Thread_t) {
	t.setState(Dying)
	var userns, sysns int64
	if t.Accnt != nil {
		userns, sysns = t.Accnt.Userns, t.Accnt.Sysns
	}
	s.mu.Lock()
	delete(s.all, t)
	s.finished = append(s.finished, ThreadStat{
		Id:     t.Id,
		Name:   t.Name,
		Userns: userns,
		Sysns:  sysns,
	})
	nxt := s.pickNextLocked()
	s.mu.Unlock()
	if nxt == nil {
		close(shutdownCh)
		return
	}
	nxt.setState(Running)
	s.mu.Lock()
	s.current = nxt
	s.mu.Unlock()
	nxt.resume <- struct{}{}
}

func (s *Sched_t) switchFrom(t *Thread_t, requeue bool) {
	s.mu.Lock()
	if requeue {
		s.readyAppend(t)
	}
	nxt := s.pickNextLocked()
	s.mu.Unlock()
	if nxt == nil {
		// nothing else runnable: t keeps the CPU
		s.mu.Lock()
		s.current = t
		s.mu.Unlock()
		t.setState(Running)
		go func() { t.resume <- struct{}{} }()
		return
	}
	nxt.setState(Running)
	s.mu.Lock()
	s.current = nxt
	s.mu.Unlock()
	nxt.resume <- struct{}{}
}

// Checkin is called by a thread's UserEntry driver at each simulated
// instruction boundary to let the scheduler account for a tick and
// preempt if the time slice has expired or a higher-priority thread
// became ready -- standing in for the timer interrupt spec.md describes.
func (s *Sched_t) Checkin(t *Thread_t) {
	t.CheckStack()
	s.mu.Lock()
	s.ticks++
	ticks := s.ticks
	policy := s.policy
	s.mu.Unlock()

	TickSleepers(ticks)

	if policy == Policy4BSD {
		t.RecentCPU = t.RecentCPU.AddInt(1)
		if ticks%4 == 0 {
			s.recomputeAllPriorities()
		}
		if ticks%ticksPerSec == 0 {
			s.recomputeLoadAvgAndRecentCPU()
		}
	}

	t.ticksLeft--
	if t.ticksLeft <= 0 || t.preemptRequested {
		t.preemptRequested = false
		s.Yield(t)
	}
}

// recomputeAllPriorities applies spec.md's 4BSD formula:
// priority = PRI_MAX - recent_cpu/4 - 2*nice, clamped to [0,63].
func (s *Sched_t) recomputeAllPriorities() {
	s.mu.Lock()
	threads := make([]*Thread_t, 0, len(s.all))
	for t := range s.all {
		threads = append(threads, t)
	}
	s.mu.Unlock()
	for _, t := range threads {
		p := PriMax - t.RecentCPU.DivInt(4).ToIntRound() - 2*t.Nice
		if p < PriMin {
			p = PriMin
		}
		if p > PriMax {
			p = PriMax
		}
		t.mu.Lock()
		t.BasePrio = p
		t.mu.Unlock()
		t.recomputeEffPrio()
	}
}

// recomputeLoadAvgAndRecentCPU applies spec.md's per-second 4BSD
// recompute: load_avg = (59/60)*load_avg + (1/60)*ready_threads, then
// recent_cpu = (2*load_avg)/(2*load_avg+1)*recent_cpu + nice for every
// thread.
func (s *Sched_t) recomputeLoadAvgAndRecentCPU() {
	s.mu.Lock()
	ready := s.ready.Len()
	if s.current != nil {
		ready++ // the running thread counts as "ready" for load_avg
	}
	f59 := Fixed_t(59 * fixedF).DivInt(60)
	f1 := Fixed_t(1 * fixedF).DivInt(60)
	s.loadAvg = f59.Mul(s.loadAvg).Add(f1.MulInt(ready))
	la := s.loadAvg
	threads := make([]*Thread_t, 0, len(s.all))
	for t := range s.all {
		threads = append(threads, t)
	}
	s.mu.Unlock()

	twoLa := la.MulInt(2)
	coeff := twoLa.Div(twoLa.AddInt(1))
	for _, t := range threads {
		t.RecentCPU = coeff.Mul(t.RecentCPU).AddInt(t.Nice)
	}
}
