package proc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"defs"
	"proc"
)

// TestSleepUntilWakesAtTargetTick drives one full scheduler boot (the
// package's scheduler state is a process-wide singleton that proc.Init
// resets, as scheduler_test.go documents). "sleeper" outranks "ticker"
// so it runs first and immediately blocks via SleepUntil; "ticker" then
// advances the tick counter via Checkin (the same per-tick path
// Sched.Checkin now drives TickSleepers through) until it reaches
// sleeper's wake tick. The third Checkin both wakes sleeper and, since
// sleeper now outranks the running ticker, self-preempts ticker --
// proving wake_time expiry actually unblocks the sleeper instead of
// leaving it parked forever.
func TestSleepUntilWakesAtTargetTick(t *testing.T) {
	proc.Init(proc.PolicyPriority)

	var order []string

	sleeperT, err := proc.Spawn(nil, "sleeper", nil, func(th *proc.Thread_t) {
		proc.SleepUntil(th, 3)
		order = append(order, "sleeper-woke")
	})
	require.Equal(t, defs.Err_t(0), err)
	sleeperT.BasePrio, sleeperT.EffPrio = 50, 50

	_, err = proc.Spawn(nil, "ticker", nil, func(th *proc.Thread_t) {
		for i := 0; i < 3; i++ {
			proc.Sched.Checkin(th)
		}
		order = append(order, "ticker-done")
	})
	require.Equal(t, defs.Err_t(0), err)

	proc.Sched.Start()

	require.Equal(t, []string{"sleeper-woke", "ticker-done"}, order)
}
