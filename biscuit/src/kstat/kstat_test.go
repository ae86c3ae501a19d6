package kstat_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defs"
	"kstat"
	"proc"
)

// TestBuildCoversLiveAndFinishedThreads drives one full scheduler boot
// (proc.Sched is a process-wide singleton that proc.Init resets at the
// start of each boot, as proc's own scheduler test documents). "worker" exits
// before "watcher" runs, so by the time watcher's own entry func calls
// kstat.Build, worker only shows up via Sched.FinishedStats (Finish
// already dropped it from the live set) while watcher -- still running,
// its own Exit not yet called -- shows up via Sched.Snapshot instead.
// Once Sched.Start returns every thread has gone through Exit/Finish,
// so that split only observes from inside a still-running thread.
func TestBuildCoversLiveAndFinishedThreads(t *testing.T) {
	proc.Init(proc.PolicyPriority)

	workerT, err := proc.Spawn(nil, "worker", nil, func(th *proc.Thread_t) {
		th.Accnt.Utadd(1000)
		th.Accnt.Systadd(250)
	})
	require.Equal(t, defs.Err_t(0), err)
	workerT.BasePrio, workerT.EffPrio = 50, 50

	var p *profile.Profile
	_, err = proc.Spawn(nil, "watcher", nil, func(th *proc.Thread_t) {
		th.Accnt.Utadd(2000)
		th.Accnt.Systadd(500)
		p = kstat.Build()
	})
	require.Equal(t, defs.Err_t(0), err)

	proc.Sched.Start()

	require.NotNil(t, p)
	require.NoError(t, p.CheckValid())
	require.Len(t, p.Sample, 2)
	require.Len(t, p.Function, 2)

	byName := make(map[string]*profile.Sample)
	for _, s := range p.Sample {
		byName[s.Location[0].Line[0].Function.Name] = s
	}

	worker := byName["worker"]
	require.NotNil(t, worker)
	assert.Equal(t, []int64{1000, 250}, worker.Value)
	assert.Equal(t, []string{"finished"}, worker.Label["state"])

	watcher := byName["watcher"]
	require.NotNil(t, watcher)
	assert.Equal(t, []int64{2000, 500}, watcher.Value)
	assert.Equal(t, []string{"live"}, watcher.Label["state"])
}

func TestDumpWritesParseableProfile(t *testing.T) {
	proc.Init(proc.PolicyPriority)

	_, err := proc.Spawn(nil, "only", nil, func(th *proc.Thread_t) {
		th.Accnt.Utadd(42)
	})
	require.Equal(t, defs.Err_t(0), err)

	proc.Sched.Start()

	dir := t.TempDir()
	path := dir + "/kstat.pprof"
	require.NoError(t, kstat.Dump(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	parsed, err := profile.Parse(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, parsed.Sample, 1)
	assert.Equal(t, int64(42), parsed.Sample[0].Value[0])
}
