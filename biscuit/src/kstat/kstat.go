// Package kstat dumps per-thread CPU accounting as a pprof profile for
// offline inspection, replacing the teacher's Stats/Timing cycle
// counters (always compiled out in the retrieved tree) with real
// accnt.Accnt_t data exported in a format `go tool pprof` already
// understands, instead of another fmt.Printf table.
package kstat

import (
	"fmt"
	"os"

	"github.com/google/pprof/profile"

	"proc"
)

// Dump writes a pprof profile describing every thread the scheduler
// has ever admitted -- both still-live ones (via Sched.Snapshot) and
// ones that have already finished (via Sched.FinishedStats, since
// Sched.Finish drops a thread from the live set once it exits) -- to
// path. One pprof sample per thread; the two value types are
// accumulated user and system nanoseconds, taken straight from the
// thread's accnt.Accnt_t.
func Dump(path string) error {
	p := Build()
	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("kstat: invalid profile: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("kstat: %w", err)
	}
	defer f.Close()
	if err := p.Write(f); err != nil {
		return fmt.Errorf("kstat: writing profile: %w", err)
	}
	return nil
}

// Build assembles the profile in memory without touching the
// filesystem -- split out from Dump so tests can inspect it directly.
func Build() *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "user", Unit: "nanoseconds"},
			{Type: "sys", Unit: "nanoseconds"},
		},
		PeriodType: &profile.ValueType{Type: "thread", Unit: "count"},
		Period:     1,
	}

	var nextID uint64
	id := func() uint64 {
		nextID++
		return nextID
	}

	addThread := func(tid int64, name string, userns, sysns int64, live bool) {
		fn := &profile.Function{
			ID:   id(),
			Name: name,
		}
		p.Function = append(p.Function, fn)
		loc := &profile.Location{
			ID:   id(),
			Line: []profile.Line{{Function: fn}},
		}
		p.Location = append(p.Location, loc)

		state := "finished"
		if live {
			state = "live"
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{userns, sysns},
			Label:    map[string][]string{"state": {state}},
			NumLabel: map[string][]int64{"tid": {tid}},
			NumUnit:  map[string][]string{"tid": {""}},
		})
	}

	for _, ts := range proc.Sched.FinishedStats() {
		addThread(int64(ts.Id), ts.Name, ts.Userns, ts.Sysns, false)
	}
	for _, t := range proc.Sched.Snapshot() {
		userns, sysns := int64(0), int64(0)
		if a := t.Accnt; a != nil {
			userns, sysns = a.Userns, a.Sysns
		}
		addThread(int64(t.Id), t.Name, userns, sysns, true)
	}

	return p
}
