package main

import (
	"klog"
	"proc"
)

// newEntryFactory builds the driver every exec'd thread runs in place of
// a real instruction stream (see ktrap.Kernel.EntryFactory and
// DESIGN.md's Execution model entry). There is no CPU here to fetch and
// decode the loaded ELF image's instructions, so the driver's only
// faithful job is the part of "running" that does have a substrate:
// accounting for at least one scheduler tick, the way Checkin would be
// called from the trap return path of a real timer interrupt, before the
// thread exits the way a program that immediately called exit(0) would.
func newEntryFactory() func(path string, argv []string, entry, sp uintptr) func(*proc.Thread_t) {
	return func(path string, argv []string, entry, sp uintptr) func(*proc.Thread_t) {
		return func(t *proc.Thread_t) {
			klog.Debugf("running %s argv=%v entry=%#x sp=%#x", path, argv, entry, sp)
			proc.Sched.Checkin(t)
		}
	}
}
