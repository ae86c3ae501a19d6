// Package klog is the kernel's structured logger, wrapping logrus the
// way the teacher's kernel writes to its boot console: one shared
// logger, fields named after kernel concepts (tid, sector, upage) rather
// than generic key/value pairs, so log lines read like kernel trace
// output rather than application telemetry.
package klog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	}
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbose raises the log level to Debug, matching a kernel boot flag
// like Biscuit's -v.
func SetVerbose(v bool) {
	if v {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }

// Fields is a typed subset of logrus.Fields restricted to the identifiers
// that actually recur across the kernel's subsystems.
type Fields struct {
	Tid    int
	Sector int
	Upage  uintptr
}

func (f Fields) entry() *logrus.Entry {
	e := logrus.NewEntry(log)
	if f.Tid != 0 {
		e = e.WithField("tid", f.Tid)
	}
	if f.Sector != 0 {
		e = e.WithField("sector", f.Sector)
	}
	if f.Upage != 0 {
		e = e.WithField("upage", f.Upage)
	}
	return e
}

// With returns a logger pre-populated with the given kernel fields.
func With(f Fields) *logrus.Entry {
	return f.entry()
}
