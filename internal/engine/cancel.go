package engine

import "sync/atomic"

// stopFlag is the single shared boolean that workers poll at the top of
// each per-file iteration. Cancellation is cooperative and best-effort: an
// in-flight copy finishes (or its rename completes) before the worker
// observes the flag and exits.
type stopFlag struct {
	requested atomic.Bool
	observed  atomic.Bool
}

func (f *stopFlag) request() {
	f.requested.Store(true)
}

// check returns true if a stop has been requested, and records that at
// least one worker observed it (used to pick the Cancelled terminal state).
func (f *stopFlag) check() bool {
	if f.requested.Load() {
		f.observed.Store(true)
		return true
	}
	return false
}

func (f *stopFlag) wasObserved() bool {
	return f.observed.Load()
}

func (f *stopFlag) reset() {
	f.requested.Store(false)
	f.observed.Store(false)
}
