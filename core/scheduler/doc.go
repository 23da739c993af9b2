// Package scheduler triggers synchronization passes at a fixed rate.
//
// The first pass starts immediately. Later passes start on a ticker whose
// period is measured from start to start, so a slow pass does not shift the
// schedule. At most one pass runs at a time; a tick that arrives while a pass
// is still running is skipped and logged.
//
// Run blocks until its context is cancelled, then waits for the pass in
// flight before returning.
package scheduler
