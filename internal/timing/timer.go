// Package timing measures wall-clock duration of individual steps.
package timing

import "time"

// Handle marks the start of a measured operation.
//
// A Handle is single-use: obtain it from Start and pass it to Stop exactly
// once. Stopping the same handle twice is a programmer error and outside
// the contract.
type Handle struct {
	start time.Time
}

// Start begins measuring and returns a handle for Stop.
func Start() Handle {
	return Handle{start: time.Now()}
}

// Stop returns the elapsed time since Start in whole milliseconds.
// The result is never negative; the monotonic clock is used, so wall
// clock adjustments do not produce negative durations.
func Stop(h Handle) int64 {
	elapsed := time.Since(h.start)
	if elapsed < 0 {
		return 0
	}
	return elapsed.Milliseconds()
}
