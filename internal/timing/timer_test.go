package timing

import (
	"testing"
	"time"
)

func TestStopReturnsElapsedMillis(t *testing.T) {
	h := Start()
	time.Sleep(15 * time.Millisecond)
	ms := Stop(h)

	if ms < 10 {
		t.Fatalf("Stop() = %d ms, want >= 10", ms)
	}
	if ms > 5000 {
		t.Fatalf("Stop() = %d ms, implausibly large", ms)
	}
}

func TestStopNeverNegative(t *testing.T) {
	// A zero-value handle has a zero start time, which makes the elapsed
	// duration enormous but still non-negative.
	if ms := Stop(Start()); ms < 0 {
		t.Fatalf("Stop() = %d, want >= 0", ms)
	}
}
