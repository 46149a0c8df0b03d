package driver

import (
	"fmt"
	"sync"
	"testing"
)

func TestConsoleBufferBounded(t *testing.T) {
	b := newConsoleBuffer(3)

	for i := 1; i <= 5; i++ {
		b.Append(fmt.Sprintf("msg %d", i))
	}

	got := b.Snapshot()
	if len(got) != 3 {
		t.Fatalf("Snapshot() returned %d entries, want 3", len(got))
	}
	if got[0] != "msg 3" || got[2] != "msg 5" {
		t.Fatalf("Snapshot() = %v, want the newest three in order", got)
	}
}

func TestConsoleBufferEmptySnapshotIsNil(t *testing.T) {
	b := newConsoleBuffer(10)
	if got := b.Snapshot(); got != nil {
		t.Fatalf("Snapshot() on empty buffer = %v, want nil", got)
	}
}

func TestConsoleBufferConcurrentAppend(t *testing.T) {
	b := newConsoleBuffer(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.Append(fmt.Sprintf("w%d-%d", n, j))
			}
		}(i)
	}
	wg.Wait()

	if got := len(b.Snapshot()); got != 100 {
		t.Fatalf("Snapshot() returned %d entries, want cap of 100", got)
	}
}
