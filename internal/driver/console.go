package driver

import "sync"

// consoleBuffer keeps a bounded window of recent console messages.
// Browser events arrive on chromedp's listener goroutine while snapshots
// are taken from the test flow, so access is synchronized.
type consoleBuffer struct {
	mu      sync.Mutex
	max     int
	entries []string
}

func newConsoleBuffer(max int) *consoleBuffer {
	if max <= 0 {
		max = 50
	}
	return &consoleBuffer{max: max}
}

// Append records one message, evicting the oldest entry when full.
func (b *consoleBuffer) Append(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, msg)
	if len(b.entries) > b.max {
		b.entries = b.entries[len(b.entries)-b.max:]
	}
}

// Snapshot returns a copy of the buffered messages, oldest first.
// Returns nil when nothing has been captured.
func (b *consoleBuffer) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return nil
	}
	out := make([]string, len(b.entries))
	copy(out, b.entries)
	return out
}
