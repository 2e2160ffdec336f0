package scripting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	e := NewEngine(opts)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// startTicks drives the engine's tick source rapidly for the duration of the
// test. Ordering assertions stay deterministic because timers fire by
// remaining-tick count, not wall-clock time.
func startTicks(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Tick()
			}
		}
	}()
}

// recorder is a thread-safe log scripts append to via a capability-tagged
// binding; tests assert on the observed entries.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) record(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, fmt.Sprint(v))
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}

// install exposes the recorder as a thread-safe `record` binding.
func (r *recorder) install(e *Engine) {
	e.ExposeBinding("record", MarkThreadSafe(r.record))
}
