package scripting

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// tickSource is the bridge between the host's fixed-rate simulation step and
// the event loop. The host (or the built-in wall-clock driver) calls Tick once
// per step; the running event loop observes the monotonic counter and applies
// however many ticks elapsed since it last looked.
type tickSource struct {
	count atomic.Uint64

	mu  sync.Mutex
	sub chan struct{}
}

// Tick records one host tick and wakes the subscribed event loop, if any.
// Wake-ups coalesce; the counter does not.
func (t *tickSource) Tick() {
	t.count.Add(1)
	t.mu.Lock()
	sub := t.sub
	t.mu.Unlock()
	if sub != nil {
		select {
		case sub <- struct{}{}:
		default:
		}
	}
}

// Count returns the total ticks observed since startup.
func (t *tickSource) Count() uint64 {
	return t.count.Load()
}

// subscribe registers the (single) event loop wake channel and returns an
// unsubscribe func. Only one event loop runs at a time, so a single slot
// suffices.
func (t *tickSource) subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	t.sub = ch
	t.mu.Unlock()
	return ch, func() {
		t.mu.Lock()
		if t.sub == ch {
			t.sub = nil
		}
		t.mu.Unlock()
	}
}

// runWallClock drives the tick source at the given rate until the context is
// cancelled. Hosts with their own simulation loop call Tick directly instead.
func (t *tickSource) runWallClock(ctx context.Context, ticksPerSecond int) {
	if ticksPerSecond <= 0 {
		ticksPerSecond = DefaultTicksPerSecond
	}
	interval := time.Second / time.Duration(ticksPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}
