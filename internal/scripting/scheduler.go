package scripting

import (
	"log/slog"
	"sync"
)

// timerState tracks the lifecycle of a tick timer: pending from creation
// until it fires or is cancelled, both terminal.
type timerState int

const (
	timerPending timerState = iota
	timerFired
	timerCancelled
)

// tickTimer is one countdown bound to a continuation. The resolve/reject pair
// is an opaque resumption handle; it is only ever invoked on the event loop
// goroutine.
type tickTimer struct {
	exec           *ScriptExecution
	resolve        func(any)
	reject         func(any)
	ticksRemaining int64
	state          timerState
	createdBatch   uint64
}

// TickScheduler holds countdown timers for the active execution. Timers are
// appended in submission order and scanned in that order on every advance, so
// timers expiring on the same tick fire FIFO. The collection is guarded by a
// single mutex with the event loop goroutine as sole consumer.
type TickScheduler struct {
	mu     sync.Mutex
	timers []*tickTimer
	batch  uint64
	logger *slog.Logger
}

// NewTickScheduler returns an empty scheduler.
func NewTickScheduler(logger *slog.Logger) *TickScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TickScheduler{logger: logger.With("component", "tick-scheduler")}
}

// Schedule registers a countdown of the given number of ticks for the
// execution. Tick counts below 1 are clamped to 1, so the timer fires on the
// next tick at the earliest.
func (s *TickScheduler) Schedule(exec *ScriptExecution, ticks int64, resolve, reject func(any)) {
	if ticks < 1 {
		ticks = 1
	}
	s.mu.Lock()
	s.timers = append(s.timers, &tickTimer{
		exec:           exec,
		resolve:        resolve,
		reject:         reject,
		ticksRemaining: ticks,
		createdBatch:   s.batch,
	})
	s.mu.Unlock()
}

// beginBatch opens a new drive batch. A batch spans however many ticks the
// event loop replays on one wake-up; timers scheduled during a batch (by
// continuations fired within it) are not decremented until the next batch,
// so catch-up replay cannot fast-forward a freshly created countdown in zero
// wall time.
func (s *TickScheduler) beginBatch() {
	s.mu.Lock()
	s.batch++
	s.mu.Unlock()
}

// Advance decrements every pending timer by one tick and returns the resolve
// continuations of timers that reached zero, in submission order. The caller
// (the event loop, on the tick goroutine) invokes them; firing re-enters the
// script evaluator, which must not happen under the scheduler lock.
func (s *TickScheduler) Advance() []func(any) {
	s.mu.Lock()
	var fired []func(any)
	remaining := s.timers[:0]
	for _, t := range s.timers {
		if t.state != timerPending {
			continue
		}
		if t.createdBatch == s.batch {
			remaining = append(remaining, t)
			continue
		}
		t.ticksRemaining--
		if t.ticksRemaining > 0 {
			remaining = append(remaining, t)
			continue
		}
		t.state = timerFired
		fired = append(fired, t.resolve)
	}
	s.timers = remaining
	s.mu.Unlock()
	if len(fired) > 0 {
		s.logger.Debug("timers fired", "count", len(fired))
	}
	return fired
}

// CancelAll cancels every pending timer for the given execution, or for all
// executions when exec is nil (host shutdown). It returns the reject
// continuations so the caller can deliver the cancellation signal on the tick
// goroutine.
func (s *TickScheduler) CancelAll(exec *ScriptExecution) []func(any) {
	s.mu.Lock()
	var rejected []func(any)
	remaining := s.timers[:0]
	for _, t := range s.timers {
		if t.state != timerPending || (exec != nil && t.exec != exec) {
			remaining = append(remaining, t)
			continue
		}
		t.state = timerCancelled
		rejected = append(rejected, t.reject)
	}
	s.timers = remaining
	s.mu.Unlock()
	return rejected
}

// Pending reports the number of pending timers for the given execution, or
// for all executions when exec is nil.
func (s *TickScheduler) Pending(exec *ScriptExecution) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if t.state == timerPending && (exec == nil || t.exec == exec) {
			n++
		}
	}
	return n
}
