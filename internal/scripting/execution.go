package scripting

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ScriptExecution is one run of a script body. It is created when a script is
// invoked and destroyed when its event loop reports completion, timeout, or
// cancellation. The goroutine running its event loop owns it exclusively;
// worker goroutines only ever see it as the routing key for work outcomes.
type ScriptExecution struct {
	id       string
	name     string
	snapshot *CapabilitySnapshot

	timeoutMu sync.Mutex
	timeout   time.Duration

	cancelled    atomic.Bool
	terminal     atomic.Bool
	asyncStarted atomic.Bool
	outstanding  atomic.Int64

	completionsMu sync.Mutex
	completions   []workOutcome

	// wake is signalled when a work outcome is queued, so task-only scripts
	// settle without waiting for a tick boundary.
	wake chan struct{}
}

func newScriptExecution(name string, snapshot *CapabilitySnapshot, timeout time.Duration) *ScriptExecution {
	return &ScriptExecution{
		id:       uuid.NewString(),
		name:     name,
		snapshot: snapshot,
		timeout:  timeout,
		wake:     make(chan struct{}, 1),
	}
}

// ID returns the unique id of this execution.
func (x *ScriptExecution) ID() string { return x.id }

// Name returns the script name this execution was created for.
func (x *ScriptExecution) Name() string { return x.name }

// Cancel flags the execution for termination. The next drive cycle observes
// the flag, cancels pending timers, and returns Cancelled. Idempotent.
func (x *ScriptExecution) Cancel() {
	x.cancelled.Store(true)
	x.signalWake()
}

// Cancelled reports whether an explicit stop has been requested.
func (x *ScriptExecution) Cancelled() bool {
	return x.cancelled.Load()
}

// Timeout returns the wall-clock deadline budget for the event loop.
func (x *ScriptExecution) Timeout() time.Duration {
	x.timeoutMu.Lock()
	defer x.timeoutMu.Unlock()
	return x.timeout
}

// setTimeout adjusts the event loop timeout. Only legal before the first
// async operation; the async surface enforces that and the 1000ms floor.
func (x *ScriptExecution) setTimeout(d time.Duration) {
	x.timeoutMu.Lock()
	x.timeout = d
	x.timeoutMu.Unlock()
}

// markAsyncStarted records that the execution issued its first async
// operation, freezing the timeout.
func (x *ScriptExecution) markAsyncStarted() {
	x.asyncStarted.Store(true)
}

func (x *ScriptExecution) signalWake() {
	select {
	case x.wake <- struct{}{}:
	default:
	}
}

// enqueueOutcome delivers a worker outcome to this execution's completion
// queue. Called from worker goroutines; the event loop goroutine is the sole
// consumer. Outcomes arriving after the execution went terminal are dropped,
// never resolved.
func (x *ScriptExecution) enqueueOutcome(o workOutcome) {
	if x.terminal.Load() {
		x.outstanding.Add(-1)
		return
	}
	x.completionsMu.Lock()
	x.completions = append(x.completions, o)
	x.completionsMu.Unlock()
	x.signalWake()
}

// drainOutcomes takes all queued outcomes in FIFO completion order.
func (x *ScriptExecution) drainOutcomes() []workOutcome {
	x.completionsMu.Lock()
	out := x.completions
	x.completions = nil
	x.completionsMu.Unlock()
	return out
}

// finish marks the execution terminal and discards anything still queued.
func (x *ScriptExecution) finish() {
	x.terminal.Store(true)
	dropped := x.drainOutcomes()
	if n := len(dropped); n > 0 {
		x.outstanding.Add(int64(-n))
	}
}

// idle reports whether the execution has no outstanding worker items.
func (x *ScriptExecution) idle() bool {
	return x.outstanding.Load() == 0
}
