package scripting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dop251/goja"
)

// Outcome is the terminal state of one event loop run.
type Outcome int

const (
	// OutcomeCompleted means the script ran out of pending work.
	OutcomeCompleted Outcome = iota
	// OutcomeTimedOut means the wall-clock deadline elapsed with async work
	// outstanding.
	OutcomeTimedOut
	// OutcomeCancelled means an explicit stop was requested: Runtime.exit(),
	// reload, or host shutdown.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// EventLoop drives one ScriptExecution to an outcome. The goroutine running
// Run is the tick thread for the execution's lifetime: every timer fire,
// completion delivery, and evaluator re-entry happens there. Concurrency is
// confined to the worker pool; the script never runs concurrently with
// itself.
//
// Microtask draining is implicit: goja runs its job queue to exhaustion every
// time control returns from the evaluator, i.e. after the script body and
// after each continuation invoked here.
type EventLoop struct {
	engine   *Engine
	exec     *ScriptExecution
	vm       *goja.Runtime
	logger   *slog.Logger
	lastTick uint64
}

func newEventLoop(engine *Engine, exec *ScriptExecution) *EventLoop {
	return &EventLoop{
		engine: engine,
		exec:   exec,
		vm:     engine.vm,
		logger: engine.logger.With("component", "event-loop", "execution", exec.ID()),
	}
}

// Run executes the script body, then cycles: wait for a tick boundary or a
// completion wake-up, advance timers, drain worker completions, and repeat
// until no pending work remains, the deadline elapses, or a stop is
// requested.
func (l *EventLoop) Run(ctx context.Context, program *goja.Program) (Outcome, error) {
	start := time.Now()
	l.lastTick = l.engine.ticks.Count()

	tickC, unsubscribe := l.engine.ticks.subscribe()
	defer unsubscribe()
	defer l.exec.finish()

	if _, err := l.vm.RunProgram(program); err != nil {
		l.discardPending()
		return OutcomeCompleted, fmt.Errorf("script %s failed: %w", l.exec.Name(), err)
	}

	// The script body may have adjusted the timeout before going async, so
	// the deadline is derived from the execution rather than captured up
	// front. It is stable from here on: the timeout freezes at the first
	// async operation.
	deadline := start.Add(l.exec.Timeout())

	for {
		if l.exec.Cancelled() {
			l.rejectPending(&CancellationError{})
			return OutcomeCancelled, nil
		}
		if l.engine.scheduler.Pending(l.exec) == 0 && l.exec.idle() {
			return OutcomeCompleted, nil
		}
		now := time.Now()
		if !now.Before(deadline) {
			l.logger.Warn("event loop deadline exceeded",
				"timeout", l.exec.Timeout(),
				"pendingTimers", l.engine.scheduler.Pending(l.exec),
				"outstandingWork", l.exec.outstanding.Load())
			l.rejectPending(&TimeoutError{Timeout: l.exec.Timeout()})
			return OutcomeTimedOut, nil
		}

		wait := time.NewTimer(deadline.Sub(now))
		select {
		case <-tickC:
			wait.Stop()
			l.applyTicks()
			l.deliverOutcomes()
		case <-l.exec.wake:
			wait.Stop()
			l.deliverOutcomes()
		case <-ctx.Done():
			wait.Stop()
			l.exec.Cancel()
		case <-wait.C:
		}
	}
}

// applyTicks advances the scheduler once per host tick elapsed since the last
// drive cycle, firing due continuations in FIFO submission order. The replay
// runs as one batch: timers the continuations schedule are left untouched
// until the next wake-up, so falling behind never fast-forwards them.
func (l *EventLoop) applyTicks() {
	l.engine.scheduler.beginBatch()
	current := l.engine.ticks.Count()
	for ; l.lastTick < current; l.lastTick++ {
		for _, resolve := range l.engine.scheduler.Advance() {
			l.invoke(resolve, goja.Undefined())
		}
	}
}

// deliverOutcomes resolves or rejects continuations for worker outcomes in
// FIFO completion order. The pool is concurrent; nothing here reorders by
// submission.
func (l *EventLoop) deliverOutcomes() {
	for _, o := range l.exec.drainOutcomes() {
		l.exec.outstanding.Add(-1)
		if o.err != nil {
			l.invoke(o.item.reject, l.vm.NewGoError(o.err))
		} else {
			l.invoke(o.item.resolve, o.result)
		}
	}
}

// invoke settles one continuation, containing evaluator-level panics (such as
// an interrupt landing mid-job) so one continuation cannot abort its siblings
// or the loop itself. Script-level exceptions never reach here; the promise
// machinery turns those into rejections.
func (l *EventLoop) invoke(settle func(any), arg any) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("continuation aborted", "cause", fmt.Sprint(r))
		}
	}()
	settle(arg)
}

// rejectPending cancels every pending timer for this execution and delivers
// the cause through promise rejection. Continuations the rejection handlers
// schedule afterwards are discarded; no work survives the cutoff.
func (l *EventLoop) rejectPending(cause error) {
	rejects := l.engine.scheduler.CancelAll(l.exec)
	if len(rejects) > 0 {
		val := l.vm.NewGoError(cause)
		for _, reject := range rejects {
			l.invoke(reject, val)
		}
	}
	l.discardPending()
}

// discardPending drops pending timers without invoking their continuations,
// so nothing lingers into a later execution.
func (l *EventLoop) discardPending() {
	l.engine.scheduler.CancelAll(l.exec)
}
