package scripting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"

	"github.com/rhettl/rhettjs-sub001/internal/scripting/builtin"
)

// Version is the runtime version exposed to scripts.
const Version = "0.1.0"

const (
	// DefaultTicksPerSecond matches the usual fixed-rate simulation step of
	// the hosts this runtime embeds into.
	DefaultTicksPerSecond = 20
	// DefaultWorkerCount is the worker pool size when none is configured.
	DefaultWorkerCount = 4
	// DefaultEventLoopTimeout is the wall-clock budget for one execution.
	DefaultEventLoopTimeout = 30 * time.Second
	// MinEventLoopTimeout is the floor for Runtime.setEventLoopTimeout.
	MinEventLoopTimeout = time.Second
)

// Options configures an Engine.
type Options struct {
	// Workers is the fixed worker pool size.
	Workers int
	// TicksPerSecond is the host tick rate, exposed read-only to scripts and
	// used by the built-in wall-clock driver.
	TicksPerSecond int
	// EventLoopTimeout is the default per-execution deadline.
	EventLoopTimeout time.Duration
	// Debug is exposed read-only to scripts.
	Debug bool
	// Logger receives engine, scheduler, pool, and console output. Defaults
	// to slog.Default().
	Logger *slog.Logger
}

func (o *Options) normalize() {
	if o.Workers < 1 {
		o.Workers = DefaultWorkerCount
	}
	if o.TicksPerSecond < 1 {
		o.TicksPerSecond = DefaultTicksPerSecond
	}
	if o.EventLoopTimeout <= 0 {
		o.EventLoopTimeout = DefaultEventLoopTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Engine owns the script evaluator and the shared concurrency runtime: the
// tick scheduler, the worker pool, the tick source, and the set of active
// executions. It is constructed once at host startup; there are no hidden
// singletons.
//
// goja.Runtime is not goroutine-safe. The engine serializes executions with a
// run mutex so at most one event loop drives the evaluator at any instant;
// re-entrant script calls execute synchronously within that loop rather than
// starting a new one.
type Engine struct {
	vm        *goja.Runtime
	registry  *require.Registry
	pool      *WorkerPool
	scheduler *TickScheduler
	ticks     *tickSource
	printer   *syncPrinter
	opts      Options
	logger    *slog.Logger

	bindingsMu sync.Mutex
	bindings   []hostBinding

	runMu   sync.Mutex
	current atomic.Pointer[ScriptExecution]

	executionsMu sync.Mutex
	executions   map[string]*ScriptExecution

	closed atomic.Bool
}

// NewEngine constructs the runtime: evaluator, module registry, worker pool,
// tick scheduler, and the script-visible async surface.
func NewEngine(opts Options) *Engine {
	opts.normalize()
	logger := opts.Logger

	e := &Engine{
		vm:         goja.New(),
		registry:   require.NewRegistry(),
		scheduler:  NewTickScheduler(logger),
		ticks:      &tickSource{},
		printer:    newSyncPrinter(logger),
		opts:       opts,
		logger:     logger.With("component", "engine"),
		executions: make(map[string]*ScriptExecution),
	}
	e.pool = NewWorkerPool(opts.Workers, logger, e.printer)

	e.registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(e.printer))
	builtin.Register(e.registry, logger, builtin.HostInfo{
		Workers:        opts.Workers,
		TicksPerSecond: opts.TicksPerSecond,
		Debug:          opts.Debug,
		Version:        Version,
	})
	e.registry.Enable(e.vm)
	console.Enable(e.vm)

	e.installPromiseCombinators()
	e.ExposeBinding("log", MarkThreadSafe(newLogBinding(logger)))

	return e
}

// ExposeBinding registers a named host binding into every script scope
// constructed afterwards. Values wrapped with MarkThreadSafe additionally
// join each execution's capability snapshot and become reachable from worker
// callbacks. The first registration of a name wins; later duplicates are
// ignored.
func (e *Engine) ExposeBinding(name string, value any) {
	e.bindingsMu.Lock()
	defer e.bindingsMu.Unlock()
	for _, b := range e.bindings {
		if b.name == name {
			return
		}
	}
	e.bindings = append(e.bindings, hostBinding{name: name, value: value})
	unwrapped := value
	if tagged, ok := value.(*ThreadSafeBinding); ok {
		unwrapped = tagged.Value()
	}
	_ = e.vm.Set(name, unwrapped)
}

// Tick records one host tick. Hosts with their own simulation loop call this
// once per step from that loop.
func (e *Engine) Tick() {
	e.ticks.Tick()
}

// TickCount returns the total host ticks observed.
func (e *Engine) TickCount() uint64 {
	return e.ticks.Count()
}

// StartTicker drives ticks from the wall clock at the configured rate until
// the context is cancelled, for hosts without their own loop.
func (e *Engine) StartTicker(ctx context.Context) {
	go e.ticks.runWallClock(ctx, e.opts.TicksPerSecond)
}

// Execute compiles and runs a script to a terminal outcome. It blocks until
// the execution's event loop reports completion, timeout, or cancellation;
// concurrent calls are serialized.
func (e *Engine) Execute(ctx context.Context, name, source string) (Outcome, error) {
	if e.closed.Load() {
		return OutcomeCancelled, ErrEngineClosed
	}

	program, err := goja.Compile(name, source, true)
	if err != nil {
		return OutcomeCompleted, fmt.Errorf("failed to compile %s: %w", name, err)
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.closed.Load() {
		return OutcomeCancelled, ErrEngineClosed
	}

	e.bindingsMu.Lock()
	snapshot := newCapabilitySnapshot(e.bindings)
	e.bindingsMu.Unlock()

	exec := newScriptExecution(name, snapshot, e.opts.EventLoopTimeout)
	e.trackExecution(exec)
	defer e.untrackExecution(exec)

	e.current.Store(exec)
	defer e.current.Store(nil)

	e.installAsyncAPI(exec)
	e.installRuntimeAPI(exec)

	// Interrupt long-running script code when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		e.vm.Interrupt(context.Cause(ctx))
	})
	defer stop()
	defer e.vm.ClearInterrupt()

	e.logger.Debug("execution starting", "execution", exec.ID(), "script", name)
	outcome, runErr := newEventLoop(e, exec).Run(ctx, program)
	e.logger.Info("execution finished",
		"execution", exec.ID(), "script", name, "outcome", outcome.String())
	return outcome, runErr
}

// CancelAll flags every active execution for termination and cancels all
// pending timers; used on host shutdown or reload.
func (e *Engine) CancelAll() {
	e.executionsMu.Lock()
	for _, exec := range e.executions {
		exec.Cancel()
	}
	e.executionsMu.Unlock()
}

// Close shuts the engine down: active executions are cancelled and the worker
// pool is stopped. Safe to call multiple times.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.CancelAll()
	e.pool.Close()
	return nil
}

// WorkerCount returns the fixed worker pool size.
func (e *Engine) WorkerCount() int { return e.pool.Size() }

// TicksPerSecond returns the configured host tick rate.
func (e *Engine) TicksPerSecond() int { return e.opts.TicksPerSecond }

func (e *Engine) trackExecution(exec *ScriptExecution) {
	e.executionsMu.Lock()
	e.executions[exec.ID()] = exec
	e.executionsMu.Unlock()
}

func (e *Engine) untrackExecution(exec *ScriptExecution) {
	e.executionsMu.Lock()
	delete(e.executions, exec.ID())
	e.executionsMu.Unlock()
}

// newLogBinding builds the default thread-safe logging binding backed by the
// host logger. slog handlers are safe for concurrent use, which is what makes
// this a legitimate capability for worker callbacks.
func newLogBinding(logger *slog.Logger) map[string]any {
	scoped := logger.With("component", "script")
	return map[string]any{
		"debug": func(msg string) { scoped.Debug(msg) },
		"info":  func(msg string) { scoped.Info(msg) },
		"warn":  func(msg string) { scoped.Warn(msg) },
		"error": func(msg string) { scoped.Error(msg) },
	}
}
