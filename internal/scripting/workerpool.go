package scripting

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dop251/goja"

	"github.com/rhettl/rhettjs-sub001/internal/goroutineid"
)

// WorkItem is one unit of work submitted to the pool. It is immutable after
// creation: the callback crosses the thread boundary as source text, the
// arguments as exported transferable values, and the capability snapshot as a
// frozen binding set. The continuation pair is an opaque token; only the
// event loop goroutine ever invokes it.
type WorkItem struct {
	exec     *ScriptExecution
	fnSource string
	args     []any
	snapshot *CapabilitySnapshot
	resolve  func(any)
	reject   func(any)
}

// workOutcome is the {result | error} delivery for one WorkItem, pushed onto
// the owning execution's completion queue by the worker that ran it.
type workOutcome struct {
	item   *WorkItem
	result any
	err    error
}

// WorkerPool executes script callbacks off the tick goroutine on a fixed set
// of long-lived workers. Each callback runs in a freshly constructed, isolated
// evaluator whose only host-reachable bindings are the WorkItem's capability
// snapshot, so a worker can never touch host mutable state.
type WorkerPool struct {
	size    int
	logger  *slog.Logger
	printer *syncPrinter

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*WorkItem
	closed bool

	workerIDs sync.Map // goroutine id -> worker index
	wg        sync.WaitGroup
}

// NewWorkerPool starts size workers. The printer backs the console object in
// worker scopes and must be safe for concurrent use.
func NewWorkerPool(size int, logger *slog.Logger, printer *syncPrinter) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &WorkerPool{
		size:    size,
		logger:  logger.With("component", "worker-pool"),
		printer: printer,
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker(i)
	}
	return p
}

// Size returns the fixed number of workers.
func (p *WorkerPool) Size() int { return p.size }

// Submit admits a validated WorkItem to the queue. The caller is responsible
// for argument validation; Submit only guards pool state and the calling
// goroutine. Submitting from a worker goroutine is a contract violation (the
// async surface runs nested tasks synchronously instead) and fails fast.
func (p *WorkerPool) Submit(item *WorkItem) error {
	if p.onWorkerGoroutine() {
		return newValidationError("task submitted from a worker goroutine must execute synchronously")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrEngineClosed
	}
	p.queue = append(p.queue, item)
	p.cond.Signal()
	return nil
}

// QueueLen returns the number of items waiting for a worker.
func (p *WorkerPool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops the workers after the queue drains. Items already queued are
// still executed; their outcomes are dropped by terminal executions.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// onWorkerGoroutine reports whether the current goroutine is one of the pool
// workers.
func (p *WorkerPool) onWorkerGoroutine() bool {
	_, ok := p.workerIDs.Load(goroutineid.Get())
	return ok
}

func (p *WorkerPool) worker(index int) {
	defer p.wg.Done()
	gid := goroutineid.Get()
	p.workerIDs.Store(gid, index)
	defer p.workerIDs.Delete(gid)
	for {
		item, ok := p.dequeue()
		if !ok {
			return
		}
		result, err := p.runWorkItem(item)
		if err != nil {
			p.logger.Debug("work item failed", "execution", item.exec.ID(), "error", err)
		}
		item.exec.enqueueOutcome(workOutcome{item: item, result: result, err: err})
	}
}

func (p *WorkerPool) dequeue() (*WorkItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	item := p.queue[0]
	p.queue = p.queue[1:]
	return item, true
}

// runWorkItem executes one callback in an isolated evaluator. Exceptions and
// panics are captured as outcomes; one failing job cannot kill the worker.
func (p *WorkerPool) runWorkItem(item *WorkItem) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &WorkerExecutionError{Reason: fmt.Sprint(r)}
		}
	}()

	vm := goja.New()
	if installErr := item.snapshot.install(vm); installErr != nil {
		return nil, &WorkerExecutionError{Reason: installErr.Error()}
	}
	installWorkerGlobals(vm, p.printer)

	fn, compileErr := compileCallback(vm, item.fnSource)
	if compileErr != nil {
		return nil, &WorkerExecutionError{Reason: compileErr.Error()}
	}

	args := make([]goja.Value, len(item.args))
	for i, a := range item.args {
		args[i] = vm.ToValue(a)
	}

	ret, callErr := fn(goja.Undefined(), args...)
	if callErr != nil {
		return nil, &WorkerExecutionError{Reason: exceptionReason(callErr)}
	}

	exported := ret.Export()
	if exported != nil {
		if verr := validateTransferable(exported); verr != nil {
			return nil, &WorkerExecutionError{Reason: verr.Error()}
		}
	}
	return exported, nil
}

// compileCallback recompiles the callback source captured on the tick
// goroutine inside the worker's evaluator. Free variables resolve against the
// worker's globals, which hold only the capability snapshot; anything else
// fails with an ordinary ReferenceError when the callback runs.
func compileCallback(vm *goja.Runtime, source string) (goja.Callable, error) {
	prg, err := goja.Compile("<task>", "("+source+")", false)
	if err != nil {
		return nil, fmt.Errorf("callback did not recompile in worker scope: %w", err)
	}
	v, err := vm.RunProgram(prg)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("callback source did not evaluate to a function")
	}
	return fn, nil
}

// installWorkerGlobals wires the worker-local async surface: a synchronous
// task, a wait that always throws, and a console over the shared printer.
func installWorkerGlobals(vm *goja.Runtime, printer *syncPrinter) {
	_ = vm.Set("task", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewGoError(newValidationError("task: callback must be a function")))
		}
		for i := 1; i < len(call.Arguments); i++ {
			if err := validateTransferable(call.Argument(i).Export()); err != nil {
				panic(vm.NewGoError(err))
			}
		}
		var rest []goja.Value
		if len(call.Arguments) > 1 {
			rest = call.Arguments[1:]
		}
		promise, resolve, reject := vm.NewPromise()
		ret, err := fn(goja.Undefined(), rest...)
		if err != nil {
			reject(errorValue(vm, err))
		} else {
			resolve(ret)
		}
		return vm.ToValue(promise)
	})

	_ = vm.Set("wait", func(call goja.FunctionCall) goja.Value {
		panic(vm.NewGoError(newValidationError("wait: tick counts are meaningless off the tick thread")))
	})

	if printer != nil {
		consoleObj := vm.NewObject()
		logFn := func(call goja.FunctionCall) goja.Value {
			printer.Log(formatConsoleArgs(call.Arguments))
			return goja.Undefined()
		}
		_ = consoleObj.Set("log", logFn)
		_ = consoleObj.Set("info", logFn)
		_ = consoleObj.Set("warn", func(call goja.FunctionCall) goja.Value {
			printer.Warn(formatConsoleArgs(call.Arguments))
			return goja.Undefined()
		})
		_ = consoleObj.Set("error", func(call goja.FunctionCall) goja.Value {
			printer.Error(formatConsoleArgs(call.Arguments))
			return goja.Undefined()
		})
		_ = vm.Set("console", consoleObj)
	}
}

// exceptionReason reduces a goja error to a transferable description.
func exceptionReason(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value().String()
	}
	return err.Error()
}

// errorValue converts a Go error into a script-visible value within vm.
func errorValue(vm *goja.Runtime, err error) goja.Value {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value()
	}
	return vm.NewGoError(err)
}
