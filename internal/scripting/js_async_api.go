package scripting

// JavaScript API functions for the async surface: task, wait, and the
// promise-chaining sugar installed on Promise.prototype.

import (
	"math"
	"strings"

	"github.com/dop251/goja"
)

// installAsyncAPI wires the per-execution task and wait globals.
func (e *Engine) installAsyncAPI(exec *ScriptExecution) {
	_ = e.vm.Set("task", func(call goja.FunctionCall) goja.Value {
		return e.jsTask(exec, call)
	})
	_ = e.vm.Set("wait", func(call goja.FunctionCall) goja.Value {
		return e.jsWait(exec, call)
	})
}

// jsTask validates the callback and arguments, captures the capability
// snapshot, and submits a WorkItem, returning a promise wired to the item's
// continuation.
func (e *Engine) jsTask(exec *ScriptExecution, call goja.FunctionCall) goja.Value {
	if e.pool.onWorkerGoroutine() {
		// The worker-scope task handles the synchronous path; reaching the
		// tick-thread surface from a worker goroutine is always a bug.
		panic(e.vm.NewGoError(newValidationError("task: called on a worker goroutine outside a worker scope")))
	}

	fnVal := call.Argument(0)
	if _, ok := goja.AssertFunction(fnVal); !ok {
		panic(e.vm.NewGoError(newValidationError("task: callback must be a function")))
	}
	source := fnVal.String()
	if isNativeFunctionSource(source) {
		panic(e.vm.NewGoError(newValidationError("task: callback must be a script-defined function")))
	}

	args := make([]any, 0, len(call.Arguments))
	for i := 1; i < len(call.Arguments); i++ {
		exported := call.Argument(i).Export()
		if err := validateTransferable(exported); err != nil {
			panic(e.vm.NewGoError(err))
		}
		args = append(args, exported)
	}

	exec.markAsyncStarted()
	promise, resolve, reject := e.vm.NewPromise()
	item := &WorkItem{
		exec:     exec,
		fnSource: source,
		args:     args,
		snapshot: exec.snapshot,
		resolve:  settleFunc(resolve),
		reject:   settleFunc(reject),
	}
	exec.outstanding.Add(1)
	if err := e.pool.Submit(item); err != nil {
		exec.outstanding.Add(-1)
		panic(e.vm.NewGoError(err))
	}
	return e.vm.ToValue(promise)
}

// jsWait registers a tick countdown and returns a promise resolved when it
// fires. Only callable on the tick goroutine; tick counts are meaningless off
// it.
func (e *Engine) jsWait(exec *ScriptExecution, call goja.FunctionCall) goja.Value {
	if e.pool.onWorkerGoroutine() {
		panic(e.vm.NewGoError(newValidationError("wait: tick counts are meaningless off the tick thread")))
	}
	ticks := e.tickCountArg(call.Argument(0), "wait")

	exec.markAsyncStarted()
	promise, resolve, reject := e.vm.NewPromise()
	e.scheduler.Schedule(exec, ticks, settleFunc(resolve), settleFunc(reject))
	return e.vm.ToValue(promise)
}

// isNativeFunctionSource reports whether a function stringified to the host
// function form "function name() { [native code] }". A script-defined
// function stringifies to its actual source, and "[native code]" is not a
// parseable function body, so only the exact body shape identifies a host
// function; the marker appearing inside a string literal does not.
func isNativeFunctionSource(source string) bool {
	return strings.HasSuffix(strings.TrimSpace(source), "{ [native code] }")
}

// settleFunc adapts a promise resolver into a plain continuation, discarding
// the resolver's error return. The resolver only fails once the promise is
// already settled, and every continuation here is invoked at most once.
func settleFunc(fn func(reason any) error) func(any) {
	return func(v any) { _ = fn(v) }
}

// tickCountArg coerces a script value into a tick count, clamping values
// below 1 to 1. Non-numeric arguments throw; there is no silent coercion.
func (e *Engine) tickCountArg(v goja.Value, fn string) int64 {
	var ticks int64
	switch n := v.Export().(type) {
	case int64:
		ticks = n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			panic(e.vm.NewGoError(newValidationError("%s: tick count must be a finite number", fn)))
		}
		ticks = int64(n)
	default:
		panic(e.vm.NewGoError(newValidationError("%s: tick count must be a number, got %s", fn, v)))
	}
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// installPromiseCombinators adds thenTask and thenWait to Promise.prototype
// as native combinators over the evaluator's own promises.
func (e *Engine) installPromiseCombinators() {
	proto := e.vm.Get("Promise").ToObject(e.vm).Get("prototype").ToObject(e.vm)

	// p.thenTask(fn) == p.then(result => task(fn, result)), except an
	// undefined result is not forwarded, since a spurious argument would
	// break callback arity validation.
	_ = proto.Set("thenTask", func(call goja.FunctionCall) goja.Value {
		exec := e.mustCurrentExecution("thenTask")
		fnVal := call.Argument(0)
		if _, ok := goja.AssertFunction(fnVal); !ok {
			panic(e.vm.NewGoError(newValidationError("thenTask: callback must be a function")))
		}
		thisObj, then := e.promiseThen(call.This)
		handler := e.vm.ToValue(func(hc goja.FunctionCall) goja.Value {
			result := hc.Argument(0)
			taskArgs := []goja.Value{fnVal}
			if !goja.IsUndefined(result) {
				taskArgs = append(taskArgs, result)
			}
			return e.jsTask(exec, goja.FunctionCall{Arguments: taskArgs})
		})
		ret, err := then(thisObj, handler)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		return ret
	})

	// p.thenWait(ticks) delays the chain by the given ticks and passes the
	// resolved value through unchanged, undefined included.
	_ = proto.Set("thenWait", func(call goja.FunctionCall) goja.Value {
		exec := e.mustCurrentExecution("thenWait")
		ticks := e.tickCountArg(call.Argument(0), "thenWait")
		thisObj, then := e.promiseThen(call.This)
		handler := e.vm.ToValue(func(hc goja.FunctionCall) goja.Value {
			result := hc.Argument(0)
			waitPromise := e.jsWait(exec, goja.FunctionCall{
				Arguments: []goja.Value{e.vm.ToValue(ticks)},
			})
			waitObj, waitThen := e.promiseThen(waitPromise)
			keep := e.vm.ToValue(func(goja.FunctionCall) goja.Value { return result })
			chained, err := waitThen(waitObj, keep)
			if err != nil {
				panic(e.vm.NewGoError(err))
			}
			return chained
		})
		ret, err := then(thisObj, handler)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		return ret
	})
}

// promiseThen extracts the then method from a promise-like receiver.
func (e *Engine) promiseThen(v goja.Value) (*goja.Object, goja.Callable) {
	obj := v.ToObject(e.vm)
	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		panic(e.vm.NewTypeError("receiver is not a promise"))
	}
	return obj, then
}

// mustCurrentExecution returns the running execution; the combinators are
// only meaningful while a script is being driven.
func (e *Engine) mustCurrentExecution(fn string) *ScriptExecution {
	exec := e.current.Load()
	if exec == nil {
		panic(e.vm.NewGoError(newValidationError("%s: no script execution is active", fn)))
	}
	return exec
}
