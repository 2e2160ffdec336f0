package scripting

// JavaScript API for the Runtime global: environment constants and execution
// control.

import (
	"math"
	"time"

	"github.com/dop251/goja"
)

// installRuntimeAPI wires the per-execution Runtime global. The environment
// constants are defined non-writable and non-configurable so scripts cannot
// repoint them.
func (e *Engine) installRuntimeAPI(exec *ScriptExecution) {
	obj := e.vm.NewObject()

	defineConstant := func(name string, value any) {
		_ = obj.DefineDataProperty(name, e.vm.ToValue(value),
			goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	defineConstant("workers", e.pool.Size())
	defineConstant("ticksPerSecond", e.opts.TicksPerSecond)
	defineConstant("debug", e.opts.Debug)
	defineConstant("version", Version)

	// exit() cancels all pending timers for this execution and marks it for
	// termination. Idempotent.
	_ = obj.Set("exit", func(call goja.FunctionCall) goja.Value {
		exec.Cancel()
		return goja.Undefined()
	})

	// setEventLoopTimeout(ms) adjusts the execution deadline. Must be called
	// before any async operation; values below 1000 are rejected.
	_ = obj.Set("setEventLoopTimeout", func(call goja.FunctionCall) goja.Value {
		ms := e.timeoutMillisArg(call.Argument(0))
		if exec.asyncStarted.Load() {
			panic(e.vm.NewGoError(newValidationError(
				"setEventLoopTimeout: must be called before any async operation")))
		}
		exec.setTimeout(time.Duration(ms) * time.Millisecond)
		return goja.Undefined()
	})

	_ = e.vm.Set("Runtime", obj)
}

func (e *Engine) timeoutMillisArg(v goja.Value) int64 {
	var ms int64
	switch n := v.Export().(type) {
	case int64:
		ms = n
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			panic(e.vm.NewGoError(newValidationError("setEventLoopTimeout: timeout must be a finite number")))
		}
		ms = int64(n)
	default:
		panic(e.vm.NewGoError(newValidationError("setEventLoopTimeout: timeout must be a number, got %s", v)))
	}
	if ms < MinEventLoopTimeout.Milliseconds() {
		panic(e.vm.NewGoError(newValidationError(
			"setEventLoopTimeout: timeout must be at least %dms", MinEventLoopTimeout.Milliseconds())))
	}
	return ms
}
