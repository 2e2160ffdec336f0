package log

import (
	"fmt"
	"log/slog"

	"github.com/dop251/goja"
)

// Require returns the module loader for `rhett:log`, a leveled logger backed
// by the host's slog handler. slog handlers are safe for concurrent use, so
// these exports may be tagged thread-safe and exposed to worker callbacks.
func Require(logger *slog.Logger) func(runtime *goja.Runtime, module *goja.Object) {
	scoped := logger.With("component", "script")
	return func(runtime *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)

		level := func(log func(msg string, args ...any)) func(call goja.FunctionCall) goja.Value {
			return func(call goja.FunctionCall) goja.Value {
				log(call.Argument(0).String())
				return goja.Undefined()
			}
		}
		_ = exports.Set("debug", level(scoped.Debug))
		_ = exports.Set("info", level(scoped.Info))
		_ = exports.Set("warn", level(scoped.Warn))
		_ = exports.Set("error", level(scoped.Error))

		// printf(format, ...args): formatted convenience at info level.
		_ = exports.Set("printf", func(call goja.FunctionCall) goja.Value {
			format := call.Argument(0).String()
			args := make([]any, 0, len(call.Arguments))
			for i := 1; i < len(call.Arguments); i++ {
				args = append(args, call.Argument(i).Export())
			}
			scoped.Info(fmt.Sprintf(format, args...))
			return goja.Undefined()
		})
	}
}
