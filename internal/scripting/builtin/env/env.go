package env

import (
	"github.com/dop251/goja"
)

// Info is the read-only host environment exported by `rhett:env`. It mirrors
// the Runtime global for module-style consumers.
type Info struct {
	Workers        int
	TicksPerSecond int
	Debug          bool
	Version        string
}

// Require returns the module loader for `rhett:env`.
func Require(info Info) func(runtime *goja.Runtime, module *goja.Object) {
	return func(runtime *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)

		define := func(name string, value any) {
			_ = exports.DefineDataProperty(name, runtime.ToValue(value),
				goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
		}
		define("workers", info.Workers)
		define("ticksPerSecond", info.TicksPerSecond)
		define("debug", info.Debug)
		define("version", info.Version)
	}
}
