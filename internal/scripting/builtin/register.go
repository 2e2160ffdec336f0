package builtin

import (
	"log/slog"

	"github.com/dop251/goja_nodejs/require"

	envmod "github.com/rhettl/rhettjs-sub001/internal/scripting/builtin/env"
	logmod "github.com/rhettl/rhettjs-sub001/internal/scripting/builtin/log"
)

// Prefix namespaces all native modules provided by the runtime.
const Prefix = "rhett:"

// HostInfo is the read-only environment handed to modules that expose host
// constants.
type HostInfo = envmod.Info

// Register registers all native Go modules with the provided registry.
func Register(registry *require.Registry, logger *slog.Logger, info HostInfo) {
	registry.RegisterNativeModule(Prefix+"log", logmod.Require(logger))
	registry.RegisterNativeModule(Prefix+"env", envmod.Require(info))
}
