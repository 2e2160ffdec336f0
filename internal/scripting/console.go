package scripting

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// syncPrinter backs console output for both the main evaluator and worker
// scopes. It satisfies the goja_nodejs console.Printer interface and is safe
// for concurrent use, which is what makes console a legitimately thread-safe
// binding.
type syncPrinter struct {
	mu     sync.Mutex
	logger *slog.Logger
}

func newSyncPrinter(logger *slog.Logger) *syncPrinter {
	if logger == nil {
		logger = slog.Default()
	}
	return &syncPrinter{logger: logger.With("component", "console")}
}

func (p *syncPrinter) Log(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Info(s)
}

func (p *syncPrinter) Warn(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Warn(s)
}

func (p *syncPrinter) Error(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Error(s)
}

// formatConsoleArgs renders console arguments the way scripts expect:
// space-separated, using each value's string conversion.
func formatConsoleArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
