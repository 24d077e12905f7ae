// Package assert checks runtime conditions. A failed check prints a
// failure report, with a debugger backtrace and the failing function's
// locals when a debugger is available, and then aborts the process.
//
//	assert.Assert(len(buf) == n, "short read")
//
// Importing this package also installs the helper-process dispatch the
// report relies on, so it must be linked into the binary that fails.
package assert

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hugo-lorenzo-mato/postmortem/internal/config"
	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/postmortem/internal/logging"
)

var (
	mu       sync.Mutex
	reporter *diagnostics.CrashReporter

	// failing is held by the first failed check until the process dies.
	failing sync.Mutex
)

// Assert reports and aborts when cond is false. The report goes to
// standard error.
func Assert(cond bool, message string) {
	if cond {
		return
	}
	fail(os.Stderr, message)
}

// Assertf is Assert with a formatted message. The message is only
// formatted when cond is false.
func Assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	fail(os.Stderr, fmt.Sprintf(format, args...))
}

// AssertTo is Assert with an explicit report destination.
func AssertTo(out *os.File, cond bool, message string) {
	if cond {
		return
	}
	fail(out, message)
}

// Configure replaces the options loaded from configuration files. A nil
// logger keeps the process silent.
func Configure(opts diagnostics.Options, logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	reporter = diagnostics.NewCrashReporter(opts, logger)
}

// fail never returns. Its depth below the exported functions is fixed,
// which captureEvent relies on. Only one report is produced per process:
// checks failing concurrently block here until the first one aborts.
func fail(out *os.File, message string) {
	failing.Lock()
	ev := captureEvent(3, message)
	currentReporter().ReportFailure(out, ev)
	abort()
}

// currentReporter loads configuration on first use. A broken
// configuration must not stop the report, so it falls back to defaults.
func currentReporter() *diagnostics.CrashReporter {
	mu.Lock()
	defer mu.Unlock()
	if reporter != nil {
		return reporter
	}

	opts := diagnostics.DefaultOptions()
	var logger *logging.Logger

	cfg, err := config.NewLoader().Load()
	if err == nil {
		err = config.ValidateConfig(cfg)
	}
	if err == nil {
		logger = logging.NewQuiet(cfg.Log.Level, os.Stderr).WithRole("tracee")
		opts, err = cfg.DiagnosticsOptions()
	}
	if err != nil {
		logger = logging.NewQuiet(os.Getenv(config.EnvPrefix+"_LOG_LEVEL"), os.Stderr).WithRole("tracee")
		logger.Debug("using default diagnostics options", "error", err)
		opts = diagnostics.DefaultOptions()
	}

	reporter = diagnostics.NewCrashReporter(opts, logger.Logger)
	return reporter
}
