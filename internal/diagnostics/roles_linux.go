//go:build linux

package diagnostics

import (
	"context"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
	"github.com/hugo-lorenzo-mato/postmortem/internal/logging"
)

// runReporter streams the channel into the report, then resumes the Tracee.
// The Tracee is resumed whatever happened to the stream.
func runReporter(h handoff) int {
	logger := logging.NewQuiet(h.Options.LogLevel, os.Stderr).WithRole(RoleReporter.String())
	out := os.NewFile(reporterOutputFD, "report")
	src := os.NewFile(reporterChannel, "channel")

	var archive *Archive
	sink := newReportSink(out, nil, logger.Logger)
	if h.Options.ArchiveDir != "" {
		a, err := OpenArchive(h.Options.ArchiveDir, h.Event, logger.Logger)
		if err != nil {
			logger.Warn("archive disabled", "error", err)
		} else {
			archive = a
			sink = newReportSink(out, archive, logger.Logger)
		}
	}

	reader := NewProtocolReader(sink, h.Event.Function,
		WithDebuggerName(h.Options.DebuggerPath),
		WithReaderLogger(logger.Logger),
	)
	summary, err := reader.Run(src)
	if err != nil {
		logger.Error("reading debugger output", "error", err)
	}
	_ = src.Close()

	if err := resume(h); err != nil {
		logger.Error("resuming tracee", "error", err)
	}

	if archive != nil {
		if err := archive.Commit(h, summary); err != nil {
			logger.Warn("archiving report", "error", err)
		}
	}

	logger.Debug("report complete",
		"outcome", summary.Outcome.String(),
		"backtrace_lines", summary.BacktraceLines,
		"locals_lines", summary.LocalsLines,
		"dropped_lines", summary.DroppedLines,
	)
	return exitOK
}

// runLauncher waits for the Tracee to halt, then becomes the debugger. It
// only returns when the debugger could not be started.
func runLauncher(h handoff) int {
	w := os.NewFile(launcherChannel, "channel")

	if err := awaitHalt(context.Background(), h); err != nil {
		return exitRendezvous
	}

	if err := Launch(w, h); err != nil {
		_ = writeTag(w, TagNoDebugger)
		_ = w.Close()
		return exitNoDebugger
	}
	return exitOK
}

// Launch replaces the current process image with the debugger attached to
// the Tracee. On success it does not return.
func Launch(w *os.File, h handoff) error {
	path, err := exec.LookPath(h.Options.DebuggerPath)
	if err != nil {
		return core.ErrLaunch(core.CodeDebuggerNotFound, "resolving "+h.Options.DebuggerPath).WithCause(err)
	}

	// The debugger keeps this pid, so the path stays valid after exec.
	logPath := DescriptorPath(os.Getpid(), int(w.Fd()))
	if _, err := os.Stat(logPath); err != nil {
		return core.ErrLaunch(core.CodeFDPathMissing, "descriptor path unavailable").WithCause(err)
	}

	script := Script{
		ThreadID:         h.TraceeTID,
		Function:         h.Event.Function,
		LogPath:          logPath,
		BacktraceCommand: h.Options.BacktraceCommand,
		LocalsCommand:    h.Options.LocalsCommand,
		ExtraCommands:    h.Options.ExtraCommands,
	}
	argv := DebuggerArgv(h.Options.DebuggerPath, h.TraceePID, script.Commands())

	// #nosec G204 -- the debugger path comes from the application's own configuration
	if err := unix.Exec(path, argv, stripHandoff(os.Environ())); err != nil {
		return core.ErrLaunch(core.CodeExecFailed, "exec "+path).WithCause(err)
	}
	return nil
}
