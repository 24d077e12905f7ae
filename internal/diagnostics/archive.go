package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

// Archive keeps an on-disk copy of one report. The copy is written into a
// pending file while the report streams and only appears under its final
// name once committed.
type Archive struct {
	dir     string
	id      string
	started time.Time
	logPath string
	pending *renameio.PendingFile
	failed  bool
	logger  *slog.Logger
}

// OpenArchive starts archiving a report for ev. The failure header is
// written immediately, since the Tracee printed it before the Reporter ran.
func OpenArchive(dir string, ev FailureEvent, logger *slog.Logger) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating archive dir: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	a := &Archive{
		dir:     dir,
		id:      id,
		started: now,
		logPath: filepath.Join(dir, dumpBaseName(now, id)+reportSuffix),
		logger:  logger,
	}

	pending, err := renameio.NewPendingFile(a.logPath, renameio.WithPermissions(0o600))
	if err != nil {
		return nil, fmt.Errorf("creating pending report: %w", err)
	}
	a.pending = pending

	if _, err := a.Write([]byte(FormatHeader(ev))); err != nil {
		_ = pending.Cleanup()
		return nil, err
	}
	return a, nil
}

// ID returns the crash dump id.
func (a *Archive) ID() string {
	return a.id
}

// Write appends report bytes to the pending file.
func (a *Archive) Write(p []byte) (int, error) {
	if a.failed {
		return 0, errArchiveFailed
	}
	n, err := a.pending.Write(p)
	if err != nil {
		a.failed = true
		return n, fmt.Errorf("writing archived report: %w", err)
	}
	return n, nil
}

// Commit publishes the report and its metadata, then prunes old dumps.
func (a *Archive) Commit(h handoff, summary ReadSummary) error {
	if a.failed {
		_ = a.pending.Cleanup()
		return errArchiveFailed
	}
	if err := a.pending.CloseAtomicallyReplace(); err != nil {
		_ = a.pending.Cleanup()
		return fmt.Errorf("publishing archived report: %w", err)
	}

	dump := newCrashDump(a.id, a.started, h, summary, filepath.Base(a.logPath))
	if h.Options.IncludeSystem {
		snap := CollectHostSnapshot()
		dump.Host = &snap
	}
	if err := writeCrashDump(a.dir, dump); err != nil {
		return err
	}

	if err := cleanupOldDumps(a.dir, h.Options.MaxArchived, a.logger); err != nil && a.logger != nil {
		a.logger.Warn("pruning crash dumps", "dir", a.dir, "error", err)
	}
	return nil
}

var errArchiveFailed = errors.New("archive write failed earlier")

// reportSink writes the report to its destination and, best effort, to
// the archive. Archive failures never reach the report.
type reportSink struct {
	out     io.Writer
	archive io.Writer
	logger  *slog.Logger
	warned  bool
}

func newReportSink(out io.Writer, archive *Archive, logger *slog.Logger) *reportSink {
	s := &reportSink{out: out, logger: logger}
	if archive != nil {
		s.archive = archive
	}
	return s
}

func (s *reportSink) Write(p []byte) (int, error) {
	n, err := s.out.Write(p)
	if s.archive != nil {
		if _, aerr := s.archive.Write(p); aerr != nil && !s.warned {
			s.warned = true
			if s.logger != nil {
				s.logger.Warn("archive copy incomplete", "error", aerr)
			}
		}
	}
	return n, err
}
