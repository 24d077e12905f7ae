package diagnostics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
)

const (
	dumpPrefix   = "crash-"
	dumpSuffix   = ".json"
	reportSuffix = ".log"
)

// CrashDump is the metadata archived next to a report.
type CrashDump struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ProcessID int       `json:"process_id"`
	GoVersion string    `json:"go_version"`
	GOOS      string    `json:"goos"`
	GOARCH    string    `json:"goarch"`

	// Failure
	File      string `json:"file"`
	Function  string `json:"function"`
	Line      int    `json:"line"`
	Condition string `json:"condition"`
	Message   string `json:"message"`

	// Debugger session
	Debugger       string `json:"debugger"`
	Outcome        string `json:"outcome"`
	BacktraceLines int    `json:"backtrace_lines"`
	LocalsLines    int    `json:"locals_lines"`
	ReportFile     string `json:"report_file"`

	Host *HostSnapshot `json:"host,omitempty"`
}

// Event returns the failure the dump describes.
func (d *CrashDump) Event() FailureEvent {
	return FailureEvent{
		File:      d.File,
		Function:  d.Function,
		Line:      d.Line,
		Condition: d.Condition,
		Message:   d.Message,
	}
}

func newCrashDump(id string, ts time.Time, h handoff, summary ReadSummary, reportFile string) CrashDump {
	return CrashDump{
		ID:             id,
		Timestamp:      ts,
		ProcessID:      h.TraceePID,
		GoVersion:      runtime.Version(),
		GOOS:           runtime.GOOS,
		GOARCH:         runtime.GOARCH,
		File:           h.Event.File,
		Function:       h.Event.Function,
		Line:           h.Event.Line,
		Condition:      h.Event.Condition,
		Message:        h.Event.Message,
		Debugger:       h.Options.DebuggerPath,
		Outcome:        summary.Outcome.String(),
		BacktraceLines: summary.BacktraceLines,
		LocalsLines:    summary.LocalsLines,
		ReportFile:     reportFile,
	}
}

func dumpBaseName(ts time.Time, id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return dumpPrefix + ts.Format("2006-01-02T15-04-05") + "-" + short
}

func isDumpFile(name string) bool {
	return strings.HasPrefix(name, dumpPrefix) && strings.HasSuffix(name, dumpSuffix)
}

func writeCrashDump(dir string, dump CrashDump) error {
	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling crash dump: %w", err)
	}
	path := filepath.Join(dir, dumpBaseName(dump.Timestamp, dump.ID)+dumpSuffix)
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing crash dump: %w", err)
	}
	return nil
}

// ListCrashDumps loads every crash dump in dir, newest first. Unreadable
// entries are skipped.
func ListCrashDumps(dir string) ([]CrashDump, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading crash dump dir: %w", err)
	}

	var dumps []CrashDump
	for _, e := range entries {
		if e.IsDir() || !isDumpFile(e.Name()) {
			continue
		}
		dump, err := readCrashDump(dir, e.Name())
		if err != nil {
			continue
		}
		dumps = append(dumps, *dump)
	}

	sort.Slice(dumps, func(i, j int) bool {
		return dumps[i].Timestamp.After(dumps[j].Timestamp)
	})
	return dumps, nil
}

// LoadLatestCrashDump loads the most recent crash dump from the directory.
func LoadLatestCrashDump(dir string) (*CrashDump, error) {
	dumps, err := ListCrashDumps(dir)
	if err != nil {
		return nil, err
	}
	if len(dumps) == 0 {
		return nil, core.ErrNotFound("crash dump", dir)
	}
	return &dumps[0], nil
}

// LoadCrashDump finds a dump by id or id prefix.
func LoadCrashDump(dir, id string) (*CrashDump, error) {
	dumps, err := ListCrashDumps(dir)
	if err != nil {
		return nil, err
	}
	for i := range dumps {
		if strings.HasPrefix(dumps[i].ID, id) {
			return &dumps[i], nil
		}
	}
	return nil, core.ErrNotFound("crash dump", id)
}

// LoadCrashDumpFile reads a single dump by path.
func LoadCrashDumpFile(path string) (*CrashDump, error) {
	return readCrashDump(filepath.Dir(path), filepath.Base(path))
}

// ReadReport returns the archived report text of a dump.
func ReadReport(dir string, dump *CrashDump) ([]byte, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening crash dump dir: %w", err)
	}
	defer func() { _ = root.Close() }()

	data, err := root.ReadFile(dump.ReportFile)
	if err != nil {
		return nil, fmt.Errorf("reading archived report: %w", err)
	}
	return data, nil
}

func readCrashDump(dir, name string) (*CrashDump, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening crash dump dir: %w", err)
	}
	defer func() { _ = root.Close() }()

	data, err := root.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading crash dump: %w", err)
	}

	var dump CrashDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("parsing crash dump: %w", err)
	}
	return &dump, nil
}

// cleanupOldDumps removes the oldest dumps, with their reports, beyond
// maxFiles.
func cleanupOldDumps(dir string, maxFiles int, logger *slog.Logger) error {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxArchived
	}

	dumps, err := ListCrashDumps(dir)
	if err != nil {
		return err
	}

	for _, d := range dumps[min(maxFiles, len(dumps)):] {
		paths := []string{filepath.Join(dir, dumpBaseName(d.Timestamp, d.ID)+dumpSuffix)}
		if d.ReportFile != "" {
			paths = append(paths, filepath.Join(dir, filepath.Base(d.ReportFile)))
		}
		for _, path := range paths {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) && logger != nil {
				logger.Warn("failed to remove old crash dump",
					"path", path,
					"error", err,
				)
			}
		}
	}
	return nil
}
