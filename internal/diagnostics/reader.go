package diagnostics

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
)

// Outcome tells how a ProtocolReader run ended.
type Outcome int

const (
	// OutcomeEndOfStream means the channel reached end-of-stream.
	OutcomeEndOfStream Outcome = iota
	// OutcomeForkFailed means the Launcher could not be started.
	OutcomeForkFailed
	// OutcomeNoDebugger means the debugger could not be started.
	OutcomeNoDebugger
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEndOfStream:
		return "end_of_stream"
	case OutcomeForkFailed:
		return "fork_failed"
	case OutcomeNoDebugger:
		return "no_debugger"
	default:
		return "unknown"
	}
}

// ReadSummary describes what a ProtocolReader run saw.
type ReadSummary struct {
	Outcome        Outcome
	BacktraceLines int
	LocalsLines    int
	DroppedLines   int
	Sections       int
}

type readerState int

const (
	stateIdle readerState = iota
	stateBacktrace
	stateLocals
)

// ProtocolReader turns the tagged channel stream into report sections.
// It holds no state between runs.
type ProtocolReader struct {
	out      io.Writer
	function string
	debugger string
	logger   *slog.Logger
}

// ReaderOption configures a ProtocolReader.
type ReaderOption func(*ProtocolReader)

// WithDebuggerName sets the debugger named in the installation hint.
func WithDebuggerName(name string) ReaderOption {
	return func(r *ProtocolReader) {
		r.debugger = name
	}
}

// WithReaderLogger sets the logger used for dropped lines.
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(r *ProtocolReader) {
		r.logger = logger
	}
}

// NewProtocolReader creates a reader that writes the report to out. The
// function names the locals section.
func NewProtocolReader(out io.Writer, function string, opts ...ReaderOption) *ProtocolReader {
	r := &ProtocolReader{
		out:      out,
		function: function,
		debugger: DefaultDebugger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run consumes src until end-of-stream or a terminal tag. End-of-stream
// inside a section is not an error. Only read failures other than EOF and
// report write failures are returned.
func (r *ProtocolReader) Run(src io.Reader) (ReadSummary, error) {
	var summary ReadSummary
	state := stateIdle
	br := bufio.NewReader(src)

	for {
		line, readErr := br.ReadString('\n')
		if line != "" {
			done, err := r.dispatch(&state, strings.TrimSuffix(line, "\n"), &summary)
			if err != nil {
				return summary, core.ErrProtocol("writing report").WithCause(err)
			}
			if done {
				return summary, nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if state != stateIdle && r.logger != nil {
					r.logger.Debug("channel closed inside section", "section", state.String())
				}
				return summary, nil
			}
			return summary, core.ErrProtocol("reading channel").WithCause(readErr)
		}
	}
}

// dispatch handles one line. It reports true when reading must stop.
func (r *ProtocolReader) dispatch(state *readerState, line string, summary *ReadSummary) (bool, error) {
	switch *state {
	case stateBacktrace:
		if TagBacktraceEnd.Matches(line) {
			*state = stateIdle
			return false, nil
		}
		summary.BacktraceLines++
		return false, r.emit(IndentLine(line))

	case stateLocals:
		if TagLocalsEnd.Matches(line) {
			*state = stateIdle
			return false, nil
		}
		summary.LocalsLines++
		return false, r.emit(IndentLine(line))
	}

	switch {
	case TagForkFailed.Matches(line):
		summary.Outcome = OutcomeForkFailed
		return true, r.emit(ForkFailedLine(nil))
	case TagNoDebugger.Matches(line):
		summary.Outcome = OutcomeNoDebugger
		return true, r.emit(NoDebuggerLine(r.debugger))
	case TagBacktraceStart.Matches(line):
		*state = stateBacktrace
		summary.Sections++
		return false, r.emit(BacktraceHeader())
	case TagLocalsStart.Matches(line):
		*state = stateLocals
		summary.Sections++
		return false, r.emit(LocalsHeader(r.function))
	default:
		// Untagged chatter outside a section is not part of the report.
		summary.DroppedLines++
		if r.logger != nil {
			r.logger.Debug("dropping untagged line", "line", line)
		}
		return false, nil
	}
}

func (r *ProtocolReader) emit(line string) error {
	_, err := io.WriteString(r.out, line+"\n")
	return err
}

func (s readerState) String() string {
	switch s {
	case stateBacktrace:
		return "backtrace"
	case stateLocals:
		return "locals"
	default:
		return "idle"
	}
}
