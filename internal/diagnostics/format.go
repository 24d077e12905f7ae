package diagnostics

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Fixed lines appended to the report when diagnostics degrade.
const (
	pipeFailedFormat = "assert failed to create anonymous pipe: %v"
	forkFailedFormat = "assert failed to run fork(): %v"
	forkFailedLine   = "assert failed to run fork"
	noDebuggerFormat = "Install %s to get more detailed assert info"
)

// FormatHeader renders the failure header block. It always ends with a
// newline.
func FormatHeader(ev FailureEvent) string {
	return fmt.Sprintf("Failed assertion '%s': %s\n"+
		"\tat %s:%d\n"+
		"\tin function %s\n",
		ev.Condition, ev.Message, ev.File, ev.Line, ev.Function)
}

// BacktraceHeader is the first line of the backtrace section.
func BacktraceHeader() string {
	return "BACKTRACE:"
}

// LocalsHeader is the first line of the locals section.
func LocalsHeader(function string) string {
	return fmt.Sprintf("LOCAL VARIABLES OF %s:", function)
}

// IndentLine renders a section body line.
func IndentLine(line string) string {
	return "\t" + line
}

// PipeFailedLine is appended when the channel cannot be created.
func PipeFailedLine(err error) string {
	return fmt.Sprintf(pipeFailedFormat, rootCause(err))
}

// ForkFailedLine is appended when a helper process cannot be started. A nil
// error yields the short form used for the in-band ForkFailed tag.
func ForkFailedLine(err error) string {
	if err == nil {
		return forkFailedLine
	}
	return fmt.Sprintf(forkFailedFormat, rootCause(err))
}

// NoDebuggerLine is the installation hint for a missing debugger.
func NoDebuggerLine(debugger string) string {
	name := filepath.Base(debugger)
	if debugger == "" || name == "." || name == string(filepath.Separator) {
		name = DefaultDebugger
	}
	return fmt.Sprintf(noDebuggerFormat, name)
}

// rootCause returns the innermost wrapped error, which for system call
// failures is the bare errno text.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
