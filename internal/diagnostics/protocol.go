package diagnostics

import "strings"

// Tag is a sentinel line of the debugger wire protocol.
type Tag string

// Wire tags. Each one occupies a line of its own.
const (
	TagForkFailed     Tag = "<gdbForkFailed/>"
	TagNoDebugger     Tag = "<gdbNotFound/>"
	TagBacktraceStart Tag = "<gdbBacktrace>"
	TagBacktraceEnd   Tag = "</gdbBacktrace>"
	TagLocalsStart    Tag = "<gdbLocals>"
	TagLocalsEnd      Tag = "</gdbLocals>"
)

// Line returns the tag in wire form, newline terminated.
func (t Tag) Line() string {
	return string(t) + "\n"
}

// Matches reports whether a line read from the channel is exactly this tag.
// The trailing newline is ignored.
func (t Tag) Matches(line string) bool {
	return strings.TrimSuffix(line, "\n") == string(t)
}
