package diagnostics

import (
	"fmt"
	"strconv"
)

// Script is the command sequence the debugger runs against the Tracee.
type Script struct {
	// ThreadID selects the thread that raised the halt; 0 keeps the
	// debugger's default thread.
	ThreadID int
	// Function is the frame to unwind to before dumping locals.
	Function string
	// LogPath receives the tagged output; it addresses the channel's write
	// end as an already-open descriptor.
	LogPath string

	BacktraceCommand string
	LocalsCommand    string
	ExtraCommands    []string
}

// Commands returns the -ex commands in execution order.
func (s Script) Commands() []string {
	backtrace := s.BacktraceCommand
	if backtrace == "" {
		backtrace = DefaultBacktraceCommand
	}
	locals := s.LocalsCommand
	if locals == "" {
		locals = DefaultLocalsCommand
	}

	cmds := []string{"set pagination off"}
	if s.ThreadID > 0 {
		// gdb numbers threads itself; the LWP id is only reachable through
		// the Python API.
		cmds = append(cmds, fmt.Sprintf(
			"python [t.switch() for t in gdb.selected_inferior().threads() if t.ptid[1] == %d]",
			s.ThreadID))
	}
	if s.Function != "" {
		cmds = append(cmds, "frame function "+s.Function)
	}
	cmds = append(cmds,
		"set logging file "+s.LogPath,
		"set logging redirect off",
		"set logging on",
		echoTag(TagBacktraceStart),
		backtrace,
		echoTag(TagBacktraceEnd),
		echoTag(TagLocalsStart),
		locals,
		echoTag(TagLocalsEnd),
	)
	cmds = append(cmds, s.ExtraCommands...)
	cmds = append(cmds,
		"set logging off",
		"detach",
	)
	return cmds
}

// DebuggerArgv builds the full argument vector, argv[0] included.
func DebuggerArgv(debugger string, pid int, cmds []string) []string {
	argv := make([]string, 0, 5+2*len(cmds))
	argv = append(argv, debugger, "-p", strconv.Itoa(pid), "-q", "-batch-silent")
	for _, c := range cmds {
		argv = append(argv, "-ex", c)
	}
	return argv
}

// DescriptorPath addresses descriptor fd of process pid through procfs.
func DescriptorPath(pid, fd int) string {
	return fmt.Sprintf("/proc/%d/fd/%d", pid, fd)
}

func echoTag(t Tag) string {
	return `echo ` + string(t) + `\n`
}
