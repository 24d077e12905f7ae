package diagnostics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScript_Commands(t *testing.T) {
	t.Parallel()

	s := Script{
		ThreadID: 4243,
		Function: "main.bar",
		LogPath:  "/proc/4244/fd/3",
	}

	want := []string{
		"set pagination off",
		"python [t.switch() for t in gdb.selected_inferior().threads() if t.ptid[1] == 4243]",
		"frame function main.bar",
		"set logging file /proc/4244/fd/3",
		"set logging redirect off",
		"set logging on",
		`echo <gdbBacktrace>\n`,
		"bt",
		`echo </gdbBacktrace>\n`,
		`echo <gdbLocals>\n`,
		"info locals",
		`echo </gdbLocals>\n`,
		"set logging off",
		"detach",
	}
	assert.Equal(t, want, s.Commands())
}

func TestScript_CustomCommands(t *testing.T) {
	t.Parallel()

	s := Script{
		LogPath:          "/proc/1/fd/3",
		BacktraceCommand: "bt full",
		LocalsCommand:    "info args",
		ExtraCommands:    []string{"info registers"},
	}
	cmds := s.Commands()

	assert.NotContains(t, cmds, "frame function ")
	assert.Contains(t, cmds, "bt full")
	assert.Contains(t, cmds, "info args")
	for _, c := range cmds {
		assert.NotContains(t, c, "python", "no thread switch without a thread id")
	}

	// Extra commands run while logging is still on.
	require.GreaterOrEqual(t, len(cmds), 3)
	assert.Equal(t, "info registers", cmds[len(cmds)-3])
	assert.Equal(t, "set logging off", cmds[len(cmds)-2])
	assert.Equal(t, "detach", cmds[len(cmds)-1])
}

func TestScript_SectionOrder(t *testing.T) {
	t.Parallel()

	cmds := Script{Function: "f", LogPath: "/proc/1/fd/3"}.Commands()
	index := func(s string) int {
		for i, c := range cmds {
			if c == s {
				return i
			}
		}
		t.Fatalf("command %q missing", s)
		return -1
	}

	assert.Less(t, index("frame function f"), index("set logging on"))
	assert.Less(t, index("set logging on"), index(`echo <gdbBacktrace>\n`))
	assert.Less(t, index(`echo </gdbBacktrace>\n`), index(`echo <gdbLocals>\n`))
	assert.Less(t, index(`echo </gdbLocals>\n`), index("set logging off"))
}

func TestDebuggerArgv(t *testing.T) {
	t.Parallel()

	argv := DebuggerArgv("gdb", 4242, []string{"bt", "detach"})
	assert.Equal(t, []string{
		"gdb", "-p", "4242", "-q", "-batch-silent",
		"-ex", "bt",
		"-ex", "detach",
	}, argv)
}

func TestDescriptorPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "/proc/12/fd/3", DescriptorPath(12, 3))
}
