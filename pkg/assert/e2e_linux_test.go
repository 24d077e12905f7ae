//go:build linux

package assert_test

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	pmassert "github.com/hugo-lorenzo-mato/postmortem/pkg/assert"
)

const caseEnv = "POSTMORTEM_TEST_CASE"

// TestMain doubles as the failing program when caseEnv is set.
func TestMain(m *testing.M) {
	switch os.Getenv(caseEnv) {
	case "":
		os.Exit(m.Run())
	case "long-message":
		pmassert.Assert(false, strings.Repeat("x", 200<<10))
	case "concurrent":
		failTogether(4)
	case "no-descriptors":
		held = exhaustDescriptors()
		bar(2, 2)
	default:
		bar(2, 2)
	}
	os.Exit(0)
}

// held keeps the exhausting descriptors from being finalized.
var held []*os.File

// failTogether fails n checks from n goroutines at once.
func failTogether(n int) {
	start := make(chan struct{})
	for i := range n {
		go func() {
			<-start
			pmassert.Assertf(false, "worker %d", i)
		}()
	}
	close(start)
	time.Sleep(time.Minute)
}

// exhaustDescriptors lowers the descriptor limit and fills every free
// slot below it.
func exhaustDescriptors() []*os.File {
	var lim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		panic(err)
	}
	lim.Cur = min(64, lim.Max)
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
		panic(err)
	}

	var files []*os.File
	for range lim.Cur {
		f, err := os.Open(os.DevNull)
		if err != nil {
			break
		}
		files = append(files, f)
	}
	return files
}

//go:noinline
func foo(a, b int) int {
	c := a + b
	pmassert.Assert(c == 4, "2 + 2 is not 4")
	return 0
}

//go:noinline
func bar(a, b int) int {
	b = 3
	return foo(a, b)
}

// runFailing runs the failing program and returns its standard error.
func runFailing(t *testing.T, env ...string) string {
	t.Helper()
	return runCase(t, "check", env...)
}

// runCase runs the named failing program. It must die by SIGABRT with
// nothing from the runtime after the report.
func runCase(t *testing.T, name string, env ...string) string {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	cmd := exec.Command(exe, "-test.run=^$")
	cmd.Env = append(os.Environ(), caseEnv+"="+name, "HOME="+t.TempDir())
	cmd.Env = append(cmd.Env, env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Run()
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "process must fail, got %v", err)
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)
	assert.True(t, ws.Signaled(), "terminated by signal")
	assert.Equal(t, syscall.SIGABRT, ws.Signal())

	out := stderr.String()
	assert.NotContains(t, out, "SIGABRT: abort")
	assert.NotContains(t, out, "goroutine 1 [")
	return out
}

func wantHeader(t *testing.T, out string) {
	t.Helper()
	assert.Contains(t, out, "Failed assertion 'c == 4': 2 + 2 is not 4\n")
	assert.Contains(t, out, "e2e_linux_test.go:")
	assert.Contains(t, out, "\tin function github.com/hugo-lorenzo-mato/postmortem/pkg/assert_test.foo\n")
}

func TestFailedCheck_NoDebugger(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{"signal", "pipe"} {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()
			out := runFailing(t,
				"POSTMORTEM_DEBUGGER_PATH=postmortem-no-such-gdb",
				"POSTMORTEM_RENDEZVOUS_MODE="+mode,
			)

			wantHeader(t, out)
			assert.Contains(t, out, "Install postmortem-no-such-gdb to get more detailed assert info\n")
			assert.NotContains(t, out, "BACKTRACE:")
			assert.NotContains(t, out, "LOCAL VARIABLES OF")

			// The header comes first.
			assert.Less(t, strings.Index(out, "Failed assertion"), strings.Index(out, "Install "))
		})
	}
}

func TestFailedCheck_Debugger(t *testing.T) {
	if _, err := exec.LookPath("gdb"); err != nil {
		t.Skip("gdb not installed")
	}
	if scope, err := os.ReadFile("/proc/sys/kernel/yama/ptrace_scope"); err == nil && strings.TrimSpace(string(scope)) == "3" {
		t.Skip("ptrace disabled by yama")
	}

	out := runFailing(t, "POSTMORTEM_RENDEZVOUS_MODE=pipe")
	wantHeader(t, out)

	if !strings.Contains(out, "BACKTRACE:") {
		t.Skipf("debugger could not attach in this environment:\n%s", out)
	}
	assert.Contains(t, out, "LOCAL VARIABLES OF github.com/hugo-lorenzo-mato/postmortem/pkg/assert_test.foo:\n")
	assert.Less(t, strings.Index(out, "BACKTRACE:"), strings.Index(out, "LOCAL VARIABLES OF"))
}

func TestFailedCheck_LongMessage(t *testing.T) {
	t.Parallel()

	message := strings.Repeat("x", 200<<10)
	out := runCase(t, "long-message", "POSTMORTEM_DEBUGGER_PATH=postmortem-no-such-gdb")

	assert.Contains(t, out, "Failed assertion 'false': "+message+"\n")
	// The Launcher ran and found no debugger.
	assert.Contains(t, out, "Install postmortem-no-such-gdb to get more detailed assert info\n")
	assert.NotContains(t, out, "failed to run fork")
}

func TestFailedCheck_Concurrent(t *testing.T) {
	t.Parallel()

	out := runCase(t, "concurrent",
		"POSTMORTEM_DEBUGGER_PATH=postmortem-no-such-gdb",
		"POSTMORTEM_RENDEZVOUS_MODE=signal",
	)

	assert.Equal(t, 1, strings.Count(out, "Failed assertion"), out)
	assert.Equal(t, 1, strings.Count(out, "Install postmortem-no-such-gdb"), out)
	assert.Less(t, strings.Index(out, "Failed assertion"), strings.Index(out, "Install "))
}

func TestFailedCheck_NoDescriptors(t *testing.T) {
	t.Parallel()

	out := runCase(t, "no-descriptors", "POSTMORTEM_DEBUGGER_PATH=postmortem-no-such-gdb")

	assert.Contains(t, out, "': 2 + 2 is not 4\n")
	assert.Contains(t, out, "assert failed to create anonymous pipe: "+unix.EMFILE.Error()+"\n")
	assert.NotContains(t, out, "Install ")
	assert.Less(t, strings.Index(out, "Failed assertion"), strings.Index(out, "assert failed"))
}
