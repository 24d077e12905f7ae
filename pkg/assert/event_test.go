package assert

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type checker struct{}

// Assert mirrors the depth of the exported functions: one frame between
// the call site and captureEvent.
func (checker) Assert(_ bool, message string) (string, string, int, string) {
	ev := captureEvent(2, message)
	return ev.Function, ev.File, ev.Line, ev.Condition
}

func TestCaptureEvent(t *testing.T) {
	t.Parallel()

	var c checker
	x := 0
	_, _, wantLine, _ := runtime.Caller(0)
	fn, file, line, cond := c.Assert(x > 1 && x < 10, "boom")

	require.Equal(t, "github.com/hugo-lorenzo-mato/postmortem/pkg/assert.TestCaptureEvent", fn)
	require.Equal(t, "event_test.go", filepath.Base(file))
	require.Equal(t, wantLine+1, line)
	require.Equal(t, "x > 1 && x < 10", cond)
}

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func TestConditionText(t *testing.T) {
	t.Parallel()

	src := strings.Join([]string{
		"package main",                                 // 1
		"",                                             // 2
		`import "example.com/pkg/assert"`,              // 3
		"",                                             // 4
		"func main() {",                                // 5
		"	c := 3",                                      // 6
		`	assert.Assert(c == 4, "2 + 2 is not 4")`,     // 7
		`	assert.Assertf(len(os.Args) > 1, "%d", c)`,   // 8
		`	assert.AssertTo(os.Stdout, c != 0, "zero")`,  // 9
		"	assert.Assert(",                              // 10
		"		c < 10,",                                   // 11
		`		"multi-line",`,                             // 12
		"	)",                                           // 13
		`	Assert(ok(c), "unqualified")`,                // 14
		`	fmt.Println("no check here")`,                // 15
		"}",                                            // 16
	}, "\n")
	path := writeSource(t, src)

	tests := []struct {
		line int
		want string
	}{
		{7, "c == 4"},
		{8, "len(os.Args) > 1"},
		{9, "c != 0"},
		{10, "c < 10"},
		{13, "c < 10"},
		{14, "ok(c)"},
		{15, unknownCondition},
		{99, unknownCondition},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, conditionText(path, tt.line), "line %d", tt.line)
	}
}

func TestConditionText_Unavailable(t *testing.T) {
	t.Parallel()

	require.Equal(t, unknownCondition, conditionText(filepath.Join(t.TempDir(), "missing.go"), 1))
	require.Equal(t, unknownCondition, conditionText(writeSource(t, "package main\nfunc {"), 2))
}

func TestAssert_TrueConditionReturns(t *testing.T) {
	t.Parallel()

	Assert(true, "unused")
	Assertf(1+1 == 2, "unused %d", 1)
	AssertTo(os.Stdout, true, "unused")
}
