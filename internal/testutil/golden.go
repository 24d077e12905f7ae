// Package testutil holds golden-file helpers for report output.
package testutil

import (
	"flag"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var update = flag.Bool("update", false, "update golden files")

// Golden compares report output against files under a testdata directory.
type Golden struct {
	t       *testing.T
	baseDir string
}

// NewGolden creates a helper reading <baseDir>/<name>.golden.
func NewGolden(t *testing.T, baseDir string) *Golden {
	return &Golden{
		t:       t,
		baseDir: baseDir,
	}
}

// Assert compares actual output against the golden file. Both sides are
// normalized first. Run tests with -update to rewrite the files.
func (g *Golden) Assert(name string, actual []byte) {
	g.t.Helper()

	goldenPath := filepath.Join(g.baseDir, name+".golden")

	if *update {
		g.updateGolden(goldenPath, actual)
		return
	}

	expected, err := os.ReadFile(goldenPath)
	if err != nil {
		g.t.Fatalf("reading golden file %s: %v", goldenPath, err)
	}

	if Normalize(string(actual)) != Normalize(string(expected)) {
		g.t.Errorf("output mismatch for %s:\n--- expected ---\n%s\n--- actual ---\n%s",
			name, expected, actual)
	}
}

// AssertString compares string output against the golden file.
func (g *Golden) AssertString(name, actual string) {
	g.Assert(name, []byte(actual))
}

func (g *Golden) updateGolden(path string, actual []byte) {
	g.t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		g.t.Fatalf("creating golden directory: %v", err)
	}
	if err := os.WriteFile(path, actual, 0o600); err != nil {
		g.t.Fatalf("writing golden file: %v", err)
	}
	g.t.Logf("updated golden file: %s", path)
}

// Normalize unifies line endings and drops trailing whitespace.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

var (
	addressRe = regexp.MustCompile(`0x[0-9a-f]+`)
	procFDRe  = regexp.MustCompile(`/proc/\d+/fd/\d+`)
	lineRe    = regexp.MustCompile(`\.go:\d+`)
	uuidRe    = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// ScrubAddresses replaces hexadecimal addresses printed by the debugger.
func ScrubAddresses(s string) string {
	return addressRe.ReplaceAllString(s, "[ADDR]")
}

// ScrubProcFDs replaces descriptor paths, which embed a pid.
func ScrubProcFDs(s string) string {
	return procFDRe.ReplaceAllString(s, "[FD]")
}

// ScrubLineNumbers replaces Go source line numbers.
func ScrubLineNumbers(s string) string {
	return lineRe.ReplaceAllString(s, ".go:[LINE]")
}

// ScrubUUIDs replaces crash dump ids.
func ScrubUUIDs(s string) string {
	return uuidRe.ReplaceAllString(s, "[UUID]")
}

// ScrubAll applies every scrubber and normalizes the result.
func ScrubAll(s string) string {
	s = ScrubAddresses(s)
	s = ScrubProcFDs(s)
	s = ScrubLineNumbers(s)
	s = ScrubUUIDs(s)
	return Normalize(s)
}
