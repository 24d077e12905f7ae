package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/postmortem/internal/testutil"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"CRLF to LF", "line1\r\nline2\r\n", "line1\nline2"},
		{"trailing whitespace", "line1   \nline2\t\n", "line1\nline2"},
		{"trailing newlines", "line1\nline2\n\n\n", "line1\nline2"},
		{"empty string", "", ""},
		{"leading tab kept", "\tframe\n", "\tframe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testutil.Normalize(tt.input))
		})
	}
}

func TestScrubbers(t *testing.T) {
	assert.Equal(t, "#0  [ADDR] in main.bar ()", testutil.ScrubAddresses("#0  0x000000000047e2a1 in main.bar ()"))
	assert.Equal(t, "set logging file [FD]", testutil.ScrubProcFDs("set logging file /proc/4244/fd/3"))
	assert.Equal(t, "at main.go:[LINE]", testutil.ScrubLineNumbers("at main.go:42"))
	assert.Equal(t, "id [UUID]", testutil.ScrubUUIDs("id 0b9c3a52-7f0e-4c1d-9a2b-3c4d5e6f7a8b"))
}

func TestScrubAll(t *testing.T) {
	in := "#1  0x47e2a1 in main.foo () at /src/main.go:20  \r\n"
	assert.Equal(t, "#1  [ADDR] in main.foo () at /src/main.go:[LINE]", testutil.ScrubAll(in))
}

func TestGolden_Assert(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.golden"), []byte("BACKTRACE:\n\tframe\n"), 0o600))

	g := testutil.NewGolden(t, dir)
	g.AssertString("report", "BACKTRACE:\r\n\tframe  \n")
}
