package diagnostics

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ProcessRole
	}{
		{"", RoleTracee},
		{"tracee", RoleTracee},
		{"reporter", RoleReporter},
		{"launcher", RoleLauncher},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		if tt.in != "" {
			assert.Equal(t, tt.in, got.String())
		}
	}

	_, err := ParseRole("debugger")
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
	assert.Equal(t, "role(7)", ProcessRole(7).String())
}

func envLookup(env []string) func(string) string {
	m := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		m[k] = v
	}
	return func(k string) string { return m[k] }
}

func TestHandoff_RoundTrip(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	opts.ExtraCommands = []string{"info registers"}
	opts.Rendezvous = RendezvousPipe
	opts.PollInterval = 20 * time.Millisecond
	opts.ArchiveDir = "/var/crash/app"

	h := handoff{
		TraceePID: 4242,
		TraceeTID: 4243,
		Event: FailureEvent{
			File:      "main.go",
			Function:  "main.bar",
			Line:      12,
			Condition: `name != ""`,
			Message:   "name is\nrequired",
		},
		Options: opts,
	}

	base := []string{"PATH=/usr/bin", EnvRole + "=stale", EnvTraceePID + "=1"}
	env := h.environ(base, RoleLauncher)

	getenv := envLookup(env)
	assert.Equal(t, "launcher", getenv(EnvRole))
	assert.Equal(t, "/usr/bin", getenv("PATH"))

	payload, err := h.payload()
	require.NoError(t, err)

	got, err := readHandoff(getenv, bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, h, got)

	roles := 0
	for _, kv := range env {
		if strings.HasPrefix(kv, EnvRole+"=") {
			roles++
		}
	}
	assert.Equal(t, 1, roles, "stale role must be replaced")
}

func TestHandoff_LargeMessage(t *testing.T) {
	t.Parallel()

	h := handoff{
		TraceePID: 7,
		TraceeTID: 8,
		Event: FailureEvent{
			Function:  "main.f",
			Condition: "false",
			Message:   strings.Repeat("x", 200<<10),
		},
		Options: DefaultOptions(),
	}

	// Linux rejects exec when a single environment string exceeds 128 KiB.
	env := h.environ(nil, RoleReporter)
	for _, kv := range env {
		assert.Less(t, len(kv), 4096, "environment entry %.40q", kv)
	}

	payload, err := h.payload()
	require.NoError(t, err)
	got, err := readHandoff(envLookup(env), bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, h.Event, got.Event)
}

func TestReadHandoff_Invalid(t *testing.T) {
	t.Parallel()

	valid := map[string]string{EnvTraceePID: "1"}
	tests := []struct {
		name    string
		env     map[string]string
		payload io.Reader
	}{
		{"missing pid", map[string]string{}, strings.NewReader("{}")},
		{"bad pid", map[string]string{EnvTraceePID: "-1"}, strings.NewReader("{}")},
		{"bad tid", map[string]string{EnvTraceePID: "1", EnvTraceeTID: "x"}, strings.NewReader("{}")},
		{"missing payload", valid, nil},
		{"empty payload", valid, strings.NewReader("")},
		{"bad payload", valid, strings.NewReader("{")},
		{"bad options", valid, strings.NewReader(`{"event":{},"options":[]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := readHandoff(func(k string) string { return tt.env[k] }, tt.payload)
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, core.ErrCatValidation))
		})
	}
}

func TestReadHandoff_AppliesDefaults(t *testing.T) {
	t.Parallel()

	env := map[string]string{EnvTraceePID: "10"}
	h, err := readHandoff(func(k string) string { return env[k] }, strings.NewReader(`{"event":{"function":"f"}}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultDebugger, h.Options.DebuggerPath)
	assert.Equal(t, DefaultBacktraceCommand, h.Options.BacktraceCommand)
	assert.Equal(t, DefaultLocalsCommand, h.Options.LocalsCommand)
	assert.Equal(t, RendezvousSignal, h.Options.Rendezvous)
	assert.Equal(t, "f", h.Event.Function)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestRunRole_BadHandoff(t *testing.T) {
	t.Parallel()

	payload := &closeRecorder{Reader: strings.NewReader("{}")}
	assert.Equal(t, exitHandoff, RunRole(RoleReporter, func(string) string { return "" }, payload))
	assert.True(t, payload.closed, "payload must be closed")

	assert.Equal(t, exitHandoff, RunRole(RoleLauncher, func(string) string { return "" }, nil))
}

func TestStripHandoff(t *testing.T) {
	t.Parallel()

	env := []string{
		"HOME=/root",
		EnvRole + "=reporter",
		EnvTraceePID + "=1",
		EnvTraceeTID + "=1",
		"POSTMORTEM_LOG_LEVEL=debug",
	}
	assert.Equal(t, []string{"HOME=/root", "POSTMORTEM_LOG_LEVEL=debug"}, stripHandoff(env))
}

func TestOptions_WithDefaults(t *testing.T) {
	t.Parallel()

	got := Options{PipeSize: -5, Rendezvous: "bogus", MaxArchived: -1}.withDefaults()
	assert.Equal(t, DefaultDebugger, got.DebuggerPath)
	assert.Equal(t, 0, got.PipeSize)
	assert.Equal(t, RendezvousSignal, got.Rendezvous)
	assert.Equal(t, DefaultMaxArchived, got.MaxArchived)
	assert.Equal(t, DefaultPollInterval, got.PollInterval)

	assert.True(t, RendezvousPipe.Valid())
	assert.False(t, RendezvousMode("").Valid())
}
