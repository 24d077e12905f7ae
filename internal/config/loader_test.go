package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
)

// assertDefaults compares cfg with Default. Empty lists may decode as nil.
func assertDefaults(t *testing.T, cfg *Config) {
	t.Helper()
	want := Default()
	assert.Empty(t, cfg.Debugger.ExtraCommands)
	assert.Empty(t, cfg.Server.CORSOrigins)
	got := *cfg
	got.Debugger.ExtraCommands = want.Debugger.ExtraCommands
	got.Server.CORSOrigins = want.Server.CORSOrigins
	assert.Equal(t, *want, got)
}

// isolate keeps the user's own config file out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestLoader_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assertDefaults(t, cfg)
	require.NoError(t, ValidateConfig(cfg))
}

func TestLoader_ConfigFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "postmortem.yaml")
	content := `
debugger:
  path: /opt/gdb/bin/gdb
  backtrace_command: bt full
  extra_commands:
    - info registers
rendezvous:
  mode: pipe
archive:
  dir: /tmp/crashes
  max_files: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := NewLoader().WithConfigFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, path, loader.ConfigFile())
	assert.Equal(t, "/opt/gdb/bin/gdb", cfg.Debugger.Path)
	assert.Equal(t, "bt full", cfg.Debugger.BacktraceCommand)
	assert.Equal(t, "info locals", cfg.Debugger.LocalsCommand)
	assert.Equal(t, []string{"info registers"}, cfg.Debugger.ExtraCommands)
	assert.Equal(t, "pipe", cfg.Rendezvous.Mode)
	assert.Equal(t, "/tmp/crashes", cfg.Archive.Dir)
	assert.Equal(t, 3, cfg.Archive.MaxFiles)
}

func TestLoader_MissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := NewLoader().WithConfigFile(filepath.Join(t.TempDir(), "nope.yaml")).Load()
	assert.Error(t, err)
}

func TestLoader_UserConfig(t *testing.T) {
	isolate(t)

	path, err := UserConfigPath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, path, loader.ConfigFile())
}

func TestLoader_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("POSTMORTEM_DEBUGGER_PATH", "gdb-multiarch")
	t.Setenv("POSTMORTEM_RENDEZVOUS_POLL_INTERVAL", "20ms")
	t.Setenv("POSTMORTEM_ARCHIVE_INCLUDE_SYSTEM", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "gdb-multiarch", cfg.Debugger.Path)
	assert.Equal(t, "20ms", cfg.Rendezvous.PollInterval)
	assert.True(t, cfg.Archive.IncludeSystem)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	isolate(t)
	t.Setenv("MYAPP_LOG_LEVEL", "warn")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestConfig_DiagnosticsOptions(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Log.Level = "debug"
	cfg.Rendezvous.Mode = "pipe"
	cfg.Rendezvous.PollInterval = "10ms"
	cfg.Archive.Dir = "/var/crash"

	opts, err := cfg.DiagnosticsOptions()
	require.NoError(t, err)

	assert.Equal(t, diagnostics.DefaultDebugger, opts.DebuggerPath)
	assert.Equal(t, diagnostics.RendezvousPipe, opts.Rendezvous)
	assert.Equal(t, 10*time.Millisecond, opts.PollInterval)
	assert.Equal(t, "/var/crash", opts.ArchiveDir)
	assert.Equal(t, diagnostics.DefaultMaxArchived, opts.MaxArchived)
	assert.Equal(t, "debug", opts.LogLevel)

	cfg.Rendezvous.PollInterval = "soon"
	_, err = cfg.DiagnosticsOptions()
	assert.Error(t, err)
}
