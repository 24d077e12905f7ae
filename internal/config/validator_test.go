package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
)

func TestValidator_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NewValidator().Validate(Default()))
}

func TestValidator_Fields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"debugger path", func(c *Config) { c.Debugger.Path = " " }, "debugger.path"},
		{"backtrace command", func(c *Config) { c.Debugger.BacktraceCommand = "" }, "debugger.backtrace_command"},
		{"locals command", func(c *Config) { c.Debugger.LocalsCommand = "" }, "debugger.locals_command"},
		{"empty extra", func(c *Config) { c.Debugger.ExtraCommands = []string{""} }, "debugger.extra_commands[0]"},
		{"multiline extra", func(c *Config) { c.Debugger.ExtraCommands = []string{"bt\nquit"} }, "debugger.extra_commands[0]"},
		{"quit extra", func(c *Config) { c.Debugger.ExtraCommands = []string{"info threads", "quit"} }, "debugger.extra_commands[1]"},
		{"logging extra", func(c *Config) { c.Debugger.ExtraCommands = []string{"set logging off"} }, "debugger.extra_commands[0]"},
		{"pipe size", func(c *Config) { c.Channel.PipeSize = -1 }, "channel.pipe_size"},
		{"mode", func(c *Config) { c.Rendezvous.Mode = "ptrace" }, "rendezvous.mode"},
		{"interval format", func(c *Config) { c.Rendezvous.PollInterval = "fast" }, "rendezvous.poll_interval"},
		{"interval zero", func(c *Config) { c.Rendezvous.PollInterval = "0s" }, "rendezvous.poll_interval"},
		{"interval large", func(c *Config) { c.Rendezvous.PollInterval = "1m" }, "rendezvous.poll_interval"},
		{"max files", func(c *Config) { c.Archive.MaxFiles = 0 }, "archive.max_files"},
		{"server host", func(c *Config) { c.Server.Host = "" }, "server.host"},
		{"server port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"cors origin", func(c *Config) { c.Server.CORSOrigins = []string{"localhost:3000"} }, "server.cors_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)

			v := NewValidator()
			require.Error(t, v.Validate(cfg))
			require.Len(t, v.Errors(), 1)
			assert.Equal(t, tt.field, v.Errors()[0].Field)
		})
	}
}

func TestValidator_ExtraCommandsAllowed(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Debugger.ExtraCommands = []string{"info registers", "set print pretty on", "info threads"}
	assert.NoError(t, NewValidator().Validate(cfg))
}

func TestValidator_MultipleErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Rendezvous.Mode = ""
	cfg.Archive.MaxFiles = -2

	err := NewValidator().Validate(cfg)
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.HasErrors())
	assert.Len(t, verrs, 3)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "archive.max_files")
}

func TestValidateConfig_DomainError(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Channel.PipeSize = -10

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))

	var verrs ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}
