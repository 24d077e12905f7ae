package config

import (
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
)

// Config holds all application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Debugger   DebuggerConfig   `mapstructure:"debugger" yaml:"debugger"`
	Channel    ChannelConfig    `mapstructure:"channel" yaml:"channel"`
	Rendezvous RendezvousConfig `mapstructure:"rendezvous" yaml:"rendezvous"`
	Archive    ArchiveConfig    `mapstructure:"archive" yaml:"archive"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DebuggerConfig selects the debugger and the commands it runs.
type DebuggerConfig struct {
	Path             string   `mapstructure:"path" yaml:"path"`
	BacktraceCommand string   `mapstructure:"backtrace_command" yaml:"backtrace_command"`
	LocalsCommand    string   `mapstructure:"locals_command" yaml:"locals_command"`
	ExtraCommands    []string `mapstructure:"extra_commands" yaml:"extra_commands"`
}

// ChannelConfig configures the pipe the debugger output travels through.
type ChannelConfig struct {
	PipeSize int `mapstructure:"pipe_size" yaml:"pipe_size"`
}

// RendezvousConfig configures the halt/resume handshake.
type RendezvousConfig struct {
	Mode         string `mapstructure:"mode" yaml:"mode"`
	PollInterval string `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ArchiveConfig configures the on-disk report archive. An empty Dir
// disables it.
type ArchiveConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir"`
	MaxFiles      int    `mapstructure:"max_files" yaml:"max_files"`
	IncludeSystem bool   `mapstructure:"include_system" yaml:"include_system"`
}

// ServerConfig configures the HTTP API over the archive.
type ServerConfig struct {
	Host        string   `mapstructure:"host" yaml:"host"`
	Port        int      `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Debugger: DebuggerConfig{
			Path:             diagnostics.DefaultDebugger,
			BacktraceCommand: diagnostics.DefaultBacktraceCommand,
			LocalsCommand:    diagnostics.DefaultLocalsCommand,
			ExtraCommands:    []string{},
		},
		Channel: ChannelConfig{
			PipeSize: diagnostics.DefaultPipeSize,
		},
		Rendezvous: RendezvousConfig{
			Mode:         string(diagnostics.DefaultRendezvous),
			PollInterval: diagnostics.DefaultPollInterval.String(),
		},
		Archive: ArchiveConfig{
			MaxFiles: diagnostics.DefaultMaxArchived,
		},
		Server: ServerConfig{
			Host:        "localhost",
			Port:        7077,
			CORSOrigins: []string{},
		},
	}
}

// DiagnosticsOptions converts a validated configuration into the options
// of the crash-report subsystem.
func (c *Config) DiagnosticsOptions() (diagnostics.Options, error) {
	interval, err := time.ParseDuration(c.Rendezvous.PollInterval)
	if err != nil {
		return diagnostics.Options{}, fmt.Errorf("rendezvous.poll_interval: %w", err)
	}

	return diagnostics.Options{
		DebuggerPath:     c.Debugger.Path,
		BacktraceCommand: c.Debugger.BacktraceCommand,
		LocalsCommand:    c.Debugger.LocalsCommand,
		ExtraCommands:    c.Debugger.ExtraCommands,
		PipeSize:         c.Channel.PipeSize,
		Rendezvous:       diagnostics.RendezvousMode(c.Rendezvous.Mode),
		PollInterval:     interval,
		ArchiveDir:       c.Archive.Dir,
		MaxArchived:      c.Archive.MaxFiles,
		IncludeSystem:    c.Archive.IncludeSystem,
		LogLevel:         c.Log.Level,
	}, nil
}
