package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateDebugger(&cfg.Debugger)
	v.validateChannel(&cfg.Channel)
	v.validateRendezvous(&cfg.Rendezvous)
	v.validateArchive(&cfg.Archive)
	v.validateServer(&cfg.Server)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}
}

func (v *Validator) validateDebugger(cfg *DebuggerConfig) {
	if strings.TrimSpace(cfg.Path) == "" {
		v.addError("debugger.path", cfg.Path, "debugger required")
	}
	if strings.TrimSpace(cfg.BacktraceCommand) == "" {
		v.addError("debugger.backtrace_command", cfg.BacktraceCommand, "command required")
	}
	if strings.TrimSpace(cfg.LocalsCommand) == "" {
		v.addError("debugger.locals_command", cfg.LocalsCommand, "command required")
	}
	for i, c := range cfg.ExtraCommands {
		field := fmt.Sprintf("debugger.extra_commands[%d]", i)
		switch {
		case strings.TrimSpace(c) == "":
			v.addError(field, c, "empty command")
		case strings.ContainsAny(c, "\n\r"):
			v.addError(field, c, "must be a single line")
		case isSessionCommand(c):
			// These would end the session before the report is complete.
			v.addError(field, c, "must not stop logging or end the session")
		}
	}
}

func isSessionCommand(c string) bool {
	fields := strings.Fields(c)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "quit", "q", "detach", "kill":
		return true
	case "set":
		return len(fields) >= 2 && fields[1] == "logging"
	}
	return false
}

func (v *Validator) validateChannel(cfg *ChannelConfig) {
	if cfg.PipeSize < 0 {
		v.addError("channel.pipe_size", cfg.PipeSize, "must not be negative")
	}
}

func (v *Validator) validateRendezvous(cfg *RendezvousConfig) {
	if !diagnostics.RendezvousMode(cfg.Mode).Valid() {
		v.addError("rendezvous.mode", cfg.Mode, "must be one of: signal, pipe")
	}

	d, err := time.ParseDuration(cfg.PollInterval)
	switch {
	case err != nil:
		v.addError("rendezvous.poll_interval", cfg.PollInterval, "invalid duration format")
	case d <= 0:
		v.addError("rendezvous.poll_interval", cfg.PollInterval, "must be positive")
	case d > time.Second:
		v.addError("rendezvous.poll_interval", cfg.PollInterval, "must be at most 1s")
	}
}

func (v *Validator) validateArchive(cfg *ArchiveConfig) {
	if cfg.Dir != "" && !isValidPath(cfg.Dir) {
		v.addError("archive.dir", cfg.Dir, "invalid directory path")
	}
	if cfg.MaxFiles < 1 {
		v.addError("archive.max_files", cfg.MaxFiles, "must be at least 1")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Host == "" {
		v.addError("server.host", cfg.Host, "required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("server.port", cfg.Port, "must be between 1 and 65535")
	}
	for _, origin := range cfg.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			v.addError("server.cors_origins", origin, "must be * or an http(s) origin")
		}
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and
// validates config. Failures come back as a validation DomainError whose
// cause holds every ValidationError.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	if err := v.Validate(cfg); err != nil {
		return core.ErrValidation(core.CodeInvalidConfig, "invalid configuration").WithCause(err)
	}
	return nil
}
