package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"
)

const defaultHeader = `# postmortem configuration
#
# Values not specified here use built-in defaults. Every key can be
# overridden with a POSTMORTEM_ environment variable, for example
# POSTMORTEM_DEBUGGER_PATH=/usr/local/bin/gdb.
#
# rendezvous.mode: "signal" stops the failing process with SIGSTOP;
# "pipe" parks the failing thread instead, which keeps interactive
# shells from reporting the process as stopped.
# archive.dir: set to keep a copy of every report.
# server: address of "postmortem serve", the HTTP API over the archive.

`

// DefaultYAML renders the built-in configuration as a commented YAML file.
func DefaultYAML() ([]byte, error) {
	return MarshalYAML(Default())
}

// MarshalYAML renders cfg with the file header.
func MarshalYAML(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(defaultHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefaultFile writes the default configuration to path. An existing
// file is only replaced when force is set.
func WriteDefaultFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
