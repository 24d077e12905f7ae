package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
)

// EnvPrefix prefixes every configuration environment variable.
const EnvPrefix = "POSTMORTEM"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: EnvPrefix,
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: EnvPrefix,
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (POSTMORTEM_*)
// 3. Project config (.postmortem.yaml in current directory)
// 4. User config (~/.config/postmortem/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	} else if err := l.readSearchPaths(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// readSearchPaths reads the first config file found. The project file
// wins over the user file; a missing file is not an error.
func (l *Loader) readSearchPaths() error {
	candidates := []string{".postmortem.yaml"}
	if path, err := UserConfigPath(); err == nil {
		candidates = append(candidates, path)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// UserConfigPath returns ~/.config/postmortem/config.yaml.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("cannot determine home directory")
	}
	return filepath.Join(home, ".config", "postmortem", "config.yaml"), nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("debugger.path", diagnostics.DefaultDebugger)
	l.v.SetDefault("debugger.backtrace_command", diagnostics.DefaultBacktraceCommand)
	l.v.SetDefault("debugger.locals_command", diagnostics.DefaultLocalsCommand)
	l.v.SetDefault("debugger.extra_commands", []string{})

	l.v.SetDefault("channel.pipe_size", diagnostics.DefaultPipeSize)

	l.v.SetDefault("rendezvous.mode", string(diagnostics.DefaultRendezvous))
	l.v.SetDefault("rendezvous.poll_interval", diagnostics.DefaultPollInterval.String())

	l.v.SetDefault("archive.dir", "")
	l.v.SetDefault("archive.max_files", diagnostics.DefaultMaxArchived)
	l.v.SetDefault("archive.include_system", false)

	l.v.SetDefault("server.host", "localhost")
	l.v.SetDefault("server.port", 7077)
	l.v.SetDefault("server.cors_origins", []string{})
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}
