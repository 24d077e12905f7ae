package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugo-lorenzo-mato/postmortem/internal/config"
	"github.com/hugo-lorenzo-mato/postmortem/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	// Loaded by initConfig before any subcommand runs.
	appConfig *config.Config
	logger    = logging.NewNop()

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string
)

var rootCmd = &cobra.Command{
	Use:   "postmortem",
	Short: "Debugger-assisted reports for failed runtime checks",
	Long: `postmortem turns a failed runtime check into a crash report: the failure
header, a debugger backtrace and the local variables of the failing
function, written to the same stream before the process aborts.

Programs link pkg/assert; this tool demonstrates the report, replays
captured debugger output, checks the host and browses archived reports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initConfig(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .postmortem.yaml, then ~/.config/postmortem/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")
}

// initConfig loads configuration into a fresh viper instance so flag
// bindings from one invocation never leak into the next.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	flags := cmd.Root().PersistentFlags()
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))

	loader := config.NewLoaderWithViper(v)
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	appConfig = cfg
	logger = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if used := loader.ConfigFile(); used != "" {
		logger.Debug("loaded config", "file", used)
	}
	return nil
}
