package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
)

var (
	formatFunction string
	formatDebugger string
)

var formatCmd = &cobra.Command{
	Use:   "format [file]",
	Short: "Render a captured debugger stream as a report",
	Long: `Read the tagged stream a debugger session wrote into the channel
(from a file, or stdin when no file is given) and print the report
sections it produces.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFormat,
}

func init() {
	formatCmd.Flags().StringVarP(&formatFunction, "function", "f", "<unknown>", "function named in the locals header")
	formatCmd.Flags().StringVar(&formatDebugger, "debugger", "", "debugger named in the installation hint (default: debugger.path)")
	rootCmd.AddCommand(formatCmd)
}

func runFormat(cmd *cobra.Command, args []string) error {
	var src io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening stream: %w", err)
		}
		defer func() { _ = f.Close() }()
		src = f
	}

	debugger := formatDebugger
	if debugger == "" {
		debugger = appConfig.Debugger.Path
	}

	reader := diagnostics.NewProtocolReader(cmd.OutOrStdout(), formatFunction,
		diagnostics.WithDebuggerName(debugger),
		diagnostics.WithReaderLogger(logger.Logger),
	)
	summary, err := reader.Run(src)
	if err != nil {
		return err
	}

	logger.Debug("stream formatted",
		"outcome", summary.Outcome.String(),
		"sections", summary.Sections,
		"backtrace_lines", summary.BacktraceLines,
		"locals_lines", summary.LocalsLines,
		"dropped_lines", summary.DroppedLines,
	)
	return nil
}
