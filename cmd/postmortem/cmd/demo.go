package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/postmortem/pkg/assert"
)

var (
	demoOutput string
	demoMode   string
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Fail a check and print its report",
	Long: `Run a small program whose check fails two calls deep:

    bar(2, 2) -> foo(2, 3) -> Assert(c == 4, "2 + 2 is not 4")

The report names foo, the function that failed, and the process then
aborts with SIGABRT. Without a debugger the report ends with an
installation hint.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVarP(&demoOutput, "output", "o", "", "write the report to this file instead of stderr")
	demoCmd.Flags().StringVar(&demoMode, "rendezvous", "", "override rendezvous.mode (signal, pipe)")
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	opts, err := appConfig.DiagnosticsOptions()
	if err != nil {
		return err
	}
	if demoMode != "" {
		mode := diagnostics.RendezvousMode(demoMode)
		if !mode.Valid() {
			return fmt.Errorf("unknown rendezvous mode %q", demoMode)
		}
		opts.Rendezvous = mode
	}

	out := os.Stderr
	if demoOutput != "" {
		f, err := os.OpenFile(demoOutput, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("opening report file: %w", err)
		}
		out = f
	}

	assert.Configure(opts, logger.Logger)
	fmt.Fprintln(cmd.OutOrStdout(), "Hello, asserts!")
	demoBar(out, 2, 2)
	return nil
}

//go:noinline
func demoFoo(out *os.File, a, b int) int {
	c := a + b
	assert.AssertTo(out, c == 4, "2 + 2 is not 4")
	return 0
}

//go:noinline
func demoBar(out *os.File, a, b int) int {
	b = 3
	return demoFoo(out, a, b)
}
