package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/postmortem/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse archived reports interactively",
	Long: `Open a terminal browser over the archive. Reports can be filtered
with a fuzzy query, opened as rendered markdown and copied to the
clipboard.`,
	Args: cobra.NoArgs,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().StringVar(&archiveDirFlag, "dir", "", "archive directory (default: archive.dir)")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(_ *cobra.Command, _ []string) error {
	dir, err := archiveDir()
	if err != nil {
		return err
	}
	dumps, err := diagnostics.ListCrashDumps(dir)
	if err != nil {
		return err
	}
	return tui.Run(dir, dumps)
}
