package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/postmortem/internal/history"
)

var (
	statsDB    string
	statsSince time.Duration
	statsLimit int
	statsJSON  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the locations that fail most often",
	Long: `Record the archive into the failure history and print the locations
that failed most often. The history keeps failures after the archive
prunes their reports.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&archiveDirFlag, "dir", "", "archive directory (default: archive.dir)")
	statsCmd.Flags().StringVar(&statsDB, "db", "", "history database (default: <dir>/"+history.DefaultFileName+")")
	statsCmd.Flags().DurationVar(&statsSince, "since", 0, "only count failures newer than this, e.g. 24h")
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "number of locations")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print hotspots as JSON")
	rootCmd.AddCommand(statsCmd)
}

func openHistory(dir string) (*history.Store, error) {
	if statsDB != "" {
		return history.Open(statsDB)
	}
	return history.OpenInArchive(dir)
}

func runStats(cmd *cobra.Command, _ []string) error {
	dir, err := archiveDir()
	if err != nil {
		return err
	}
	store, err := openHistory(dir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	added, err := store.Sync(ctx, dir)
	if err != nil {
		return err
	}
	logger.Debug("history synced", "db", store.Path(), "added", added)

	var since time.Time
	if statsSince > 0 {
		since = time.Now().Add(-statsSince)
	}
	spots, err := store.Hotspots(ctx, since, statsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statsJSON {
		if spots == nil {
			spots = []history.Hotspot{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(spots)
	}

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d failures recorded\n\n", total)
	if len(spots) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNT\tLOCATION\tFUNCTION\tLAST SEEN")
	for _, h := range spots {
		fmt.Fprintf(tw, "%d\t%s:%d\t%s\t%s\n",
			h.Count, h.File, h.Line, h.Function, h.LastSeen.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
