package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/postmortem/internal/history"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print archived reports as they appear",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}


func runWatch(cmd *cobra.Command, _ []string) error {
	dir, err := archiveDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := history.OpenInArchive(dir)
	if err != nil {
		logger.Warn("failure history unavailable", "error", err)
		store = nil
	} else {
		defer func() { _ = store.Close() }()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", dir)
	return watchArchive(ctx, dir, cmd.OutOrStdout(), store)
}

// watchArchive prints a summary and the report of every crash dump
// created in dir until ctx is done, recording each into store when it is
// not nil. The metadata file is written last, so its creation means the
// report is complete.
func watchArchive(ctx context.Context, dir string, out io.Writer, store *history.Store) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// renameio publishes with a rename, which surfaces as Create.
			if !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasPrefix(name, "crash-") || !strings.HasSuffix(name, ".json") || seen[name] {
				continue
			}
			seen[name] = true

			dump, err := diagnostics.LoadCrashDumpFile(event.Name)
			if err != nil {
				logger.Warn("reading crash dump", "file", event.Name, "error", err)
				continue
			}
			if store != nil {
				if _, err := store.Record(ctx, dump); err != nil {
					logger.Warn("recording failure history", "id", dump.ID, "error", err)
				}
			}
			printDumpMeta(out, dump)
			if report, err := diagnostics.ReadReport(dir, dump); err == nil {
				fmt.Fprintln(out)
				_, _ = out.Write(report)
			}
			fmt.Fprintln(out)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
