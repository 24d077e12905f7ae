package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/postmortem/internal/render"
)

var (
	archiveDirFlag string
	listJSON       bool
	showMetaOnly   bool
	showRender     bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived reports, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print an archived report",
	Long: `Print an archived report and its metadata. The id may be any unique
prefix; without one the newest report is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	for _, c := range []*cobra.Command{listCmd, showCmd, watchCmd} {
		c.Flags().StringVar(&archiveDirFlag, "dir", "", "archive directory (default: archive.dir)")
	}
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print metadata as JSON")
	showCmd.Flags().BoolVar(&showMetaOnly, "meta", false, "print only the metadata")
	showCmd.Flags().BoolVar(&showRender, "render", false, "render as styled markdown")
	rootCmd.AddCommand(listCmd, showCmd)
}

func archiveDir() (string, error) {
	if archiveDirFlag != "" {
		return archiveDirFlag, nil
	}
	if appConfig != nil && appConfig.Archive.Dir != "" {
		return appConfig.Archive.Dir, nil
	}
	return "", errors.New("no archive directory: set archive.dir or pass --dir")
}

func runList(cmd *cobra.Command, _ []string) error {
	dir, err := archiveDir()
	if err != nil {
		return err
	}
	dumps, err := diagnostics.ListCrashDumps(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if dumps == nil {
			dumps = []diagnostics.CrashDump{}
		}
		return enc.Encode(dumps)
	}

	if len(dumps) == 0 {
		fmt.Fprintln(out, "No archived reports in", dir)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tPID\tOUTCOME\tLOCATION\tFUNCTION")
	for _, d := range dumps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s:%d\t%s\n",
			shortID(d.ID),
			d.Timestamp.Local().Format(time.DateTime),
			d.ProcessID,
			d.Outcome,
			d.File, d.Line,
			d.Function,
		)
	}
	return tw.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	dir, err := archiveDir()
	if err != nil {
		return err
	}

	var dump *diagnostics.CrashDump
	if len(args) == 1 {
		dump, err = diagnostics.LoadCrashDump(dir, args[0])
	} else {
		dump, err = diagnostics.LoadLatestCrashDump(dir)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showRender {
		var report []byte
		if !showMetaOnly {
			if report, err = diagnostics.ReadReport(dir, dump); err != nil {
				return err
			}
		}
		rendered, err := render.Dump(dump, report, terminalWidth(out))
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, rendered)
		return err
	}

	printDumpMeta(out, dump)
	if showMetaOnly {
		return nil
	}

	report, err := diagnostics.ReadReport(dir, dump)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	_, err = out.Write(report)
	return err
}

func printDumpMeta(w io.Writer, d *diagnostics.CrashDump) {
	fmt.Fprintf(w, "Report %s\n", d.ID)
	fmt.Fprintf(w, "  time:     %s\n", d.Timestamp.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "  process:  %d (%s, %s/%s)\n", d.ProcessID, d.GoVersion, d.GOOS, d.GOARCH)
	fmt.Fprintf(w, "  debugger: %s, %s\n", d.Debugger, d.Outcome)
	fmt.Fprintf(w, "  sections: %d backtrace lines, %d locals lines\n", d.BacktraceLines, d.LocalsLines)
	if d.Host != nil && d.Host.CPUModel != "" {
		fmt.Fprintf(w, "  cpu:      %s (%d cores, %d threads)\n", d.Host.CPUModel, d.Host.CPUCores, d.Host.CPUThreads)
	}
	if d.Host != nil {
		fmt.Fprintf(w, "  host:     mem %.0f/%.0f MB (%.1f%%), load %.2f %.2f %.2f\n",
			d.Host.MemUsedMB, d.Host.MemTotalMB, d.Host.MemPercent,
			d.Host.LoadAvg1, d.Host.LoadAvg5, d.Host.LoadAvg15)
	}
}

// terminalWidth is the width of w when it is a terminal.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 100
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
