// Package render turns archived reports into terminal markdown.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"

	"github.com/hugo-lorenzo-mato/postmortem/internal/diagnostics"
)

// Markdown describes a crash dump and its report. The report goes into a
// fenced block so the debugger output keeps its layout.
func Markdown(d *diagnostics.CrashDump, report []byte) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", headline(d))
	if d.Message != "" {
		fmt.Fprintf(&b, "> %s\n\n", d.Message)
	}

	b.WriteString("| | |\n|---|---|\n")
	row(&b, "Condition", "`"+d.Condition+"`")
	row(&b, "Location", fmt.Sprintf("%s:%d", d.File, d.Line))
	row(&b, "Time", d.Timestamp.Local().Format(time.RFC3339))
	row(&b, "Process", fmt.Sprintf("%d (%s %s/%s)", d.ProcessID, d.GoVersion, d.GOOS, d.GOARCH))
	row(&b, "Debugger", fmt.Sprintf("%s, %s", d.Debugger, d.Outcome))
	if h := d.Host; h != nil {
		if h.CPUModel != "" {
			row(&b, "CPU", fmt.Sprintf("%s (%d cores, %d threads)", h.CPUModel, h.CPUCores, h.CPUThreads))
		}
		if len(h.GPUs) > 0 {
			row(&b, "GPU", strings.Join(h.GPUs, ", "))
		}
		row(&b, "Memory", fmt.Sprintf("%.0f/%.0f MB (%.1f%%)", h.MemUsedMB, h.MemTotalMB, h.MemPercent))
		row(&b, "Load", fmt.Sprintf("%.2f %.2f %.2f", h.LoadAvg1, h.LoadAvg5, h.LoadAvg15))
	}
	row(&b, "ID", d.ID)

	if len(report) > 0 {
		b.WriteString("\n## Report\n\n```\n")
		b.Write(report)
		if report[len(report)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString("```\n")
	}
	return b.String()
}

func headline(d *diagnostics.CrashDump) string {
	if d.Function == "" {
		return "Failed assertion"
	}
	return "Failed assertion in " + d.Function
}

func row(b *strings.Builder, key, value string) {
	value = strings.ReplaceAll(value, "|", `\|`)
	fmt.Fprintf(b, "| %s | %s |\n", key, value)
}

// NewRenderer returns a markdown renderer wrapping at width.
func NewRenderer(width int) (*glamour.TermRenderer, error) {
	style := styles.DraculaStyleConfig
	style.Code = ansi.StyleBlock{
		StylePrimitive: ansi.StylePrimitive{
			Color:           stringPtr("229"),
			BackgroundColor: stringPtr(""),
		},
	}
	if width < 20 {
		width = 20
	}
	return glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
}

// Dump renders a crash dump for a terminal of the given width.
func Dump(d *diagnostics.CrashDump, report []byte, width int) (string, error) {
	r, err := NewRenderer(width)
	if err != nil {
		return "", fmt.Errorf("creating renderer: %w", err)
	}
	out, err := r.Render(Markdown(d, report))
	if err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return out, nil
}

func stringPtr(s string) *string {
	return &s
}
