package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that reports can include a backtrace",
	Long: `Verify that the debugger is installed, that descriptor paths under
/proc are available and that the kernel lets a process be traced by
the debugger it starts.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkStatus int

const (
	statusOK checkStatus = iota
	statusWarn
	statusFail
)

type checkResult struct {
	Name   string
	Status checkStatus
	Detail string
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	nameStyle = lipgloss.NewStyle().Width(14)
	muted     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

func (s checkStatus) icon() string {
	switch s {
	case statusOK:
		return okStyle.Render("✓")
	case statusWarn:
		return warnStyle.Render("○")
	default:
		return failStyle.Render("✗")
	}
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	results := []checkResult{
		checkDebugger(appConfig.Debugger.Path),
		checkProcFD("/proc/self/fd"),
		checkPtraceScope("/proc/sys/kernel/yama/ptrace_scope"),
		checkPipeMax("/proc/sys/fs/pipe-max-size", appConfig.Channel.PipeSize),
		checkArchiveDir(appConfig.Archive.Dir),
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Checking crash report prerequisites...")
	fmt.Fprintln(out)
	failed := printResults(out, results)
	fmt.Fprintln(out)

	if failed > 0 {
		fmt.Fprintln(out, "Reports will only contain the failure header and a hint.")
		return fmt.Errorf("%d check(s) failed", failed)
	}
	fmt.Fprintln(out, "Reports will include a backtrace and local variables.")
	return nil
}

func printResults(w io.Writer, results []checkResult) int {
	failed := 0
	for _, r := range results {
		if r.Status == statusFail {
			failed++
		}
		fmt.Fprintf(w, "  %s %s %s\n", r.Status.icon(), nameStyle.Render(r.Name), muted.Render(r.Detail))
	}
	return failed
}

func checkDebugger(path string) checkResult {
	res := checkResult{Name: "debugger"}
	resolved, err := exec.LookPath(path)
	if err != nil {
		res.Status = statusFail
		res.Detail = fmt.Sprintf("%s not found; install it or set debugger.path", filepath.Base(path))
		return res
	}

	res.Detail = resolved
	// #nosec G204 -- the debugger path comes from configuration
	if out, err := exec.Command(resolved, "--version").Output(); err == nil {
		first, _, _ := strings.Cut(string(out), "\n")
		res.Detail = fmt.Sprintf("%s (%s)", resolved, strings.TrimSpace(first))
	}
	return res
}

func checkProcFD(dir string) checkResult {
	res := checkResult{Name: "fd paths"}
	if _, err := os.Stat(dir); err != nil {
		res.Status = statusFail
		res.Detail = dir + " unavailable; the debugger cannot log into the channel"
		return res
	}
	res.Detail = dir
	return res
}

// checkPtraceScope interprets Yama's ptrace_scope.
func checkPtraceScope(path string) checkResult {
	res := checkResult{Name: "ptrace"}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		res.Detail = "yama not present"
		return res
	}
	if err != nil {
		res.Status = statusWarn
		res.Detail = "cannot read ptrace_scope: " + err.Error()
		return res
	}

	switch scope := strings.TrimSpace(string(data)); scope {
	case "0":
		res.Detail = "ptrace_scope=0 (classic)"
	case "1":
		res.Detail = "ptrace_scope=1 (the failing process allows its debugger)"
	case "2":
		res.Status = statusWarn
		res.Detail = "ptrace_scope=2 (admin only; the debugger needs CAP_SYS_PTRACE)"
	case "3":
		res.Status = statusFail
		res.Detail = "ptrace_scope=3 (attaching is disabled)"
	default:
		res.Status = statusWarn
		res.Detail = "unknown ptrace_scope " + scope
	}
	return res
}

func checkPipeMax(path string, want int) checkResult {
	res := checkResult{Name: "pipe size"}
	data, err := os.ReadFile(path)
	if err != nil {
		res.Status = statusWarn
		res.Detail = "cannot read pipe-max-size; the default capacity is used"
		return res
	}

	var maxSize int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(data)), "%d", &maxSize); err != nil {
		res.Status = statusWarn
		res.Detail = "unparsable pipe-max-size"
		return res
	}
	if want > maxSize {
		res.Status = statusWarn
		res.Detail = fmt.Sprintf("channel.pipe_size %d exceeds pipe-max-size %d", want, maxSize)
		return res
	}
	res.Detail = fmt.Sprintf("%d bytes requested, %d allowed", want, maxSize)
	return res
}

func checkArchiveDir(dir string) checkResult {
	res := checkResult{Name: "archive"}
	if dir == "" {
		res.Detail = "disabled"
		return res
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		res.Status = statusFail
		res.Detail = err.Error()
		return res
	}
	probe, err := os.CreateTemp(dir, ".doctor-")
	if err != nil {
		res.Status = statusFail
		res.Detail = dir + " is not writable"
		return res
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	res.Detail = dir
	return res
}
