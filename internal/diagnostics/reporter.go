package diagnostics

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
)

// helperProcess is a started helper role.
type helperProcess interface {
	Pid() int
	Wait() error
	Kill() error
}

// procControl is the platform side of the Tracee: channel creation, helper
// start-up and the rendezvous.
type procControl interface {
	NewChannel(size int) (*Channel, error)
	NewRendezvous(mode RendezvousMode) (rendezvous, error)
	StartHelper(role ProcessRole, h handoff, files []*os.File) (helperProcess, error)
	LockThread() (tid int, unlock func())
	AllowTracer(pid int) error
}

// CrashReporter produces the report for a failed check from inside the
// failing process.
type CrashReporter struct {
	opts   Options
	logger *slog.Logger
	ctl    procControl
}

// NewCrashReporter creates a crash reporter. A nil logger discards.
func NewCrashReporter(opts Options, logger *slog.Logger) *CrashReporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CrashReporter{
		opts:   opts.withDefaults(),
		logger: logger,
		ctl:    newProcControl(),
	}
}

// Options returns the effective options.
func (c *CrashReporter) Options() Options {
	return c.opts
}

// ReportFailure writes the report for ev to out and returns once the
// helper roles have exited. Failing to gather diagnostics only ever adds
// one line to the report; the header is always written first.
//
// The calling goroutine stays on its OS thread for the duration, since
// that thread is the one the debugger inspects.
func (c *CrashReporter) ReportFailure(out *os.File, ev FailureEvent) {
	c.write(out, FormatHeader(ev))

	tid, unlock := c.ctl.LockThread()
	defer unlock()

	ch, err := c.ctl.NewChannel(c.opts.PipeSize)
	if err != nil {
		c.logger.Debug("creating channel", "error", err)
		c.write(out, PipeFailedLine(err)+"\n")
		return
	}
	rv, err := c.ctl.NewRendezvous(c.opts.Rendezvous)
	if err != nil {
		_ = ch.Close()
		c.logger.Debug("creating rendezvous", "error", err)
		c.write(out, PipeFailedLine(err)+"\n")
		return
	}

	h := handoff{
		TraceePID: os.Getpid(),
		TraceeTID: tid,
		Event:     ev,
		Options:   c.opts,
	}

	reporterFiles := append([]*os.File{out, ch.Reader()}, rv.ReporterFiles()...)
	reporter, err := c.ctl.StartHelper(RoleReporter, h, reporterFiles)
	if err != nil {
		_ = ch.Close()
		rv.Cancel()
		c.logger.Debug("starting reporter", "error", err)
		c.write(out, ForkFailedLine(err)+"\n")
		return
	}
	_ = ch.CloseReader()
	helpers := []helperProcess{reporter}

	launcherFiles := append([]*os.File{ch.Writer()}, rv.LauncherFiles()...)
	launcher, err := c.ctl.StartHelper(RoleLauncher, h, launcherFiles)
	if err != nil {
		// The Reporter is already reading; tell it in-band.
		c.logger.Debug("starting launcher", "error", err)
		if werr := ch.WriteTag(TagForkFailed); werr != nil {
			c.logger.Debug("writing fork failure tag", "error", werr)
		}
		_ = ch.CloseWriter()
		rv.Cancel()
		c.reap(helpers)
		return
	}
	_ = ch.CloseWriter()
	rv.Release()
	helpers = append(helpers, launcher)

	if err := c.ctl.AllowTracer(launcher.Pid()); err != nil {
		c.logger.Debug("granting ptrace access", "pid", launcher.Pid(), "error", err)
	}
	if err := rv.Halt(); err != nil {
		// Nobody will ever see us halted; release the Launcher so the
		// channel reaches end-of-stream.
		c.logger.Debug("halting", "error", err)
		_ = launcher.Kill()
	}

	c.reap(helpers)
}

// reap waits for every helper. Exit statuses are only logged.
func (c *CrashReporter) reap(helpers []helperProcess) {
	var g errgroup.Group
	for _, hp := range helpers {
		g.Go(func() error {
			err := hp.Wait()
			if err != nil {
				c.logger.Debug("helper exited", "pid", hp.Pid(), "error", err)
			}
			return err
		})
	}
	_ = g.Wait()
}

// write sends s to out unbuffered.
func (c *CrashReporter) write(out *os.File, s string) {
	if _, err := io.WriteString(out, s); err != nil {
		c.logger.Debug("writing report", "error", err)
	}
}
