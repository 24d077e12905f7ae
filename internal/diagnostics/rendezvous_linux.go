//go:build linux

package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
)

// Halt stops the whole process with a SIGSTOP raised by the calling thread
// and returns once something sends SIGCONT. The caller must be locked to
// its OS thread so the debugger finds the failing goroutine on the thread
// that raised the stop.
//
// There is no timeout: if nobody resumes the process it stays halted.
func Halt() error {
	if err := unix.Tgkill(os.Getpid(), unix.Gettid(), unix.SIGSTOP); err != nil {
		return core.ErrRendezvous(os.Getpid(), "raising SIGSTOP").WithCause(err)
	}
	return nil
}

// WaitHalted polls pid until the kernel reports it stopped, either by job
// control or by a tracer. It only gives up when ctx is done or the process
// disappears.
func WaitHalted(ctx context.Context, pid int, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	// #nosec G115 -- pids fit in int32 on Linux
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return core.ErrRendezvous(pid, "tracee not found").WithCause(err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := proc.StatusWithContext(ctx)
		if err != nil {
			return core.ErrRendezvous(pid, "reading tracee status").WithCause(err)
		}
		if slices.Contains(status, process.Stop) {
			return nil
		}
		if slices.Contains(status, process.Zombie) {
			return core.ErrRendezvous(pid, "tracee exited before halting")
		}

		select {
		case <-ctx.Done():
			return core.ErrRendezvous(pid, "waiting for halt").WithCause(ctx.Err())
		case <-ticker.C:
		}
	}
}

// Resume continues a halted process. Resuming a running process is a no-op.
func Resume(pid int) error {
	if err := unix.Kill(pid, unix.SIGCONT); err != nil {
		return core.ErrRendezvous(pid, "sending SIGCONT").WithCause(err)
	}
	return nil
}

// AllowTracer lets pid ptrace the calling process under Yama's restricted
// mode. Kernels without Yama reject the request, which is harmless.
func AllowTracer(pid int) error {
	err := unix.Prctl(unix.PR_SET_PTRACER, uintptr(pid), 0, 0, 0)
	if err == unix.EINVAL {
		return nil
	}
	return err
}

// threadID returns the id of the calling OS thread.
func threadID() int {
	return unix.Gettid()
}

func newRendezvous(mode RendezvousMode) (rendezvous, error) {
	if mode == RendezvousPipe {
		return newPipeRendezvous()
	}
	return signalRendezvous{}, nil
}

// signalRendezvous halts with SIGSTOP. The helpers find the Tracee by pid,
// so no descriptors change hands.
type signalRendezvous struct{}

func (signalRendezvous) ReporterFiles() []*os.File { return nil }
func (signalRendezvous) LauncherFiles() []*os.File { return nil }
func (signalRendezvous) Release()                  {}
func (signalRendezvous) Halt() error               { return Halt() }
func (signalRendezvous) Cancel()                   {}

// pipeRendezvous parks the failing thread in read(2). One byte on the
// halted pipe tells the Launcher the thread is about to block; the
// Reporter resumes it by closing the resume pipe.
type pipeRendezvous struct {
	haltedR, haltedW *os.File
	resumeR, resumeW *os.File
}

func newPipeRendezvous() (*pipeRendezvous, error) {
	haltedR, haltedW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating halted pipe: %w", err)
	}
	resumeR, resumeW, err := os.Pipe()
	if err != nil {
		_ = haltedR.Close()
		_ = haltedW.Close()
		return nil, fmt.Errorf("creating resume pipe: %w", err)
	}
	return &pipeRendezvous{
		haltedR: haltedR,
		haltedW: haltedW,
		resumeR: resumeR,
		resumeW: resumeW,
	}, nil
}

func (p *pipeRendezvous) ReporterFiles() []*os.File { return []*os.File{p.resumeW} }
func (p *pipeRendezvous) LauncherFiles() []*os.File { return []*os.File{p.haltedR} }

func (p *pipeRendezvous) Release() {
	_ = p.resumeW.Close()
	_ = p.haltedR.Close()
}

// Halt blocks this OS thread in read(2) rather than parking the goroutine,
// so the goroutine's frames stay on the thread the debugger inspects.
func (p *pipeRendezvous) Halt() error {
	defer func() { _ = p.resumeR.Close() }()

	if _, err := p.haltedW.Write([]byte{1}); err != nil {
		_ = p.haltedW.Close()
		return core.ErrRendezvous(os.Getpid(), "announcing halt").WithCause(err)
	}
	_ = p.haltedW.Close()

	// Fd switches the descriptor to blocking mode.
	fd := int(p.resumeR.Fd())
	var buf [1]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return core.ErrRendezvous(os.Getpid(), "waiting for resume").WithCause(err)
		}
		return nil
	}
}

func (p *pipeRendezvous) Cancel() {
	for _, f := range []*os.File{p.haltedR, p.haltedW, p.resumeR, p.resumeW} {
		_ = f.Close()
	}
}

// awaitHalt is the Launcher's half: it returns once the Tracee halted.
func awaitHalt(ctx context.Context, h handoff) error {
	if h.Options.Rendezvous != RendezvousPipe {
		return WaitHalted(ctx, h.TraceePID, h.Options.PollInterval)
	}

	halted := os.NewFile(launcherHaltedFD, "halted")
	defer func() { _ = halted.Close() }()

	var buf [1]byte
	if _, err := io.ReadFull(halted, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return core.ErrRendezvous(h.TraceePID, "tracee abandoned the rendezvous")
		}
		return core.ErrRendezvous(h.TraceePID, "waiting for halt").WithCause(err)
	}
	return nil
}

// resume is the Reporter's half.
func resume(h handoff) error {
	if h.Options.Rendezvous != RendezvousPipe {
		return Resume(h.TraceePID)
	}
	resumeW := os.NewFile(reporterResumeFD, "resume")
	if err := resumeW.Close(); err != nil {
		return core.ErrRendezvous(h.TraceePID, "closing resume pipe").WithCause(err)
	}
	return nil
}
