//go:build linux

package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
)

// execControl starts helper roles by re-executing the current binary.
type execControl struct{}

func newProcControl() procControl {
	return execControl{}
}

func (execControl) NewChannel(size int) (*Channel, error) {
	ch, err := NewChannel(size)
	if err != nil {
		return nil, core.ErrChannel("creating pipe").WithCause(err)
	}
	return ch, nil
}

// StartHelper starts role with the hand-off as descriptor 3 and files as
// descriptors 4, 5, ... The Launcher gets the null device for stdout and
// stderr so debugger chatter cannot reach the report.
func (execControl) StartHelper(role ProcessRole, h handoff, files []*os.File) (helperProcess, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, core.ErrFork(role.String(), "locating executable").WithCause(err)
	}
	payload, err := h.payload()
	if err != nil {
		return nil, core.ErrFork(role.String(), "preparing hand-off").WithCause(err)
	}
	hf, err := handoffFile(payload)
	if err != nil {
		return nil, core.ErrFork(role.String(), "preparing hand-off").WithCause(err)
	}
	// The child holds its own copy once started.
	defer func() { _ = hf.Close() }()

	// #nosec G204 -- re-executing our own binary
	cmd := exec.Command(exe)
	cmd.Args = []string{fmt.Sprintf("%s [%s]", filepath.Base(exe), role)}
	cmd.Env = h.environ(os.Environ(), role)
	cmd.ExtraFiles = append([]*os.File{hf}, files...)
	if role == RoleReporter {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, core.ErrFork(role.String(), "starting helper").WithCause(err)
	}
	return &cmdHelper{cmd: cmd}, nil
}

// handoffFile returns an unlinked file holding payload, positioned at its
// start. Each helper gets its own, so read offsets are never shared.
func handoffFile(payload []byte) (*os.File, error) {
	var f *os.File
	fd, err := unix.MemfdCreate("postmortem-handoff", unix.MFD_CLOEXEC)
	switch {
	case err == nil:
		f = os.NewFile(uintptr(fd), "handoff")
	case errors.Is(err, unix.ENOSYS), errors.Is(err, unix.EPERM):
		// No memfd: fall back to an unlinked temporary file.
		f, err = os.CreateTemp("", "postmortem-handoff-*")
		if err != nil {
			return nil, err
		}
		_ = os.Remove(f.Name())
	default:
		return nil, fmt.Errorf("memfd_create: %w", err)
	}

	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func (execControl) LockThread() (int, func()) {
	runtime.LockOSThread()
	return threadID(), runtime.UnlockOSThread
}

func (execControl) AllowTracer(pid int) error {
	return AllowTracer(pid)
}

func (execControl) NewRendezvous(mode RendezvousMode) (rendezvous, error) {
	return newRendezvous(mode)
}

type cmdHelper struct {
	cmd *exec.Cmd
}

func (c *cmdHelper) Pid() int {
	return c.cmd.Process.Pid
}

func (c *cmdHelper) Wait() error {
	return c.cmd.Wait()
}

func (c *cmdHelper) Kill() error {
	return c.cmd.Process.Kill()
}
