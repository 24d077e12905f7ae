//go:build !linux

package diagnostics

import (
	"errors"
	"os"
	"runtime"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
)

var errUnsupported = errors.New("debugger attach is only supported on linux, not " + runtime.GOOS)

// unsupportedControl degrades every report to the header plus one line.
type unsupportedControl struct{}

func newProcControl() procControl {
	return unsupportedControl{}
}

func (unsupportedControl) NewChannel(size int) (*Channel, error) {
	ch, err := NewChannel(size)
	if err != nil {
		return nil, core.ErrChannel("creating pipe").WithCause(err)
	}
	return ch, nil
}

func (unsupportedControl) StartHelper(role ProcessRole, _ handoff, _ []*os.File) (helperProcess, error) {
	return nil, core.ErrFork(role.String(), "starting helper").WithCause(errUnsupported)
}

func (unsupportedControl) LockThread() (int, func()) {
	return 0, func() {}
}

func (unsupportedControl) AllowTracer(int) error {
	return errUnsupported
}

func (unsupportedControl) NewRendezvous(RendezvousMode) (rendezvous, error) {
	return nil, errUnsupported
}

func runReporter(handoff) int {
	return exitHandoff
}

func runLauncher(handoff) int {
	return exitHandoff
}
