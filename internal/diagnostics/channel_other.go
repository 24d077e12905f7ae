//go:build !linux

package diagnostics

import (
	"errors"
	"os"
)

var errPipeSizeUnsupported = errors.New("pipe resizing not supported on this platform")

func setPipeSize(_ *os.File, _ int) error {
	return errPipeSizeUnsupported
}

func pipeSize(_ *os.File) (int, error) {
	return 0, errPipeSizeUnsupported
}
