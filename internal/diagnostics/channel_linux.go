//go:build linux

package diagnostics

import (
	"os"

	"golang.org/x/sys/unix"
)

// setPipeSize raises the pipe capacity with F_SETPIPE_SZ. Unprivileged
// processes are capped by /proc/sys/fs/pipe-max-size.
func setPipeSize(f *os.File, size int) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := rc.Control(func(fd uintptr) {
		_, opErr = unix.FcntlInt(fd, unix.F_SETPIPE_SZ, size)
	}); err != nil {
		return err
	}
	return opErr
}

// pipeSize reports the current pipe capacity.
func pipeSize(f *os.File) (int, error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return 0, err
	}
	var size int
	var opErr error
	if err := rc.Control(func(fd uintptr) {
		size, opErr = unix.FcntlInt(fd, unix.F_GETPIPE_SZ, 0)
	}); err != nil {
		return 0, err
	}
	return size, opErr
}
