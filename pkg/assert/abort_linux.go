//go:build linux

package assert

import (
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// abort ends the process with SIGABRT so its exit status shows
// termination by signal, without the runtime's goroutine dump.
//
// The runtime's own SIGABRT handler prints that dump, and os/signal cannot
// remove it, so the disposition is reset to SIG_DFL in the kernel first.
func abort() {
	// An all-zero kernel sigaction is SIG_DFL with no flags and an empty
	// mask, whatever the architecture's field order.
	var act [8]uint64
	_, _, _ = unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(unix.SIGABRT),
		uintptr(unsafe.Pointer(&act)), 0, 8, 0, 0)

	// Directed at this thread, so it is delivered before tgkill returns.
	_ = unix.Tgkill(os.Getpid(), unix.Gettid(), unix.SIGABRT)

	time.Sleep(time.Second)
	os.Exit(134)
}
