//go:build unix && !linux

package assert

import (
	"os"
	"runtime/debug"
	"syscall"
	"time"
)

// abort ends the process with SIGABRT so its exit status shows
// termination by signal. The Go runtime catches SIGABRT; the crash
// traceback setting makes it re-raise the signal after printing the
// goroutine dump.
func abort() {
	debug.SetTraceback("crash")
	_ = syscall.Kill(os.Getpid(), syscall.SIGABRT)

	// Delivery is asynchronous.
	time.Sleep(time.Second)
	os.Exit(134)
}
