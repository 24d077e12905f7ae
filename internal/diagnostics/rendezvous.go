package diagnostics

import "os"

// rendezvous is the Tracee's half of the halt/resume handshake.
//
// State machine: Running -> Halted -> Resumed -> Exiting. The Launcher
// waits for Halted before the debugger attaches; the Reporter resumes the
// Tracee once the report is complete.
type rendezvous interface {
	// ReporterFiles and LauncherFiles are handed to the helpers after the
	// channel descriptors.
	ReporterFiles() []*os.File
	LauncherFiles() []*os.File
	// Release closes the Tracee's copies of descriptors now held by the
	// helpers.
	Release()
	// Halt blocks until the Reporter resumes the Tracee.
	Halt() error
	// Cancel abandons the handshake without halting.
	Cancel()
}

// Descriptors added by the pipe rendezvous, after the channel.
const (
	reporterResumeFD = 6
	launcherHaltedFD = 5
)
