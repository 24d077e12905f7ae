package diagnostics

import "time"

// Defaults for Options.
const (
	DefaultDebugger         = "gdb"
	DefaultBacktraceCommand = "bt"
	DefaultLocalsCommand    = "info locals"
	DefaultPipeSize         = 1 << 20
	DefaultPollInterval     = 5 * time.Millisecond
	DefaultMaxArchived      = 10
	DefaultRendezvous       = RendezvousSignal
)

// RendezvousMode selects how the Tracee halts and is resumed.
type RendezvousMode string

const (
	// RendezvousSignal stops the process with SIGSTOP and resumes it with
	// SIGCONT. A job-control shell waiting on the process notices the stop.
	RendezvousSignal RendezvousMode = "signal"
	// RendezvousPipe parks the failing thread in a blocking read that the
	// Reporter releases by closing the other end.
	RendezvousPipe RendezvousMode = "pipe"
)

// Valid reports whether m is a known mode.
func (m RendezvousMode) Valid() bool {
	return m == RendezvousSignal || m == RendezvousPipe
}

// Options configures the crash-report subsystem. The Tracee hands its
// Options to the helper roles, so every field must survive a JSON round
// trip.
type Options struct {
	// DebuggerPath is the debugger executable, resolved through PATH.
	DebuggerPath string `json:"debugger_path"`
	// BacktraceCommand and LocalsCommand produce the two report sections.
	BacktraceCommand string `json:"backtrace_command"`
	LocalsCommand    string `json:"locals_command"`
	// ExtraCommands run while logging is on, after the locals section.
	ExtraCommands []string `json:"extra_commands,omitempty"`

	// PipeSize is the requested channel capacity in bytes; 0 keeps the
	// system default.
	PipeSize int `json:"pipe_size"`
	// Rendezvous selects the halt/resume mechanism.
	Rendezvous RendezvousMode `json:"rendezvous"`
	// PollInterval paces WaitHalted.
	PollInterval time.Duration `json:"poll_interval"`

	// ArchiveDir enables the on-disk report archive when non-empty.
	ArchiveDir    string `json:"archive_dir,omitempty"`
	MaxArchived   int    `json:"max_archived"`
	IncludeSystem bool   `json:"include_system"`

	// LogLevel of the helper roles. Anything but "debug" keeps them silent.
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultOptions returns the built-in configuration.
func DefaultOptions() Options {
	return Options{
		DebuggerPath:     DefaultDebugger,
		BacktraceCommand: DefaultBacktraceCommand,
		LocalsCommand:    DefaultLocalsCommand,
		PipeSize:         DefaultPipeSize,
		Rendezvous:       DefaultRendezvous,
		PollInterval:     DefaultPollInterval,
		MaxArchived:      DefaultMaxArchived,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DebuggerPath == "" {
		o.DebuggerPath = d.DebuggerPath
	}
	if o.BacktraceCommand == "" {
		o.BacktraceCommand = d.BacktraceCommand
	}
	if o.LocalsCommand == "" {
		o.LocalsCommand = d.LocalsCommand
	}
	if o.PipeSize < 0 {
		o.PipeSize = 0
	}
	if !o.Rendezvous.Valid() {
		o.Rendezvous = d.Rendezvous
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.MaxArchived <= 0 {
		o.MaxArchived = d.MaxArchived
	}
	return o
}
