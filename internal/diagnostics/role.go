package diagnostics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hugo-lorenzo-mato/postmortem/internal/core"
)

// ProcessRole is the part a process plays in producing a report.
type ProcessRole int

const (
	// RoleTracee is the failing process. Every process starts as one.
	RoleTracee ProcessRole = iota
	// RoleReporter reads the channel and writes the report.
	RoleReporter
	// RoleLauncher becomes the debugger.
	RoleLauncher
)

func (r ProcessRole) String() string {
	switch r {
	case RoleTracee:
		return "tracee"
	case RoleReporter:
		return "reporter"
	case RoleLauncher:
		return "launcher"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// ParseRole maps the POSTMORTEM_ROLE value to a role. The empty string is
// the Tracee.
func ParseRole(s string) (ProcessRole, error) {
	switch s {
	case "", "tracee":
		return RoleTracee, nil
	case "reporter":
		return RoleReporter, nil
	case "launcher":
		return RoleLauncher, nil
	default:
		return RoleTracee, core.ErrValidation(core.CodeUnknownRole, fmt.Sprintf("unknown process role %q", s))
	}
}

// Environment variables carrying the hand-off from the Tracee to a helper.
// The failure event and options travel on handoffFD instead: a message has
// no size limit, an environment string does.
const (
	EnvRole      = "POSTMORTEM_ROLE"
	EnvTraceePID = "POSTMORTEM_TRACEE_PID"
	EnvTraceeTID = "POSTMORTEM_TRACEE_TID"
)

// Descriptors inherited by the helper roles, in ExtraFiles order.
const (
	handoffFD        = 3
	reporterOutputFD = 4
	reporterChannel  = 5
	launcherChannel  = 4
)

// Helper exit statuses. Status 1 is reserved for a missing debugger.
const (
	exitOK         = 0
	exitNoDebugger = 1
	exitHandoff    = 2
	exitRendezvous = 3
)

// handoff is everything a helper needs from the Tracee.
type handoff struct {
	TraceePID int
	TraceeTID int
	Event     FailureEvent
	Options   Options
}

// handoffPayload is the part of the hand-off read from handoffFD.
type handoffPayload struct {
	Event   FailureEvent `json:"event"`
	Options Options      `json:"options"`
}

// environ returns base with the hand-off variables for role appended.
// Stale hand-off variables in base are dropped.
func (h handoff) environ(base []string, role ProcessRole) []string {
	env := stripHandoff(base)
	return append(env,
		EnvRole+"="+role.String(),
		EnvTraceePID+"="+strconv.Itoa(h.TraceePID),
		EnvTraceeTID+"="+strconv.Itoa(h.TraceeTID),
	)
}

// payload encodes the event and options for handoffFD.
func (h handoff) payload() ([]byte, error) {
	b, err := json.Marshal(handoffPayload{Event: h.Event, Options: h.Options})
	if err != nil {
		return nil, fmt.Errorf("encoding hand-off: %w", err)
	}
	return b, nil
}

// readHandoff decodes the hand-off from the environment and payload.
func readHandoff(getenv func(string) string, payload io.Reader) (handoff, error) {
	var h handoff

	pid, err := strconv.Atoi(getenv(EnvTraceePID))
	if err != nil || pid <= 0 {
		return h, core.ErrValidation(core.CodeInvalidHandoff, "missing or invalid "+EnvTraceePID)
	}
	h.TraceePID = pid

	if tid := getenv(EnvTraceeTID); tid != "" {
		if h.TraceeTID, err = strconv.Atoi(tid); err != nil {
			return h, core.ErrValidation(core.CodeInvalidHandoff, "invalid "+EnvTraceeTID).WithCause(err)
		}
	}

	if payload == nil {
		return h, core.ErrValidation(core.CodeInvalidHandoff, "missing hand-off payload")
	}
	var p handoffPayload
	if err := json.NewDecoder(payload).Decode(&p); err != nil {
		return h, core.ErrValidation(core.CodeInvalidHandoff, "invalid hand-off payload").WithCause(err)
	}
	h.Event = p.Event
	h.Options = p.Options.withDefaults()
	return h, nil
}

func stripHandoff(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		switch key {
		case EnvRole, EnvTraceePID, EnvTraceeTID:
			continue
		}
		out = append(out, kv)
	}
	return out
}

// The role is chosen once, before main. Helper roles never return.
func init() {
	role, err := ParseRole(os.Getenv(EnvRole))
	if err != nil {
		fmt.Fprintln(os.Stderr, "postmortem:", err)
		os.Exit(exitHandoff)
	}
	if role == RoleTracee {
		return
	}
	os.Exit(RunRole(role, os.Getenv, os.NewFile(handoffFD, "handoff")))
}

// RunRole runs a helper role to completion and returns its exit status.
// payload is closed once decoded so the debugger does not inherit it.
func RunRole(role ProcessRole, getenv func(string) string, payload io.ReadCloser) int {
	h, err := readHandoff(getenv, payload)
	if payload != nil {
		_ = payload.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "postmortem:", err)
		return exitHandoff
	}

	switch role {
	case RoleReporter:
		return runReporter(h)
	case RoleLauncher:
		return runLauncher(h)
	default:
		fmt.Fprintf(os.Stderr, "postmortem: role %s has no helper entry point\n", role)
		return exitHandoff
	}
}
