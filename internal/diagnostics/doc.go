// Package diagnostics turns a failed runtime check into a debugger-assisted
// crash report.
//
// The package implements the crash-report subsystem behind pkg/assert:
//
//   - CrashReporter: prints the failure header, opens the Channel, starts the
//     helper roles and halts the failing thread until the report is complete.
//
//   - Rendezvous: Halt, WaitHalted and Resume implement the self-stop and
//     external-continue handshake the debugger attaches through.
//
//   - Launcher: builds the debugger command script and replaces the helper
//     process image with the debugger, reporting a missing debugger over the
//     Channel.
//
//   - ProtocolReader: parses the tagged line stream coming back from the
//     debugger and renders the backtrace and locals sections.
//
// A process plays exactly one ProcessRole. Helper roles are the same
// executable started again with POSTMORTEM_ROLE set; the package init hook
// dispatches them before main runs and they never return to the caller.
//
// Optionally every report is also archived together with JSON metadata so
// it can be listed and replayed later (see Archive and CrashDump).
package diagnostics
