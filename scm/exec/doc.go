// Package exec runs external tools as structured argument lists.
//
// Runner is the seam the rest of bobber executes git through. OSRunner is the
// os/exec implementation: it captures stdout and stderr separately, stamps
// start and finish times, and reports process ids to an optional Tracker so
// a host orchestrator can follow or kill long-running clones. Ex is a
// shorthand for one-off commands, such as building fixture repositories,
// that only need the combined output.
package exec
