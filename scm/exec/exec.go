package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	oe "os/exec"
	"strings"
	"time"
)

// Status is the outcome of one executed command.
type Status string

// Command outcomes.
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Command is a single external process invocation.
// Arguments are passed to the process verbatim; no
// shell is involved.
type Command struct {
	// Dir is the working directory. Empty means the
	// current working directory.
	Dir string
	// Name is the executable name or path.
	Name string
	// Args are the process arguments.
	Args []string
}

// String renders the command line for audit trails.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}

	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result records one executed command.
type Result struct {
	Command    string    `json:"command"     yaml:"command"`
	Status     Status    `json:"status"      yaml:"status"`
	Stdout     string    `json:"stdout"      yaml:"stdout"`
	Stderr     string    `json:"stderr"      yaml:"stderr"`
	ExitCode   int       `json:"exit_code"   yaml:"exit_code"`
	StartTime  time.Time `json:"start_time"  yaml:"start_time"`
	FinishTime time.Time `json:"finish_time" yaml:"finish_time"`
}

// Succeeded reports whether the command exited zero.
func (r Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Tracker is notified of process ids while commands
// run, so a host can signal or reap them.
type Tracker interface {
	Track(pid int)
	Untrack(pid int)
}

// Runner executes commands. A nil Tracker is allowed.
type Runner interface {
	Run(
		ctx context.Context,
		cmd Command,
		tracker Tracker,
	) Result
}

// RunnerFunc adapts a plain function to the Runner
// interface.
type RunnerFunc func(
	ctx context.Context,
	cmd Command,
	tracker Tracker,
) Result

// Run delegates to the wrapped function.
func (f RunnerFunc) Run(
	ctx context.Context,
	cmd Command,
	tracker Tracker,
) Result {
	return f(ctx, cmd, tracker)
}

// OSRunner runs commands with os/exec.
type OSRunner struct{}

// Run starts the command, waits for it and captures
// stdout and stderr separately. A process that cannot
// be started yields a failed Result whose Stderr holds
// the start error.
func (OSRunner) Run(
	ctx context.Context,
	cmd Command,
	tracker Tracker,
) Result {
	slog.Info(
		"executing",
		"cmd", cmd.Name,
		"args", strings.Join(cmd.Args, " "),
		"dir", cmd.Dir,
	)

	res := Result{
		Command:   cmd.String(),
		StartTime: time.Now(),
	}

	//nolint:gosec // argv is built by this module
	proc := oe.CommandContext(ctx, cmd.Name, cmd.Args...)
	if cmd.Dir != "" {
		proc.Dir = cmd.Dir
	}

	var stdout, stderr bytes.Buffer

	proc.Stdout = &stdout
	proc.Stderr = &stderr

	if err := proc.Start(); err != nil {
		res.FinishTime = time.Now()
		res.Status = StatusFailed
		res.ExitCode = -1
		res.Stderr = err.Error()

		slog.Error(
			"cannot start command",
			"cmd", res.Command,
			"error", err,
		)

		return res
	}

	pid := proc.Process.Pid
	if tracker != nil {
		tracker.Track(pid)
	}

	err := proc.Wait()

	if tracker != nil {
		tracker.Untrack(pid)
	}

	res.FinishTime = time.Now()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Status = StatusSucceeded

	if err != nil {
		res.Status = StatusFailed
		res.ExitCode = -1

		var exitErr *oe.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
	}

	slog.Info(
		"output",
		"status", res.Status,
		"stdout", res.Stdout,
		"stderr", res.Stderr,
	)

	return res
}

// Ex executes the named command in the given directory
// and returns combined stdout+stderr output. Pass empty
// dir to use the current working directory.
func Ex(
	dir string,
	name string,
	arg ...string,
) (string, error) {
	const errCtx = "executing command"

	res := OSRunner{}.Run(
		context.Background(),
		Command{Dir: dir, Name: name, Args: arg},
		nil,
	)

	out := res.Stdout + res.Stderr

	if !res.Succeeded() {
		return out, fmt.Errorf(
			"%s: %s: exit code %d",
			errCtx, res.Command, res.ExitCode,
		)
	}

	return out, nil
}
