package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/byte4ever/bobber/scm/exec"
)

const (
	gitBinary     = "git"
	defaultRemote = "origin"
	// testBranch receives a pull request's changes on
	// top of the target branch.
	testBranch = "prtest"
)

// CheckoutOptions tune a single Checkout call.
type CheckoutOptions struct {
	// PullRequest, when set, is pulled into a local
	// test branch after the checkout succeeds.
	PullRequest *PullRequest
	// Tracker receives process ids of the commands
	// run. Optional.
	Tracker exec.Tracker
}

// CheckoutResult aggregates the commands run by one
// Checkout. Status is the status of the last command
// executed, or failed when none ran.
type CheckoutResult struct {
	ID         string        `json:"id"          yaml:"id"`
	StartTime  time.Time     `json:"start_time"  yaml:"start_time"`
	FinishTime time.Time     `json:"finish_time" yaml:"finish_time"`
	Status     exec.Status   `json:"status"      yaml:"status"`
	Commands   []exec.Result `json:"commands"    yaml:"commands"`
}

// CheckoutCommand returns the command that brings the
// workspace at path up to date with ref: a pull of the
// branch from origin when path already holds a clone,
// a fresh clone of the branch into path otherwise.
func CheckoutCommand(path string, ref SourceRef) exec.Command {
	if isClone(path) {
		return exec.Command{
			Dir:  path,
			Name: gitBinary,
			Args: []string{"pull", defaultRemote, ref.Branch},
		}
	}

	return exec.Command{
		Dir:  path,
		Name: gitBinary,
		Args: []string{
			"clone", "--branch=" + ref.Branch, ref.URL, ".",
		},
	}
}

// isClone reports whether path contains git metadata.
func isClone(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))

	return err == nil
}

// Checkout materialises ref into the repository
// directory. With a pull request in opts, a test branch
// is then created and the contributor's branch pulled
// into it from their fork. Commands run one at a time;
// only a failed checkout stops the sequence, so the pull
// runs even when the test branch already exists. Every
// command run is recorded in the result and the status
// is that of the last one.
//
// A pull request whose fork URL cannot be derived from
// ref.URL yields a failed result with no commands along
// with the error.
//
// The caller must not run other commands against the
// same directory while Checkout is in progress.
func (r *Repo) Checkout(
	ctx context.Context,
	ref SourceRef,
	opts CheckoutOptions,
) (*CheckoutResult, error) {
	const errCtx = "checking out"

	res := &CheckoutResult{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
		Status:    exec.StatusFailed,
		Commands:  []exec.Result{},
	}

	logger := slog.With("checkout", res.ID, "dir", r.Dir)

	var mergeCmds []exec.Command

	if pr := opts.PullRequest; pr != nil {
		var err error

		mergeCmds, err = mergeCommands(r.Dir, ref, pr)
		if err != nil {
			res.FinishTime = time.Now()

			logger.Error(
				"checkout aborted",
				"url", ref.URL,
				"error", err,
			)

			return res, fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	logger.Info(
		"checkout started",
		"url", ref.URL,
		"branch", ref.Branch,
		"commands", 1+len(mergeCmds),
	)

	runner := r.runner()

	run := func(cmd exec.Command) bool {
		cr := runner.Run(ctx, cmd, opts.Tracker)

		res.Commands = append(res.Commands, cr)
		res.Status = cr.Status

		if !cr.Succeeded() {
			logger.Warn(
				"checkout command failed",
				"cmd", cr.Command,
				"exit_code", cr.ExitCode,
				"stderr", cr.Stderr,
			)
		}

		return cr.Succeeded()
	}

	if run(CheckoutCommand(r.Dir, ref)) {
		for _, cmd := range mergeCmds {
			run(cmd)
		}
	}

	res.FinishTime = time.Now()

	logger.Info(
		"checkout finished",
		"status", res.Status,
		"elapsed", res.FinishTime.Sub(res.StartTime),
	)

	return res, nil
}

// mergeCommands builds the test branch creation and the
// pull from the contributor's fork.
func mergeCommands(
	dir string,
	ref SourceRef,
	pr *PullRequest,
) ([]exec.Command, error) {
	const errCtx = "building merge commands"

	source := ref.URL

	if pr.RemoteUser != "" {
		fork, err := ForkURL(ref.URL, pr.RemoteUser)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}

		source = fork
	}

	branch := pr.RemoteBranch
	if branch == "" {
		branch = ref.Branch
	}

	return []exec.Command{
		{
			Dir:  dir,
			Name: gitBinary,
			Args: []string{"checkout", "-b", testBranch, ref.Branch},
		},
		{
			Dir:  dir,
			Name: gitBinary,
			Args: []string{"pull", source, branch},
		},
	}, nil
}
