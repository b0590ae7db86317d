package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/byte4ever/bobber/scm/exec"
)

// Repo is a workspace directory holding (or about to
// hold) a clone. The zero Runner runs git through
// os/exec and the zero RemoteName is "origin".
type Repo struct {
	// Dir is the filesystem location of the clone.
	Dir string
	// RemoteName is the name of the upstream remote.
	RemoteName string
	// Runner executes git. Optional.
	Runner exec.Runner
}

// NewRepo returns a Repo for dir using origin as remote
// and os/exec as runner.
func NewRepo(dir string) *Repo {
	return &Repo{
		Dir:        dir,
		RemoteName: defaultRemote,
		Runner:     exec.OSRunner{},
	}
}

// CommandError reports a git command that did not
// succeed. Result holds the captured output.
type CommandError struct {
	Result exec.Result
}

// Error describes the failed command.
func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Result.Stderr)
	if msg == "" {
		msg = "no error output"
	}

	return fmt.Sprintf(
		"%s: exit code %d: %s",
		e.Result.Command, e.Result.ExitCode, msg,
	)
}

// Commits returns the full commit log of the checked
// out branch, most recent first.
func (r *Repo) Commits(ctx context.Context) ([]Commit, error) {
	const errCtx = "listing commits"

	out, err := r.git(ctx, "log", logFormat)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return ParseLog(out), nil
}

// CompareCommits returns the commits reachable from
// either start or end but not both, most recent first.
func (r *Repo) CompareCommits(
	ctx context.Context,
	start string,
	end string,
) ([]Commit, error) {
	const errCtx = "comparing commits"

	out, err := r.git(ctx, "log", logFormat, start+"..."+end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return ParseLog(out), nil
}

// LatestCommit returns the commit id of HEAD.
func (r *Repo) LatestCommit(ctx context.Context) (string, error) {
	const errCtx = "resolving HEAD"

	out, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return strings.TrimSpace(out), nil
}

// LatestRemoteCommit returns the commit the remote
// advertises for branch. The boolean is false when the
// remote has no such branch.
func (r *Repo) LatestRemoteCommit(
	ctx context.Context,
	branch string,
) (string, bool, error) {
	const errCtx = "resolving remote branch"

	out, err := r.lsRemoteHeads(ctx)
	if err != nil {
		return "", false, fmt.Errorf(
			"%s %s: %w", errCtx, branch, err,
		)
	}

	commit, ok := FindRemoteCommit(out, branch)

	return commit, ok, nil
}

// Branches returns the branch names the remote
// advertises, in listing order.
func (r *Repo) Branches(ctx context.Context) ([]string, error) {
	const errCtx = "listing remote branches"

	out, err := r.lsRemoteHeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return RemoteBranches(out), nil
}

func (r *Repo) lsRemoteHeads(ctx context.Context) (string, error) {
	return r.git(ctx, "ls-remote", "--heads", r.remote())
}

// git runs one git command in the repository directory
// and returns its stdout.
func (r *Repo) git(
	ctx context.Context,
	args ...string,
) (string, error) {
	res := r.runner().Run(
		ctx,
		exec.Command{Dir: r.Dir, Name: gitBinary, Args: args},
		nil,
	)
	if !res.Succeeded() {
		return "", &CommandError{Result: res}
	}

	return res.Stdout, nil
}

func (r *Repo) runner() exec.Runner {
	if r.Runner == nil {
		return exec.OSRunner{}
	}

	return r.Runner
}

func (r *Repo) remote() string {
	if r.RemoteName == "" {
		return defaultRemote
	}

	return r.RemoteName
}
