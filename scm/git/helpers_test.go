package git_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/byte4ever/bobber/scm/exec"
)

// scriptedRunner returns canned statuses in order and
// records the commands it was asked to run.
type scriptedRunner struct {
	mu       sync.Mutex
	statuses []exec.Status
	stdout   string
	calls    []exec.Command
	trackers []exec.Tracker
}

func (s *scriptedRunner) Run(
	_ context.Context,
	cmd exec.Command,
	tracker exec.Tracker,
) exec.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := exec.StatusSucceeded
	if i := len(s.calls); i < len(s.statuses) {
		st = s.statuses[i]
	}

	s.calls = append(s.calls, cmd)
	s.trackers = append(s.trackers, tracker)

	res := exec.Result{
		Command: cmd.String(),
		Status:  st,
		Stdout:  s.stdout,
	}
	if st == exec.StatusFailed {
		res.ExitCode = 128
		res.Stderr = "fatal: scripted failure"
	}

	return res
}

type nopTracker struct{}

func (nopTracker) Track(int)   {}
func (nopTracker) Untrack(int) {}

// initGitRepo creates a git repository with one
// initial commit on main. Git hooks are disabled to
// avoid interference from pre-commit hooks.
func initGitRepo(tb testing.TB, dir string) {
	tb.Helper()

	cmds := [][]string{
		{"init", "-b", "main"},
		{
			"config",
			"user.email", "test@test.com",
		},
		{"config", "user.name", "Test"},
		{
			"config", "core.hooksPath",
			"/dev/null",
		},
		{
			"commit", "--allow-empty",
			"-m", "initial",
		},
	}

	for _, args := range cmds {
		gitCmd(tb, dir, args...)
	}
}

// commitFile writes name and commits it with msg.
func commitFile(
	tb testing.TB,
	dir string,
	name string,
	msg string,
) {
	tb.Helper()

	require.NoError(
		tb,
		os.WriteFile(
			filepath.Join(dir, name),
			[]byte(msg+"\n"),
			0o600,
		),
	)

	gitCmd(tb, dir, "add", name)
	gitCmd(tb, dir, "commit", "-m", msg)
}

// gitCmd runs a git command in the given directory and
// returns its trimmed output.
func gitCmd(
	tb testing.TB,
	dir string,
	args ...string,
) string {
	tb.Helper()

	out, err := exec.Ex(dir, "git", args...)
	if err != nil {
		tb.Fatalf(
			"git %v failed: %s: %v",
			args, out, err,
		)
	}

	return strings.TrimSpace(out)
}
