package stamper_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/bobber/scm/git"
	"github.com/byte4ever/bobber/stamper"
)

const sha = "0123456789abcdef0123456789abcdef01234567"

var ref = git.SourceRef{
	URL:    "https://github.com/fishin/bobber",
	Branch: "master",
}

// writeTemp creates a temporary file with content and
// returns its path.
func writeTemp(
	tb testing.TB,
	dir string,
	name string,
	content string,
) string {
	tb.Helper()

	pa := filepath.Join(dir, name)
	require.NoError(
		tb,
		os.WriteFile(pa, []byte(content), 0o600),
	)

	return pa
}

func TestStamp_substitutes_variables(t *testing.T) {
	t.Parallel()

	got := stamper.Stamp(
		"{ORG}/{REPO}@{SHORT_COMMIT}",
		stamper.StatusVars(ref, sha),
	)

	assert.Equal(t, "fishin/bobber@0123456", got)
}

func TestStamp_missing_variable_preserved(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"no {SUCH_VAR} here",
		stamper.Stamp("no {SUCH_VAR} here", nil),
	)
}

func TestStamp_empty_format(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", stamper.Stamp("", map[string]any{"A": "b"}))
}

func TestDefaultTemplates_CommitStatus(t *testing.T) {
	t.Parallel()

	st := stamper.DefaultTemplates().CommitStatus(
		git.StateSuccess,
		stamper.StatusVars(ref, sha),
	)

	assert.Equal(t, git.CommitStatus{
		State:       git.StateSuccess,
		TargetURL:   "http://localhost:8080",
		Description: "success",
		Context:     "continuous-integration/bobber",
	}, st)
}

func TestTemplates_CommitStatus_state_wins(t *testing.T) {
	t.Parallel()

	tpl := stamper.Templates{
		TargetURL:   "https://ci.example.com/{REPO}/{COMMIT}",
		Description: "build {STATE} on {BRANCH}",
		Context:     "ci/{ORG}",
	}

	vars := stamper.StatusVars(ref, sha)
	vars["STATE"] = "bogus"

	st := tpl.CommitStatus(git.StateFailure, vars)

	assert.Equal(t, "https://ci.example.com/bobber/"+sha, st.TargetURL)
	assert.Equal(t, "build failure on master", st.Description)
	assert.Equal(t, "ci/fishin", st.Context)
	assert.Equal(t, "bogus", vars["STATE"])
}

func TestTemplates_Merge(t *testing.T) {
	t.Parallel()

	pr := git.PullRequest{Number: 12, Title: "Fix bug", Commit: sha}

	assert.Equal(
		t,
		"Pull Request successfully merged",
		stamper.DefaultTemplates().Merge(stamper.MergeVars(ref, pr)),
	)

	tpl := stamper.Templates{MergeMessage: "Merge #{NUMBER}: {TITLE}"}

	assert.Equal(
		t,
		"Merge #12: Fix bug",
		tpl.Merge(stamper.MergeVars(ref, pr)),
	)
}

func TestSourceVars_unparsable_url(t *testing.T) {
	t.Parallel()

	vars := stamper.SourceVars(
		git.SourceRef{URL: "/srv/repo", Branch: "main"},
	)

	assert.Equal(t, "/srv/repo", vars["URL"])
	assert.Equal(t, "main", vars["BRANCH"])
	assert.NotContains(t, vars, "ORG")
	assert.NotContains(t, vars, "REPO")
}

func TestLoadVars_returns_map(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	vf := writeTemp(
		t, dir, "vars.txt",
		"BUILD_USER alice\nMSG hello world from CI\n",
	)

	vars, err := stamper.LoadVars([]string{vf})

	require.NoError(t, err)
	assert.Equal(t, "alice", vars["BUILD_USER"])
	assert.Equal(t, "hello world from CI", vars["MSG"])
}

func TestLoadVars_later_file_overrides_earlier(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	vf1 := writeTemp(t, dir, "v1.txt", "VER 1.0\n")
	vf2 := writeTemp(t, dir, "v2.txt", "VER 2.0\n")

	vars, err := stamper.LoadVars([]string{vf1, vf2})

	require.NoError(t, err)
	assert.Equal(t, "version=2.0", stamper.Stamp("version={VER}", vars))
}

func TestLoadVars_skips_malformed_lines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	vf := writeTemp(
		t, dir, "vars.txt",
		"GOOD value\nBADLINE\n\nALSO_GOOD val2\n",
	)

	vars, err := stamper.LoadVars([]string{vf})

	require.NoError(t, err)
	assert.Len(t, vars, 2)
}

func TestLoadVars_nil_files(t *testing.T) {
	t.Parallel()

	vars, err := stamper.LoadVars(nil)

	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestLoadVars_missing_file(t *testing.T) {
	t.Parallel()

	_, err := stamper.LoadVars([]string{"/nonexistent/file.txt"})

	assert.ErrorContains(t, err, "loading variables")
}

func FuzzStamp(f *testing.F) {
	f.Add("Hello {name}!", "name", "World")
	f.Add("{a}{b}", "a", "x")
	f.Add("{", "k", "v")
	f.Add("}", "k", "v")
	f.Add("{key}", "key", "")
	f.Add("{a} and {b}", "a", "{nested}")

	f.Fuzz(func(
		_ *testing.T,
		format string,
		key string,
		val string,
	) {
		// We only verify it does not panic.
		_ = stamper.Stamp(format, map[string]any{key: val})
	})
}
