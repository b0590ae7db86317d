package report_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/bobber/scm/exec"
	"github.com/byte4ever/bobber/scm/git"
	"github.com/byte4ever/bobber/scm/report"
)

var commit = git.Commit{
	Commit:      "0123456789abcdef0123456789abcdef01234567",
	ShortCommit: "0123456",
	AuthorName:  "Alice",
	AuthorEmail: "alice@example.com",
	AuthorDate:  "2020-01-01 10:00:00",
	Message:     "Fix bug",
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]report.Format{
		"json":  report.FormatJSON,
		"JSON":  report.FormatJSON,
		"yaml":  report.FormatYAML,
		" yml ": report.FormatYAML,
	} {
		got, err := report.ParseFormat(in)

		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := report.ParseFormat("xml")

	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestWrite_json(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(
		t,
		report.Write(&buf, report.FormatJSON, []git.Commit{commit}),
	)

	assert.JSONEq(t, `[{
		"commit": "0123456789abcdef0123456789abcdef01234567",
		"short_commit": "0123456",
		"author_name": "Alice",
		"author_email": "alice@example.com",
		"author_date": "2020-01-01 10:00:00",
		"message": "Fix bug"
	}]`, buf.String())
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "\n  ")
}

func TestWrite_yaml(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	res := git.CheckoutResult{
		ID:     "id-1",
		Status: exec.StatusFailed,
		Commands: []exec.Result{
			{
				Command:  "git clone --branch=master url .",
				Status:   exec.StatusFailed,
				Stderr:   "fatal: not found",
				ExitCode: 128,
			},
		},
	}

	require.NoError(t, report.Write(&buf, report.FormatYAML, res))

	var decoded map[string]any

	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "id-1", decoded["id"])
	assert.Equal(t, "failed", decoded["status"])

	cmds, ok := decoded["commands"].([]any)

	require.True(t, ok)
	require.Len(t, cmds, 1)

	first, ok := cmds[0].(map[string]any)

	require.True(t, ok)
	assert.Equal(t, "fatal: not found", first["stderr"])
	assert.EqualValues(t, 128, first["exit_code"])
}

func TestWrite_unknown_format(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := report.Write(&buf, report.Format("xml"), commit)

	assert.ErrorContains(t, err, "unknown output format")
	assert.Zero(t, buf.Len())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWrite_writer_error(t *testing.T) {
	t.Parallel()

	err := report.Write(failingWriter{}, report.FormatJSON, commit)

	assert.ErrorContains(t, err, "disk full")
}
