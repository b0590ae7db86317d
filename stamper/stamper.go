package stamper

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/bobber/scm/git"
)

// Template defaults for commit statuses and merges.
const (
	DefaultTargetURL    = "http://localhost:8080"
	DefaultDescription  = "{STATE}"
	DefaultContext      = "continuous-integration/bobber"
	DefaultMergeMessage = "Pull Request successfully merged"
)

// Templates are the format strings used to build
// commit statuses and merge commit messages.
type Templates struct {
	TargetURL    string
	Description  string
	Context      string
	MergeMessage string
}

// DefaultTemplates returns the built-in templates.
func DefaultTemplates() Templates {
	return Templates{
		TargetURL:    DefaultTargetURL,
		Description:  DefaultDescription,
		Context:      DefaultContext,
		MergeMessage: DefaultMergeMessage,
	}
}

// CommitStatus renders a status for state with vars.
// STATE is set from state and wins over vars.
func (t Templates) CommitStatus(
	state git.State,
	vars map[string]any,
) git.CommitStatus {
	merged := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		merged[k] = v
	}

	merged["STATE"] = string(state)

	return git.CommitStatus{
		State:       state,
		TargetURL:   Stamp(t.TargetURL, merged),
		Description: Stamp(t.Description, merged),
		Context:     Stamp(t.Context, merged),
	}
}

// Merge renders the merge commit message.
func (t Templates) Merge(vars map[string]any) string {
	return Stamp(t.MergeMessage, vars)
}

// LoadVars reads variable files and merges them into a
// single map. Each line is "KEY VALUE" with the first
// space as delimiter. Lines without a space are
// silently skipped; later files win.
func LoadVars(files []string) (map[string]any, error) {
	const errCtx = "loading variables"

	vars := make(map[string]any)

	for _, vf := range files {
		content, err := os.ReadFile(vf) //nolint:gosec // paths from CLI flags
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		for _, line := range strings.Split(
			string(content), "\n",
		) {
			parts := strings.SplitN(line, " ", 2)
			if len(parts) == 2 {
				vars[parts[0]] = parts[1]
			}
		}
	}

	return vars, nil
}

// Stamp substitutes {VAR} placeholders in format.
// Unknown variables are preserved as-is.
func Stamp(format string, vars map[string]any) string {
	return fasttemplate.ExecuteStringStd(
		format, "{", "}", vars,
	)
}

// SourceVars describes a source reference: URL,
// BRANCH, ORG and REPO. ORG and REPO are omitted when
// the URL cannot be parsed.
func SourceVars(ref git.SourceRef) map[string]any {
	vars := map[string]any{
		"URL":    ref.URL,
		"BRANCH": ref.Branch,
	}

	if u, err := git.ParseURL(ref.URL); err == nil {
		vars["ORG"] = u.Org
		vars["REPO"] = u.Repo
	}

	return vars
}

// StatusVars adds COMMIT and SHORT_COMMIT to the
// source variables.
func StatusVars(
	ref git.SourceRef,
	commit string,
) map[string]any {
	vars := SourceVars(ref)
	vars["COMMIT"] = commit
	vars["SHORT_COMMIT"] = git.ShortCommit(commit)

	return vars
}

// MergeVars adds the pull request NUMBER, TITLE and
// head commit to the source variables.
func MergeVars(
	ref git.SourceRef,
	pr git.PullRequest,
) map[string]any {
	vars := StatusVars(ref, pr.Commit)
	vars["NUMBER"] = strconv.Itoa(pr.Number)
	vars["TITLE"] = pr.Title

	return vars
}
