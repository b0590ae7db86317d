package git

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Pattern: Strategy -- swap hosting platform without
// changing checkout or status reporting logic.

// Host is the API of a code hosting platform. Rate
// limits are never checked implicitly: callers that care
// query RateLimit before issuing requests.
type Host interface {
	// PullRequests lists open pull requests sorted by
	// ascending number.
	PullRequests(
		ctx context.Context,
		ref SourceRef,
	) ([]PullRequest, error)

	// PullRequest fetches one pull request.
	PullRequest(
		ctx context.Context,
		ref SourceRef,
		number int,
	) (*PullRequest, error)

	// MergePullRequest merges a pull request with the
	// given commit message.
	MergePullRequest(
		ctx context.Context,
		ref SourceRef,
		number int,
		message string,
	) (*MergeResult, error)

	// UpdateCommitStatus attaches a build status to a
	// commit.
	UpdateCommitStatus(
		ctx context.Context,
		ref SourceRef,
		commit string,
		status CommitStatus,
	) (*CommitStatus, error)

	// RateLimit reports the remaining API quota.
	RateLimit(ctx context.Context) (*RateLimit, error)
}

// PullRequest is a proposed change from a contributor's
// branch.
type PullRequest struct {
	Number       int    `json:"number"        yaml:"number"`
	Title        string `json:"title"         yaml:"title"`
	Commit       string `json:"commit"        yaml:"commit"`
	ShortCommit  string `json:"short_commit"  yaml:"short_commit"`
	MergeCommit  string `json:"merge_commit"  yaml:"merge_commit"`
	RemoteUser   string `json:"remote_user"   yaml:"remote_user"`
	RemoteBranch string `json:"remote_branch" yaml:"remote_branch"`
	RepoURL      string `json:"repo_url"      yaml:"repo_url"`
}

// SortPullRequests orders prs by ascending number.
func SortPullRequests(prs []PullRequest) {
	sort.SliceStable(prs, func(i, j int) bool {
		return prs[i].Number < prs[j].Number
	})
}

// MergeResult is the outcome of a merge request.
type MergeResult struct {
	Merged  bool   `json:"merged"  yaml:"merged"`
	SHA     string `json:"sha"     yaml:"sha"`
	Message string `json:"message" yaml:"message"`
}

// State is a commit build state.
type State string

// Commit build states.
const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
	StateError   State = "error"
)

// ParseState validates a textual build state.
func ParseState(s string) (State, error) {
	switch st := State(s); st {
	case StatePending, StateSuccess, StateFailure, StateError:
		return st, nil
	default:
		return "", fmt.Errorf("unknown commit state %q", s)
	}
}

// CommitStatus is a build status attached to a commit.
type CommitStatus struct {
	State       State  `json:"state"       yaml:"state"`
	TargetURL   string `json:"target_url"  yaml:"target_url"`
	Description string `json:"description" yaml:"description"`
	Context     string `json:"context"     yaml:"context"`
}

// RateLimit is the API quota of the authenticated
// caller.
type RateLimit struct {
	Limit     int       `json:"limit"     yaml:"limit"`
	Remaining int       `json:"remaining" yaml:"remaining"`
	Reset     time.Time `json:"reset"     yaml:"reset"`
}

// Exhausted reports whether no requests are left until
// Reset.
func (r RateLimit) Exhausted() bool {
	return r.Limit > 0 && r.Remaining == 0
}

// ErrNotFound matches API errors for missing resources.
var ErrNotFound = errors.New("not found")

// APIError is an error payload returned by a hosting
// API. List operations return it together with an empty
// list, single item operations with a nil item.
type APIError struct {
	StatusCode int
	Message    string
}

// Error describes the API error.
func (e *APIError) Error() string {
	return fmt.Sprintf(
		"api error (status %d): %s", e.StatusCode, e.Message,
	)
}

// Is lets errors.Is match ErrNotFound on 404 payloads.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound &&
		e.StatusCode == http.StatusNotFound
}
