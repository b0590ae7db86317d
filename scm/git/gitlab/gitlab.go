package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/bobber/scm/git"
)

const (
	defaultHost      = "https://gitlab.com"
	defaultUserAgent = "bobber"
	perPage          = 100
	openedState      = "opened"
	mergedState      = "merged"
)

// Config holds the settings needed to talk to the
// GitLab API.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// AccessToken is a personal or project access
	// token used for authentication.
	AccessToken string
	// UserAgent is sent with every request. Defaults
	// to "bobber".
	UserAgent string
	// HTTPClient is the transport. Optional.
	HTTPClient *http.Client
}

// Provider is the GitLab implementation of git.Host.
// Merge requests are exposed as pull requests.
//
// Pattern: Strategy -- implements git.Host.
type Provider struct {
	client *gl.Client
}

var _ git.Host = (*Provider)(nil)

// NewProvider validates cfg and returns a Provider
// ready to issue API requests. The client library's
// retries are disabled.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitlab provider"

	host := cfg.Host
	if host == "" {
		host = defaultHost
	}

	opts := []gl.ClientOptionFunc{
		gl.WithBaseURL(host),
		gl.WithoutRetries(),
	}

	if cfg.HTTPClient != nil {
		opts = append(opts, gl.WithHTTPClient(cfg.HTTPClient))
	}

	client, err := gl.NewClient(cfg.AccessToken, opts...)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	client.UserAgent = cfg.UserAgent
	if client.UserAgent == "" {
		client.UserAgent = defaultUserAgent
	}

	return &Provider{client: client}, nil
}

// BaseURL returns the API root requests are sent to.
func (p *Provider) BaseURL() string {
	return p.client.BaseURL().String()
}

// PullRequests lists the opened merge requests of the
// project, following pagination, sorted by iid.
func (p *Provider) PullRequests(
	ctx context.Context,
	ref git.SourceRef,
) ([]git.PullRequest, error) {
	const errCtx = "listing gitlab merge requests"

	pid, err := projectID(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	opt := &gl.ListProjectMergeRequestsOptions{
		ListOptions: gl.ListOptions{PerPage: perPage, Page: 1},
		State:       gl.Ptr(openedState),
	}
	prs := []git.PullRequest{}

	for {
		page, resp, err := p.client.MergeRequests.ListProjectMergeRequests(
			pid, opt, gl.WithContext(ctx),
		)
		if err != nil {
			return []git.PullRequest{}, wrap(errCtx, err)
		}

		for _, mr := range page {
			prs = append(prs, toPullRequest(mr, ref.URL))
		}

		if resp.NextPage == 0 {
			break
		}

		opt.Page = resp.NextPage
	}

	git.SortPullRequests(prs)

	return prs, nil
}

// PullRequest fetches a single merge request by iid.
func (p *Provider) PullRequest(
	ctx context.Context,
	ref git.SourceRef,
	number int,
) (*git.PullRequest, error) {
	const errCtx = "fetching gitlab merge request"

	pid, err := projectID(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	mr, _, err := p.client.MergeRequests.GetMergeRequest(
		pid, int64(number), nil, gl.WithContext(ctx),
	)
	if err != nil {
		return nil, wrap(errCtx, err)
	}

	out := toPullRequest(&mr.BasicMergeRequest, ref.URL)

	return &out, nil
}

// MergePullRequest accepts a merge request using
// message as the merge commit message.
func (p *Provider) MergePullRequest(
	ctx context.Context,
	ref git.SourceRef,
	number int,
	message string,
) (*git.MergeResult, error) {
	const errCtx = "merging gitlab merge request"

	pid, err := projectID(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	mr, _, err := p.client.MergeRequests.AcceptMergeRequest(
		pid,
		int64(number),
		&gl.AcceptMergeRequestOptions{
			MergeCommitMessage: &message,
		},
		gl.WithContext(ctx),
	)
	if err != nil {
		return nil, wrap(errCtx, err)
	}

	sha := mr.MergeCommitSHA
	if sha == "" {
		sha = mr.SHA
	}

	slog.Info(
		"merged merge request",
		"url", ref.URL,
		"iid", number,
		"sha", sha,
	)

	return &git.MergeResult{
		Merged:  mr.State == mergedState,
		SHA:     sha,
		Message: message,
	}, nil
}

// UpdateCommitStatus sets the build status of commit.
// Both failure and error map to GitLab's failed state.
func (p *Provider) UpdateCommitStatus(
	ctx context.Context,
	ref git.SourceRef,
	commit string,
	status git.CommitStatus,
) (*git.CommitStatus, error) {
	const errCtx = "updating gitlab commit status"

	pid, err := projectID(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	opt := &gl.SetCommitStatusOptions{
		State:       gl.BuildStateValue(toBuildState(status.State)),
		Name:        &status.Context,
		TargetURL:   &status.TargetURL,
		Description: &status.Description,
	}

	created, _, err := p.client.Commits.SetCommitStatus(
		pid, commit, opt, gl.WithContext(ctx),
	)
	if err != nil {
		return nil, wrap(errCtx, err)
	}

	return &git.CommitStatus{
		State:       fromBuildState(created.Status),
		TargetURL:   created.TargetURL,
		Description: created.Description,
		Context:     created.Name,
	}, nil
}

// RateLimit reads the quota from the RateLimit-*
// headers of a lightweight request. Instances without
// rate limiting send no headers and report
// errors.ErrUnsupported.
func (p *Provider) RateLimit(
	ctx context.Context,
) (*git.RateLimit, error) {
	const errCtx = "fetching gitlab rate limit"

	_, resp, err := p.client.Version.GetVersion(gl.WithContext(ctx))
	if err != nil {
		return nil, wrap(errCtx, err)
	}

	limit, err := strconv.Atoi(resp.Header.Get("RateLimit-Limit"))
	if err != nil {
		return nil, fmt.Errorf(
			"%s: no rate limit headers: %w",
			errCtx, errors.ErrUnsupported,
		)
	}

	remaining, err := strconv.Atoi(
		resp.Header.Get("RateLimit-Remaining"),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: remaining: %w", errCtx, err,
		)
	}

	rl := &git.RateLimit{Limit: limit, Remaining: remaining}

	if reset, err := strconv.ParseInt(
		resp.Header.Get("RateLimit-Reset"), 10, 64,
	); err == nil {
		rl.Reset = time.Unix(reset, 0)
	}

	return rl, nil
}

func projectID(ref git.SourceRef) (string, error) {
	u, err := git.ParseURL(ref.URL)
	if err != nil {
		return "", err
	}

	return u.Path(), nil
}

func toPullRequest(
	mr *gl.BasicMergeRequest,
	repoURL string,
) git.PullRequest {
	var user string
	if mr.Author != nil {
		user = mr.Author.Username
	}

	return git.PullRequest{
		Number:       int(mr.IID),
		Title:        mr.Title,
		Commit:       mr.SHA,
		ShortCommit:  git.ShortCommit(mr.SHA),
		MergeCommit:  mr.MergeCommitSHA,
		RemoteUser:   user,
		RemoteBranch: mr.SourceBranch,
		RepoURL:      repoURL,
	}
}

func toBuildState(s git.State) string {
	switch s {
	case git.StateSuccess:
		return "success"
	case git.StateFailure, git.StateError:
		return "failed"
	default:
		return "pending"
	}
}

func fromBuildState(s string) git.State {
	switch s {
	case "success":
		return git.StateSuccess
	case "failed":
		return git.StateFailure
	case "canceled", "skipped":
		return git.StateError
	default:
		return git.StatePending
	}
}

// wrap converts API error responses to *git.APIError
// and wraps everything else as is.
func wrap(errCtx string, err error) error {
	// The client library answers every 404 with its
	// ErrNotFound sentinel and drops the body.
	if errors.Is(err, gl.ErrNotFound) {
		slog.Warn(
			"gitlab api error",
			"status", http.StatusNotFound,
		)

		return fmt.Errorf("%s: %w", errCtx, &git.APIError{
			StatusCode: http.StatusNotFound,
			Message:    http.StatusText(http.StatusNotFound),
		})
	}

	var errResp *gl.ErrorResponse

	if errors.As(err, &errResp) && errResp.Response != nil {
		apiErr := &git.APIError{
			StatusCode: errResp.Response.StatusCode,
			Message:    errResp.Message,
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(apiErr.StatusCode)
		}

		slog.Warn(
			"gitlab api error",
			"status", apiErr.StatusCode,
			"message", apiErr.Message,
		)

		return fmt.Errorf("%s: %w", errCtx, apiErr)
	}

	return fmt.Errorf("%s: %w", errCtx, err)
}
