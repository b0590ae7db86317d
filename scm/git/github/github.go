package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/bobber/scm/git"
)

const (
	defaultAPIURL    = "https://api.github.com/"
	defaultUserAgent = "bobber"
	perPage          = 100
)

// Config holds the settings needed to talk to the
// GitHub API.
type Config struct {
	// APIURL overrides the REST API base URL. Leave
	// empty for api.github.com.
	APIURL string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Ignored
	// when APIURL is set.
	EnterpriseHost string
	// Token is a personal access token. Optional:
	// anonymous requests are subject to lower limits.
	Token string
	// UserAgent is sent with every request. Defaults
	// to "bobber".
	UserAgent string
	// HTTPClient is the transport. Optional.
	HTTPClient *http.Client
}

// Provider is the GitHub implementation of git.Host.
//
// Pattern: Strategy -- implements git.Host.
type Provider struct {
	client *gh.Client
}

var _ git.Host = (*Provider)(nil)

// NewProvider validates cfg and returns a Provider
// ready to issue API requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	client := gh.NewClient(cfg.HTTPClient)

	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}

	switch {
	case cfg.APIURL != "":
		raw := cfg.APIURL
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}

		base, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: api url: %w", errCtx, err,
			)
		}

		if base.Scheme == "" || base.Host == "" {
			return nil, fmt.Errorf(
				"%s: api url %q must be absolute",
				errCtx, cfg.APIURL,
			)
		}

		client.BaseURL = base

	case cfg.EnterpriseHost != "":
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	client.UserAgent = cfg.UserAgent
	if client.UserAgent == "" {
		client.UserAgent = defaultUserAgent
	}

	return &Provider{client: client}, nil
}

// BaseURL returns the API root requests are sent to.
func (p *Provider) BaseURL() string {
	return p.client.BaseURL.String()
}

// PullRequests lists the open pull requests of the
// repository, following pagination, sorted by number.
func (p *Provider) PullRequests(
	ctx context.Context,
	ref git.SourceRef,
) ([]git.PullRequest, error) {
	const errCtx = "listing github pull requests"

	u, err := git.ParseURL(ref.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	opts := &gh.PullRequestListOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	prs := []git.PullRequest{}

	for {
		page, resp, err := p.client.PullRequests.List(
			ctx, u.Org, u.Repo, opts,
		)
		if err != nil {
			return []git.PullRequest{}, wrap(errCtx, err)
		}

		for _, pr := range page {
			prs = append(prs, toPullRequest(pr, ref.URL))
		}

		if resp.NextPage == 0 {
			break
		}

		opts.Page = resp.NextPage
	}

	git.SortPullRequests(prs)

	return prs, nil
}

// PullRequest fetches a single pull request.
func (p *Provider) PullRequest(
	ctx context.Context,
	ref git.SourceRef,
	number int,
) (*git.PullRequest, error) {
	const errCtx = "fetching github pull request"

	u, err := git.ParseURL(ref.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	pr, _, err := p.client.PullRequests.Get(
		ctx, u.Org, u.Repo, number,
	)
	if err != nil {
		return nil, wrap(errCtx, err)
	}

	out := toPullRequest(pr, ref.URL)

	return &out, nil
}

// MergePullRequest merges a pull request using
// message as the commit message.
func (p *Provider) MergePullRequest(
	ctx context.Context,
	ref git.SourceRef,
	number int,
	message string,
) (*git.MergeResult, error) {
	const errCtx = "merging github pull request"

	u, err := git.ParseURL(ref.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	res, _, err := p.client.PullRequests.Merge(
		ctx, u.Org, u.Repo, number, message, nil,
	)
	if err != nil {
		return nil, wrap(errCtx, err)
	}

	slog.Info(
		"merged pull request",
		"repo", u.Org+"/"+u.Repo,
		"number", number,
		"sha", res.GetSHA(),
	)

	return &git.MergeResult{
		Merged:  res.GetMerged(),
		SHA:     res.GetSHA(),
		Message: res.GetMessage(),
	}, nil
}

// UpdateCommitStatus creates a status for commit.
func (p *Provider) UpdateCommitStatus(
	ctx context.Context,
	ref git.SourceRef,
	commit string,
	status git.CommitStatus,
) (*git.CommitStatus, error) {
	const errCtx = "updating github commit status"

	u, err := git.ParseURL(ref.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	state := string(status.State)

	created, _, err := p.client.Repositories.CreateStatus(
		ctx,
		u.Org,
		u.Repo,
		commit,
		&gh.RepoStatus{
			State:       &state,
			TargetURL:   &status.TargetURL,
			Description: &status.Description,
			Context:     &status.Context,
		},
	)
	if err != nil {
		return nil, wrap(errCtx, err)
	}

	return &git.CommitStatus{
		State:       git.State(created.GetState()),
		TargetURL:   created.GetTargetURL(),
		Description: created.GetDescription(),
		Context:     created.GetContext(),
	}, nil
}

// RateLimit returns the core API quota.
func (p *Provider) RateLimit(
	ctx context.Context,
) (*git.RateLimit, error) {
	const errCtx = "fetching github rate limit"

	limits, _, err := p.client.RateLimit.Get(ctx)
	if err != nil {
		return nil, wrap(errCtx, err)
	}

	core := limits.GetCore()
	if core == nil {
		return nil, fmt.Errorf(
			"%s: response has no core quota", errCtx,
		)
	}

	return &git.RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     core.Reset.Time,
	}, nil
}

// toPullRequest maps the API record. The head label is
// "user:branch".
func toPullRequest(
	pr *gh.PullRequest,
	repoURL string,
) git.PullRequest {
	head := pr.GetHead()
	user, branch, _ := strings.Cut(head.GetLabel(), ":")
	sha := head.GetSHA()

	return git.PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Commit:       sha,
		ShortCommit:  git.ShortCommit(sha),
		MergeCommit:  pr.GetMergeCommitSHA(),
		RemoteUser:   user,
		RemoteBranch: branch,
		RepoURL:      repoURL,
	}
}

// wrap converts API error envelopes to *git.APIError
// and wraps everything else as is.
func wrap(errCtx string, err error) error {
	if apiErr := apiError(err); apiErr != nil {
		slog.Warn(
			"github api error",
			"status", apiErr.StatusCode,
			"message", apiErr.Message,
		)

		return fmt.Errorf("%s: %w", errCtx, apiErr)
	}

	return fmt.Errorf("%s: %w", errCtx, err)
}

func apiError(err error) *git.APIError {
	var (
		errResp  *gh.ErrorResponse
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
		resp     *http.Response
		message  string
	)

	switch {
	case errors.As(err, &errResp):
		resp, message = errResp.Response, errResp.Message
	case errors.As(err, &rateErr):
		resp, message = rateErr.Response, rateErr.Message
	case errors.As(err, &abuseErr):
		resp, message = abuseErr.Response, abuseErr.Message
	default:
		return nil
	}

	if resp == nil {
		return nil
	}

	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return &git.APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
