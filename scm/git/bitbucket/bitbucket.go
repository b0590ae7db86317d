package bitbucket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/bobber/scm/git"
)

const (
	defaultUserAgent = "bobber"
	pageLimit        = 100
	stateMerged      = "MERGED"
	personalProject  = "PERSONAL"
)

// Config holds the settings needed to talk to a
// Bitbucket Server instance.
type Config struct {
	// APIURL is the base URL of the server
	// (e.g. "https://bb.example.com").
	APIURL string
	// User is the Bitbucket API username. Optional.
	User string
	// Password is the password (or personal access
	// token) of User.
	Password string
	// Token is an HTTP access token sent as a bearer
	// token. Ignored when User is set.
	Token string
	// UserAgent is sent with every request. Defaults
	// to "bobber".
	UserAgent string
	// HTTPClient is the transport. Optional.
	HTTPClient *http.Client
}

// Provider is the Bitbucket Server implementation of
// git.Host. The project key and repository slug come
// from the last two segments of the source URL.
//
// Pattern: Strategy -- implements git.Host.
type Provider struct {
	base      *url.URL
	user      string
	password  string
	token     string
	userAgent string
	client    *http.Client
}

var _ git.Host = (*Provider)(nil)

type project struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Owner *user  `json:"owner"`
}

type repository struct {
	Slug    string  `json:"slug"`
	Project project `json:"project"`
}

type pullrequestEndpoint struct {
	ID           string     `json:"id"`
	DisplayID    string     `json:"displayId"`
	LatestCommit string     `json:"latestCommit"`
	Repository   repository `json:"repository"`
}

type user struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type account struct {
	User user `json:"user"`
}

type mergeCommit struct {
	ID string `json:"id"`
}

type properties struct {
	MergeCommit *mergeCommit `json:"mergeCommit"`
}

type pullrequest struct {
	ID         int                 `json:"id"`
	Version    int                 `json:"version"`
	Title      string              `json:"title"`
	State      string              `json:"state"`
	FromRef    pullrequestEndpoint `json:"fromRef"`
	ToRef      pullrequestEndpoint `json:"toRef"`
	Author     account             `json:"author"`
	Properties properties          `json:"properties"`
}

type pullrequestPage struct {
	Values        []pullrequest `json:"values"`
	IsLastPage    bool          `json:"isLastPage"`
	NextPageStart int           `json:"nextPageStart"`
}

type mergeRequest struct {
	Message string `json:"message,omitempty"`
}

type buildStatus struct {
	State       string `json:"state"`
	Key         string `json:"key"`
	Name        string `json:"name,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type errorEnvelope struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewProvider validates cfg and returns a Provider
// ready to issue API requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating bitbucket provider"

	if cfg.APIURL == "" {
		return nil, fmt.Errorf(
			"%s: api url must be set",
			errCtx,
		)
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/"))
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

	if cfg.User != "" && cfg.Password == "" {
		return nil, fmt.Errorf(
			"%s: password must be set", errCtx,
		)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Provider{
		base:      base,
		user:      cfg.User,
		password:  cfg.Password,
		token:     cfg.Token,
		userAgent: ua,
		client:    client,
	}, nil
}

// PullRequests lists the open pull requests of the
// repository, following pagination, sorted by id.
func (p *Provider) PullRequests(
	ctx context.Context,
	ref git.SourceRef,
) ([]git.PullRequest, error) {
	const errCtx = "listing bitbucket pull requests"

	path, err := pullRequestsPath(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	prs := []git.PullRequest{}
	start := 0

	for {
		query := url.Values{
			"state": {"OPEN"},
			"start": {strconv.Itoa(start)},
			"limit": {strconv.Itoa(pageLimit)},
		}

		var page pullrequestPage

		if err := p.do(
			ctx, http.MethodGet, path, query, nil, &page,
		); err != nil {
			return []git.PullRequest{}, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		for i := range page.Values {
			prs = append(prs, toPullRequest(&page.Values[i], ref.URL))
		}

		if page.IsLastPage || page.NextPageStart <= start {
			break
		}

		start = page.NextPageStart
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
	const errCtx = "fetching bitbucket pull request"

	pr, err := p.fetch(ctx, ref, number)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	out := toPullRequest(pr, ref.URL)

	return &out, nil
}

// MergePullRequest merges a pull request. The current
// version of the pull request is fetched first since
// the server rejects merges of stale versions.
func (p *Provider) MergePullRequest(
	ctx context.Context,
	ref git.SourceRef,
	number int,
	message string,
) (*git.MergeResult, error) {
	const errCtx = "merging bitbucket pull request"

	current, err := p.fetch(ctx, ref, number)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	path, err := pullRequestsPath(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var merged pullrequest

	if err := p.do(
		ctx,
		http.MethodPost,
		path+"/"+strconv.Itoa(number)+"/merge",
		url.Values{"version": {strconv.Itoa(current.Version)}},
		&mergeRequest{Message: message},
		&merged,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var sha string
	if mc := merged.Properties.MergeCommit; mc != nil {
		sha = mc.ID
	}

	slog.Info(
		"merged pull request",
		"url", ref.URL,
		"number", number,
		"sha", sha,
	)

	return &git.MergeResult{
		Merged:  merged.State == stateMerged,
		SHA:     sha,
		Message: message,
	}, nil
}

// UpdateCommitStatus posts a build status for commit.
// Both failure and error map to FAILED.
func (p *Provider) UpdateCommitStatus(
	ctx context.Context,
	_ git.SourceRef,
	commit string,
	status git.CommitStatus,
) (*git.CommitStatus, error) {
	const errCtx = "updating bitbucket build status"

	wire := toBuildState(status.State)

	if err := p.do(
		ctx,
		http.MethodPost,
		"rest/build-status/1.0/commits/"+commit,
		nil,
		&buildStatus{
			State:       wire,
			Key:         status.Context,
			Name:        status.Context,
			URL:         status.TargetURL,
			Description: status.Description,
		},
		nil,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	recorded := status
	recorded.State = fromBuildState(wire)

	return &recorded, nil
}

// RateLimit is not exposed by Bitbucket Server.
func (*Provider) RateLimit(context.Context) (*git.RateLimit, error) {
	return nil, fmt.Errorf(
		"fetching bitbucket rate limit: %w",
		errors.ErrUnsupported,
	)
}

func (p *Provider) fetch(
	ctx context.Context,
	ref git.SourceRef,
	number int,
) (*pullrequest, error) {
	path, err := pullRequestsPath(ref)
	if err != nil {
		return nil, err
	}

	var pr pullrequest

	if err := p.do(
		ctx,
		http.MethodGet,
		path+"/"+strconv.Itoa(number),
		nil,
		nil,
		&pr,
	); err != nil {
		return nil, err
	}

	return &pr, nil
}

// do sends one request. A non-nil body is encoded as
// JSON; a non-nil out receives the decoded response.
// Non-2xx responses become *git.APIError.
func (p *Provider) do(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body any,
	out any,
) error {
	u := p.base.JoinPath(path)
	u.RawQuery = query.Encode()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(
		ctx, method, u.String(), reader,
	)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	if body != nil {
		req.Header.Set(
			"Content-Type",
			"application/json; charset=utf-8",
		)
	}

	switch {
	case p.user != "":
		req.SetBasicAuth(p.user, p.password)
	case p.token != "":
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp.StatusCode, rb)

		slog.Warn(
			"bitbucket api error",
			"status", apiErr.StatusCode,
			"message", apiErr.Message,
		)

		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(rb)) == 0 {
		return nil
	}

	if err := json.Unmarshal(rb, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func decodeError(code int, body []byte) *git.APIError {
	apiErr := &git.APIError{StatusCode: code}

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}

		apiErr.Message = strings.Join(msgs, "; ")
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(code)
	}

	return apiErr
}

func pullRequestsPath(ref git.SourceRef) (string, error) {
	u, err := git.ParseURL(ref.URL)
	if err != nil {
		return "", err
	}

	return "rest/api/1.0/projects/" + u.Org +
		"/repos/" + u.Repo + "/pull-requests", nil
}

func toPullRequest(
	pr *pullrequest,
	repoURL string,
) git.PullRequest {
	from := pr.FromRef

	var mergeSHA string
	if mc := pr.Properties.MergeCommit; mc != nil {
		mergeSHA = mc.ID
	}

	return git.PullRequest{
		Number:       pr.ID,
		Title:        pr.Title,
		Commit:       from.LatestCommit,
		ShortCommit:  git.ShortCommit(from.LatestCommit),
		MergeCommit:  mergeSHA,
		RemoteUser:   sourceOwner(from.Repository.Project),
		RemoteBranch: from.DisplayID,
		RepoURL:      repoURL,
	}
}

// sourceOwner returns the path segment the source
// repository lives under: "~slug" for personal forks,
// the project key otherwise.
func sourceOwner(pj project) string {
	if pj.Type == personalProject && pj.Owner != nil {
		return "~" + pj.Owner.Slug
	}

	return pj.Key
}

func toBuildState(s git.State) string {
	switch s {
	case git.StateSuccess:
		return "SUCCESSFUL"
	case git.StateFailure, git.StateError:
		return "FAILED"
	default:
		return "INPROGRESS"
	}
}

func fromBuildState(s string) git.State {
	switch s {
	case "SUCCESSFUL":
		return git.StateSuccess
	case "FAILED":
		return git.StateFailure
	default:
		return git.StatePending
	}
}
