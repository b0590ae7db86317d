package bitbucket_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/bobber/scm/git"
	bb "github.com/byte4ever/bobber/scm/git/bitbucket"
)

const (
	headSHA  = "0123456789abcdef0123456789abcdef01234567"
	mergeSHA = "89abcdef0123456789abcdef0123456789abcdef"
	prsPath  = "/rest/api/1.0/projects/PROJ/repos/app/pull-requests"
)

var ref = git.SourceRef{
	URL:    "https://bb.example.com/scm/PROJ/app.git",
	Branch: "master",
}

func newProvider(
	t *testing.T,
	h http.HandlerFunc,
) *bb.Provider {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	pv, err := bb.NewProvider(bb.Config{
		APIURL:   ts.URL,
		User:     "admin",
		Password: "secret",
	})
	require.NoError(t, err)

	return pv
}

func pullJSON(id int, owner string, branch string) map[string]any {
	return map[string]any{
		"id":      id,
		"version": 3,
		"title":   "change " + branch,
		"state":   "OPEN",
		"fromRef": map[string]any{
			"id":           "refs/heads/" + branch,
			"displayId":    branch,
			"latestCommit": headSHA,
			"repository": map[string]any{
				"slug": "app",
				"project": map[string]any{
					"key":   "~" + owner,
					"type":  "PERSONAL",
					"owner": map[string]any{"slug": owner},
				},
			},
		},
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, code int, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewProvider_missing_endpoint(t *testing.T) {
	t.Parallel()

	pv, err := bb.NewProvider(bb.Config{
		User:     "admin",
		Password: "secret",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "api url must be set")
}

func TestNewProvider_relative_endpoint(t *testing.T) {
	t.Parallel()

	pv, err := bb.NewProvider(bb.Config{APIURL: "bb.example.com"})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "must be absolute")
}

func TestNewProvider_missing_password(t *testing.T) {
	t.Parallel()

	pv, err := bb.NewProvider(bb.Config{
		APIURL: "https://bb.example.com",
		User:   "admin",
	})

	assert.Nil(t, pv)
	assert.ErrorContains(t, err, "password")
}

func TestNewProvider_anonymous(t *testing.T) {
	t.Parallel()

	pv, err := bb.NewProvider(bb.Config{APIURL: "https://bb.example.com/"})

	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestProvider_PullRequests_sorted_across_pages(t *testing.T) {
	t.Parallel()

	pv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, prsPath, r.URL.Path)
		assert.Equal(t, "OPEN", r.URL.Query().Get("state"))
		assert.Equal(t, "bobber", r.Header.Get("User-Agent"))

		user, pass, ok := r.BasicAuth()

		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)

		if r.URL.Query().Get("start") == "2" {
			writeJSON(t, w, http.StatusOK, map[string]any{
				"values":     []any{pullJSON(3, "carol", "docs")},
				"isLastPage": true,
			})

			return
		}

		writeJSON(t, w, http.StatusOK, map[string]any{
			"values": []any{
				pullJSON(5, "alice", "fix-bug"),
				pullJSON(1, "bob", "feature"),
			},
			"isLastPage":    false,
			"nextPageStart": 2,
		})
	})

	prs, err := pv.PullRequests(context.Background(), ref)

	require.NoError(t, err)
	require.Len(t, prs, 3)
	assert.Equal(t, 1, prs[0].Number)
	assert.Equal(t, 3, prs[1].Number)
	assert.Equal(t, 5, prs[2].Number)

	assert.Equal(t, git.PullRequest{
		Number:       5,
		Title:        "change fix-bug",
		Commit:       headSHA,
		ShortCommit:  "0123456",
		RemoteUser:   "~alice",
		RemoteBranch: "fix-bug",
		RepoURL:      ref.URL,
	}, prs[2])
}

func TestProvider_PullRequests_error_envelope(t *testing.T) {
	t.Parallel()

	pv := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{
			"errors": []any{
				map[string]any{
					"message": "Repository PROJ/app does not exist.",
				},
			},
		})
	})

	prs, err := pv.PullRequests(context.Background(), ref)

	assert.NotNil(t, prs)
	assert.Empty(t, prs)

	var apiErr *git.APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Repository PROJ/app does not exist.", apiErr.Message)
	assert.ErrorIs(t, err, git.ErrNotFound)
}

func TestProvider_PullRequest(t *testing.T) {
	t.Parallel()

	pv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, prsPath+"/7", r.URL.Path)

		pr := pullJSON(7, "alice", "fix-bug")
		pr["fromRef"].(map[string]any)["repository"] = map[string]any{
			"slug":    "app",
			"project": map[string]any{"key": "PROJ", "type": "NORMAL"},
		}
		writeJSON(t, w, http.StatusOK, pr)
	})

	pr, err := pv.PullRequest(context.Background(), ref, 7)

	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "PROJ", pr.RemoteUser)
	assert.Equal(t, "fix-bug", pr.RemoteBranch)
}

func TestProvider_PullRequest_plain_error(t *testing.T) {
	t.Parallel()

	pv := newProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	pr, err := pv.PullRequest(context.Background(), ref, 7)

	assert.Nil(t, pr)

	var apiErr *git.APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Unauthorized", apiErr.Message)
}

func TestProvider_MergePullRequest(t *testing.T) {
	t.Parallel()

	pv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case prsPath + "/7":
			writeJSON(t, w, http.StatusOK, pullJSON(7, "alice", "fix-bug"))

		case prsPath + "/7/merge":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "3", r.URL.Query().Get("version"))

			body, err := io.ReadAll(r.Body)

			assert.NoError(t, err)
			assert.JSONEq(t, `{"message":"merged by ci"}`, string(body))

			pr := pullJSON(7, "alice", "fix-bug")
			pr["state"] = "MERGED"
			pr["properties"] = map[string]any{
				"mergeCommit": map[string]any{"id": mergeSHA},
			}
			writeJSON(t, w, http.StatusOK, pr)

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	res, err := pv.MergePullRequest(
		context.Background(), ref, 7, "merged by ci",
	)

	require.NoError(t, err)
	assert.Equal(t, &git.MergeResult{
		Merged:  true,
		SHA:     mergeSHA,
		Message: "merged by ci",
	}, res)
}

func TestProvider_MergePullRequest_conflict(t *testing.T) {
	t.Parallel()

	pv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(t, w, http.StatusOK, pullJSON(7, "alice", "fix-bug"))

			return
		}

		writeJSON(t, w, http.StatusConflict, map[string]any{
			"errors": []any{
				map[string]any{"message": "has conflicts"},
				map[string]any{"message": "needs approval"},
			},
		})
	})

	res, err := pv.MergePullRequest(context.Background(), ref, 7, "m")

	assert.Nil(t, res)

	var apiErr *git.APIError

	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "has conflicts; needs approval", apiErr.Message)
}

func TestProvider_UpdateCommitStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state git.State
		wire  string
		back  git.State
	}{
		{state: git.StatePending, wire: "INPROGRESS", back: git.StatePending},
		{state: git.StateSuccess, wire: "SUCCESSFUL", back: git.StateSuccess},
		{state: git.StateFailure, wire: "FAILED", back: git.StateFailure},
		{state: git.StateError, wire: "FAILED", back: git.StateFailure},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			t.Parallel()

			pv := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(
					t,
					"/rest/build-status/1.0/commits/"+headSHA,
					r.URL.Path,
				)

				var body map[string]string

				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, tt.wire, body["state"])
				assert.Equal(t, "ci/bobber", body["key"])
				assert.Equal(t, "http://localhost:8080", body["url"])

				w.WriteHeader(http.StatusNoContent)
			})

			st, err := pv.UpdateCommitStatus(
				context.Background(),
				ref,
				headSHA,
				git.CommitStatus{
					State:       tt.state,
					TargetURL:   "http://localhost:8080",
					Description: "build",
					Context:     "ci/bobber",
				},
			)

			require.NoError(t, err)
			assert.Equal(t, &git.CommitStatus{
				State:       tt.back,
				TargetURL:   "http://localhost:8080",
				Description: "build",
				Context:     "ci/bobber",
			}, st)
		})
	}
}

func TestProvider_RateLimit_unsupported(t *testing.T) {
	t.Parallel()

	pv := newProvider(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})

	rl, err := pv.RateLimit(context.Background())

	assert.Nil(t, rl)
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}

func TestProvider_token_auth(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			writeJSON(t, w, http.StatusOK, map[string]any{
				"values":     []any{},
				"isLastPage": true,
			})
		},
	))
	t.Cleanup(ts.Close)

	pv, err := bb.NewProvider(bb.Config{APIURL: ts.URL, Token: "tok"})
	require.NoError(t, err)

	prs, err := pv.PullRequests(context.Background(), ref)

	require.NoError(t, err)
	assert.Empty(t, prs)
}
