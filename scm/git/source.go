package git

import (
	"fmt"
	"slices"
	"strings"
)

const (
	schemeDelimiter = "://"
	userDelimiter   = "@"
	scpDelimiter    = ":"
	pathSeparator   = "/"
	gitSuffix       = ".git"
)

// SourceRef identifies a remote repository and the
// branch to check out.
type SourceRef struct {
	URL    string `json:"url"    yaml:"url"`
	Branch string `json:"branch" yaml:"branch"`
}

// RemoteURL is the parsed form of a repository URL.
// Both "scheme://[user@]host/org/repo" and the scp-like
// "user@host:org/repo" shapes are understood. Org and
// Repo are the last two path segments; anything before
// them is kept in Prefix.
type RemoteURL struct {
	Scheme string
	User   string
	Host   string
	Prefix string
	Org    string
	Repo   string
	// SCP is set for the "user@host:org/repo" shape.
	SCP bool
	// GitSuffix records a trailing ".git" stripped
	// from Repo.
	GitSuffix bool
}

// URLParseError reports a repository URL that does not
// have one of the supported shapes.
type URLParseError struct {
	Input  string
	Reason string
}

// Error describes the parse failure.
func (e *URLParseError) Error() string {
	return fmt.Sprintf(
		"parsing repository url %q: %s", e.Input, e.Reason,
	)
}

// ParseURL splits a repository URL into its parts.
func ParseURL(raw string) (RemoteURL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RemoteURL{}, &URLParseError{
			Input: raw, Reason: "empty url",
		}
	}

	var (
		u    RemoteURL
		path string
	)

	switch {
	case strings.Contains(trimmed, schemeDelimiter):
		scheme, rest, _ := strings.Cut(trimmed, schemeDelimiter)

		authority, p, found := strings.Cut(rest, pathSeparator)
		if !found {
			return RemoteURL{}, &URLParseError{
				Input: raw, Reason: "missing repository path",
			}
		}

		u.Scheme = scheme

		if user, host, ok := strings.Cut(
			authority, userDelimiter,
		); ok {
			u.User = user
			u.Host = host
		} else {
			u.Host = authority
		}

		path = p

	case strings.Contains(trimmed, userDelimiter):
		user, rest, _ := strings.Cut(trimmed, userDelimiter)

		host, p, found := strings.Cut(rest, scpDelimiter)
		if !found {
			return RemoteURL{}, &URLParseError{
				Input: raw, Reason: "missing ':' after host",
			}
		}

		u.User = user
		u.Host = host
		u.SCP = true
		path = p

	default:
		return RemoteURL{}, &URLParseError{
			Input: raw, Reason: "unsupported url shape",
		}
	}

	segments := strings.Split(
		strings.Trim(path, pathSeparator), pathSeparator,
	)
	if len(segments) < 2 || slices.Contains(segments, "") {
		return RemoteURL{}, &URLParseError{
			Input: raw, Reason: "expected org/repo path",
		}
	}

	n := len(segments)
	u.Prefix = strings.Join(segments[:n-2], pathSeparator)
	u.Org = segments[n-2]
	u.Repo = segments[n-1]

	if strings.HasSuffix(u.Repo, gitSuffix) {
		u.Repo = strings.TrimSuffix(u.Repo, gitSuffix)
		u.GitSuffix = true
	}

	if u.Host == "" || u.Repo == "" {
		return RemoteURL{}, &URLParseError{
			Input: raw, Reason: "missing host or repository",
		}
	}

	return u, nil
}

// Path returns the repository path without host and
// ".git" suffix, e.g. "group/sub/repo".
func (u RemoteURL) Path() string {
	if u.Prefix == "" {
		return u.Org + pathSeparator + u.Repo
	}

	return u.Prefix + pathSeparator + u.Org + pathSeparator + u.Repo
}

// String formats the URL back into the shape it was
// parsed from.
func (u RemoteURL) String() string {
	path := u.Path()
	if u.GitSuffix {
		path += gitSuffix
	}

	if u.SCP {
		return u.User + userDelimiter + u.Host +
			scpDelimiter + path
	}

	authority := u.Host
	if u.User != "" {
		authority = u.User + userDelimiter + u.Host
	}

	return u.Scheme + schemeDelimiter + authority +
		pathSeparator + path
}

// ForkURL returns the URL of user's fork of the
// repository at raw: the org segment is replaced by
// user, everything else is kept.
func ForkURL(raw string, user string) (string, error) {
	const errCtx = "building fork url"

	u, err := ParseURL(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	u.Org = user

	return u.String(), nil
}
