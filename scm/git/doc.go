// Package git prepares CI workspaces from git remotes and defines the
// strategy interface for talking to code hosting platforms.
//
// CheckoutCommand decides between a fresh clone and a pull of an existing
// clone. Repo.Checkout runs that command and, for a pull request, creates a
// local test branch and pulls the contributor's fork into it, recording every
// command in a CheckoutResult. Repo also answers history questions (log,
// compare, HEAD, remote heads) by parsing git output with ParseLog and
// ParseRemoteRefs.
//
// The Host interface abstracts pull requests, merges, commit statuses and
// rate limits. Implementations exist for GitHub, GitLab, and Bitbucket Server
// in sub-packages; API error payloads surface as *APIError.
package git
