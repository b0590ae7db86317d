// Package gitlab implements git.Host on the GitLab REST API v4. Merge
// requests are mapped to pull requests: the iid becomes the number, the
// author's username the remote user and the source branch the remote branch.
package gitlab
