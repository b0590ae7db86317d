// Package bitbucket implements git.Host on the Bitbucket Server REST API
// 1.0. Build statuses go through the build-status API; Bitbucket Server has
// no rate limit endpoint, so RateLimit reports errors.ErrUnsupported.
package bitbucket
