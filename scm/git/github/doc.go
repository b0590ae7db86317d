// Package github implements git.Host on the GitHub REST API (cloud or
// enterprise). Configure with a Config holding an optional API base URL
// override, access token and user agent. Set EnterpriseHost for GitHub
// Enterprise installations.
package github
