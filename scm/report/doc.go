// Package report encodes checkout results, commits, pull requests and other
// records for humans and scripts. JSON output is indented; YAML output uses
// the snake_case field names the records declare.
package report
