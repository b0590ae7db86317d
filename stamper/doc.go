// Package stamper renders commit status fields and merge commit messages
// from format strings with single-brace {VAR} placeholders. Variables come
// from a source reference, a commit, a pull request, and optional "KEY VALUE"
// variable files read by LoadVars.
package stamper
