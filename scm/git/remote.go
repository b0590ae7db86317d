package git

import "strings"

const headsMarker = "refs/heads/"

// RemoteRef is one branch head advertised by a remote.
type RemoteRef struct {
	Commit string `json:"commit" yaml:"commit"`
	Branch string `json:"branch" yaml:"branch"`
}

// ParseRemoteRefs parses "git ls-remote --heads" output,
// one "<commit>\trefs/heads/<branch>" pair per line, in
// listing order. Lines without a branch head are
// skipped.
func ParseRemoteRefs(out string) []RemoteRef {
	refs := make([]RemoteRef, 0)

	for _, line := range strings.Split(out, "\n") {
		commit, branch, found := strings.Cut(line, headsMarker)
		if !found {
			continue
		}

		refs = append(refs, RemoteRef{
			Commit: strings.TrimSpace(commit),
			Branch: strings.TrimSpace(branch),
		})
	}

	return refs
}

// FindRemoteCommit returns the commit of the first head
// named branch, and false when there is none.
func FindRemoteCommit(out string, branch string) (string, bool) {
	for _, ref := range ParseRemoteRefs(out) {
		if ref.Branch == branch {
			return ref.Commit, true
		}
	}

	return "", false
}

// RemoteBranches returns the branch names of a listing
// in listing order.
func RemoteBranches(out string) []string {
	refs := ParseRemoteRefs(out)

	branches := make([]string, 0, len(refs))
	for _, ref := range refs {
		branches = append(branches, ref.Branch)
	}

	return branches
}
