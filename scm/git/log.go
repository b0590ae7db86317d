package git

import (
	"strings"
)

const (
	logFieldSeparator = "---"
	logFieldCount     = 5
	shortCommitLength = 7
	// logFormat asks git for one commit per line:
	// sha, author name, <author email>, author date
	// (ISO-like), subject.
	logFormat = "--pretty=format:%H---%an---<%ae>---%ai---%s"
)

// Commit is one entry of a commit log.
type Commit struct {
	Commit      string `json:"commit"       yaml:"commit"`
	ShortCommit string `json:"short_commit" yaml:"short_commit"`
	AuthorName  string `json:"author_name"  yaml:"author_name"`
	// AuthorEmail is the bare address: the angle
	// brackets git prints around it are removed, so
	// "<alice@example.com>" becomes "alice@example.com".
	AuthorEmail string `json:"author_email" yaml:"author_email"`
	// AuthorDate is "YYYY-MM-DD HH:MM:SS"; the zone
	// offset is dropped.
	AuthorDate string `json:"author_date" yaml:"author_date"`
	Message    string `json:"message"     yaml:"message"`
}

// ParseLog parses output produced with logFormat into
// commits, in input order. Lines that do not carry all
// five fields are skipped. Empty input yields an empty
// slice.
func ParseLog(out string) []Commit {
	commits := make([]Commit, 0)

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.SplitN(
			line, logFieldSeparator, logFieldCount,
		)
		if len(fields) < logFieldCount {
			continue
		}

		commits = append(commits, parseLogFields(fields))
	}

	return commits
}

func parseLogFields(fields []string) Commit {
	sha := strings.TrimSpace(fields[0])
	msg := fields[4]

	// A format string quoted for a shell leaves its
	// quotes around the line.
	for _, q := range []string{`"`, "'"} {
		if strings.HasPrefix(sha, q) {
			sha = strings.TrimPrefix(sha, q)
			msg = strings.TrimSuffix(msg, q)

			break
		}
	}

	email := strings.TrimSuffix(
		strings.TrimPrefix(fields[2], "<"), ">",
	)

	return Commit{
		Commit:      sha,
		ShortCommit: ShortCommit(sha),
		AuthorName:  fields[1],
		AuthorEmail: email,
		AuthorDate:  dateAndTime(fields[3]),
		Message:     msg,
	}
}

// dateAndTime keeps the first two space separated
// tokens of a "date time zone" value.
func dateAndTime(value string) string {
	parts := strings.Fields(value)
	if len(parts) < 2 {
		return strings.Join(parts, " ")
	}

	return parts[0] + " " + parts[1]
}

// ShortCommit returns the seven character display
// prefix of a commit id.
func ShortCommit(sha string) string {
	if len(sha) <= shortCommitLength {
		return sha
	}

	return sha[:shortCommitLength]
}
