package report

import (
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
)

// Format is an output encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a textual format name. The
// match is case insensitive; "yml" is accepted.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Write encodes v to w in format.
func Write(w io.Writer, format Format, v any) error {
	const errCtx = "writing report"

	var (
		buf []byte
		err error
	)

	switch format {
	case FormatJSON:
		buf, err = json.MarshalIndent(v, "", "  ")
		if err == nil {
			buf = append(buf, '\n')
		}
	case FormatYAML:
		buf, err = yaml.Marshal(v)
	default:
		return fmt.Errorf(
			"%s: unknown output format %q", errCtx, format,
		)
	}

	if err != nil {
		return fmt.Errorf(
			"%s: encoding %s: %w", errCtx, format, err,
		)
	}

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
