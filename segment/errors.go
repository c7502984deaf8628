package segment

import (
	"errors"
	"fmt"
)

// ErrMalformedKey is returned when a segment or archive key cannot be parsed.
var ErrMalformedKey = errors.New("malformed key")

// ParseError reports a malformed record in a line-oriented input file.
type ParseError struct {
	Source string // file name or stream description
	Line   int    // 1-based
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed record at line %d (%s): %q", e.Source, e.Line, e.Reason, e.Text)
}
