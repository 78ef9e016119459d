// Package sanitize keeps user supplied text fields free of markup. Text is
// stored as submitted; input the strict policy would alter is rejected rather
// than silently rewritten.
package sanitize

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ErrMarkup reports text that contains HTML elements or comments.
var ErrMarkup = errors.New("must be plain text")

var strict = bluemonday.StrictPolicy()

// Text trims s and returns ErrMarkup when the strict policy would drop any
// part of it. A bare "<" or ">" that opens no element is kept, so "a < b"
// passes while "a<b" (an unterminated tag to an HTML parser) does not.
func Text(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if html.UnescapeString(strict.Sanitize(s)) != html.UnescapeString(s) {
		return s, ErrMarkup
	}
	return s, nil
}

// Fields checks several inputs in turn and remembers the first that failed.
type Fields struct {
	bad string
}

// Text returns the trimmed value of field.
func (f *Fields) Text(field, s string) string {
	clean, err := Text(s)
	if err != nil && f.bad == "" {
		f.bad = field
	}
	return clean
}

// Err names the first field carrying markup, wrapping ErrMarkup.
func (f *Fields) Err() error {
	if f.bad == "" {
		return nil
	}
	return fmt.Errorf("%s %w", f.bad, ErrMarkup)
}
