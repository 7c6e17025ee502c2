// Package sanitize normalizes untrusted client-supplied filenames into
// safe on-disk names.
package sanitize

import (
	"errors"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidName is returned when nothing safe is left of a filename
// after sanitization.
var ErrInvalidName = errors.New("sanitize: invalid filename")

// Name maps a raw client-supplied filename to a safe on-disk name.
//
// Directory components are discarded (both slash styles), the remainder is
// NFKC-normalized so visually identical sequences collapse to one byte
// sequence, whitespace runs become a single underscore, and anything outside
// letters, digits, '.', '_' and '-' is dropped. Leading dots are stripped so
// the result can never be a dotfile or a ".." segment.
//
// Name is pure and idempotent: Name(Name(x)) == Name(x) for every input
// that sanitizes successfully.
func Name(raw string) (string, error) {
	// Strip directory components regardless of the client's OS. Windows
	// browsers may send backslash-separated paths even to a Unix host.
	base := path.Base(strings.ReplaceAll(raw, `\`, "/"))
	if base == "." || base == ".." || base == "/" {
		return "", ErrInvalidName
	}

	base = norm.NFKC.String(base)

	var b strings.Builder
	b.Grow(len(base))
	space := false
	for _, r := range base {
		switch {
		case unicode.IsSpace(r):
			space = true
		case r == '.' || r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte('_')
			}
			space = false
			b.WriteRune(r)
		default:
			// Dropped: path separators, control characters, punctuation
			// outside the allow-list.
		}
	}

	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "", ErrInvalidName
	}
	return out, nil
}
