package engine

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input limits.
const (
	maxUserIDLen  = 128
	maxMessageLen = 4000 // runes
)

// ErrInvalidUser is returned for an empty or malformed user id.
var ErrInvalidUser = errors.New("invalid user id")

// validUserIDChar reports whether r may appear in a user id. Chat platforms
// use numeric snowflakes or handles, so letters, digits and a few separators
// cover them.
func validUserIDChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' || r == ':' || r == '@'
}

// NormalizeUserID trims id and rejects it if it is empty, too long, or
// contains characters outside validUserIDChar.
func NormalizeUserID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxUserIDLen {
		return "", ErrInvalidUser
	}
	for _, r := range id {
		if !validUserIDChar(r) {
			return "", ErrInvalidUser
		}
	}
	return id, nil
}

// normalizeMessage strips invalid UTF-8 and control characters other than
// newlines and tabs, and truncates to maxMessageLen runes. Empty input stays
// empty and scores as neutral.
func normalizeMessage(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	var b strings.Builder
	n := 0
	for _, r := range text {
		if n >= maxMessageLen {
			break
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}
