// Package validate guards the boundary between the QR decoder and the
// external field parser: every decoded payload passes through Validate
// before any downstream use.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength bounds decoded payloads when the caller passes no limit.
const DefaultMaxLength = 2048

// Kind classifies a validation failure.
type Kind int

const (
	KindTooLong Kind = iota + 1
	KindInvalidEncoding
	KindControlCharacters
	KindDisallowedCharacters
)

func (k Kind) String() string {
	switch k {
	case KindTooLong:
		return "TOO_LONG"
	case KindInvalidEncoding:
		return "INVALID_ENCODING"
	case KindControlCharacters:
		return "CONTROL_CHARACTERS"
	case KindDisallowedCharacters:
		return "DISALLOWED_CHARACTERS"
	}
	return "UNKNOWN"
}

// Error is a validation failure with its kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validate: %s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// allowedText is the fixed payload allowlist: word characters,
// whitespace, Latin-1 supplement letters, and a fixed punctuation and
// symbol set. It is a single authoritative constant, not configurable
// per call site. Markup characters (& < > " ' /) are allowed here and
// neutralized by Sanitize afterwards.
var allowedText = regexp.MustCompile(`^[\w\s` +
	"À-ÖØ-öø-ÿ" +
	`.,;:!?@#%&*+='"/\\()\[\]{}<>` +
	"$€£¥°ºª§~^|-]*$")

// Validate checks length, encoding, and character-class constraints on
// a decoded payload and, on success, returns its sanitized form.
// maxLength <= 0 means DefaultMaxLength. The length limit counts runes.
func Validate(text string, maxLength int) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if n := utf8.RuneCountInString(text); n > maxLength {
		return "", newError(KindTooLong, "%d characters exceeds limit of %d", n, maxLength)
	}
	if !utf8.ValidString(text) {
		return "", newError(KindInvalidEncoding, "text is not valid UTF-8")
	}
	// Tab, LF and CR are tolerated; every other ASCII control byte is not.
	for i := 0; i < len(text); i++ {
		b := text[i]
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			return "", newError(KindControlCharacters, "control byte 0x%02X at offset %d", b, i)
		}
	}
	if !allowedText.MatchString(text) {
		return "", newError(KindDisallowedCharacters, "text contains characters outside the allowlist")
	}
	return Sanitize(text), nil
}

// ValidateBytes validates a raw decoded payload. Invalid UTF-8 input is
// an encoding failure rather than a panic further down.
func ValidateBytes(b []byte, maxLength int) (string, error) {
	if !utf8.Valid(b) {
		return "", newError(KindInvalidEncoding, "payload is not valid UTF-8")
	}
	return Validate(string(b), maxLength)
}

// sanitizeOrder is applied strictly in order: the ampersand rule must
// run first so entities produced by later rules are not double-escaped.
var sanitizeOrder = [...][2]string{
	{"&", "&amp;"},
	{"<", "&lt;"},
	{">", "&gt;"},
	{`"`, "&quot;"},
	{"'", "&#39;"},
	{"/", "&#x2F;"},
}

// Sanitize returns a markup-safe copy of text. It never fails, but it
// is not idempotent: re-applying it to its own output double-escapes.
// Call it at most once per raw string.
func Sanitize(text string) string {
	for _, sub := range sanitizeOrder {
		text = strings.ReplaceAll(text, sub[0], sub[1])
	}
	return text
}
