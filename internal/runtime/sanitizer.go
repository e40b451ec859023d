package runtime

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/agentwright/pkg/domain"
)

// DefaultMaxInputSize is the largest user message accepted, in bytes.
const DefaultMaxInputSize = 4096

// SanitizeInput validates a user message before it enters the conversation
// state. Oversized or malformed input is rejected, never truncated. CRLF line
// endings become LF and control characters other than newline and tab are
// dropped, so a message persists identically whatever terminal typed it.
func SanitizeInput(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxInputSize
	}
	if n := len(input); n > limit {
		return "", fmt.Errorf("%w: %d bytes, limit %d", domain.ErrInputTooLarge, n, limit)
	}
	if !utf8.ValidString(input) {
		return "", domain.ErrInvalidUTF8
	}

	input = strings.ReplaceAll(input, "\r\n", "\n")
	if strings.IndexFunc(input, unwantedRune) < 0 {
		return input, nil
	}
	return strings.Map(func(r rune) rune {
		if unwantedRune(r) {
			return -1
		}
		return r
	}, input), nil
}

func unwantedRune(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t'
}
