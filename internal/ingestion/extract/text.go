package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/helpdeck/helpdeck/internal/domain"
)

// TextExtractor handles plain text and markdown payloads. Markdown syntax is
// left in place; it chunks and embeds fine as-is.
type TextExtractor struct{}

func (e *TextExtractor) Extract(data []byte) (Result, error) {
	text := sanitizeUTF8(strings.TrimSpace(string(data)))
	if text == "" {
		return Result{}, domain.IngestionError("file has no extractable text", nil)
	}

	return Result{Text: text}, nil
}

// sanitizeUTF8 drops invalid byte sequences and control characters that
// upset downstream stores.
func sanitizeUTF8(s string) string {
	if s == "" {
		return s
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
