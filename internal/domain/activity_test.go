package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateActivityError(t *testing.T) {
	t.Run("short message passes through", func(t *testing.T) {
		assert.Equal(t, "connection refused", TruncateActivityError("connection refused"))
	})

	t.Run("at cap passes through", func(t *testing.T) {
		msg := strings.Repeat("x", MaxActivityErrorLen)
		assert.Equal(t, msg, TruncateActivityError(msg))
	})

	t.Run("long ascii trimmed to cap", func(t *testing.T) {
		msg := strings.Repeat("x", MaxActivityErrorLen+100)
		got := TruncateActivityError(msg)
		assert.Len(t, got, MaxActivityErrorLen)
	})

	t.Run("multibyte rune not split", func(t *testing.T) {
		// 3-byte runes: the cap lands mid-rune unless the cut backs up.
		msg := strings.Repeat("✓", 200)
		got := TruncateActivityError(msg)

		assert.True(t, utf8.ValidString(got))
		assert.LessOrEqual(t, len(got), MaxActivityErrorLen)
		assert.True(t, strings.HasPrefix(msg, got))
	})
}
