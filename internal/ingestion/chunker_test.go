package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Split(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		overlap  int
		content  string
		expected []string
	}{
		{
			name:     "empty content",
			size:     10,
			overlap:  2,
			content:  "",
			expected: nil,
		},
		{
			name:     "whitespace only",
			size:     10,
			overlap:  2,
			content:  "   \n\t  ",
			expected: nil,
		},
		{
			name:     "content shorter than chunk size",
			size:     100,
			overlap:  10,
			content:  "short text",
			expected: []string{"short text"},
		},
		{
			name:     "exact boundary with overlap",
			size:     10,
			overlap:  2,
			content:  "abcdefghijklmnop",
			expected: []string{"abcdefghij", "ijklmnop"},
		},
		{
			name:     "three chunks",
			size:     8,
			overlap:  2,
			content:  "abcdefghijklmnopqr",
			expected: []string{"abcdefgh", "ghijklmn", "mnopqr"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChunker(WithChunkSize(tt.size), WithChunkOverlap(tt.overlap))
			assert.Equal(t, tt.expected, c.Split(tt.content))
		})
	}
}

func TestChunker_Deterministic(t *testing.T) {
	content := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 200)
	c := NewChunker(WithChunkSize(500), WithChunkOverlap(50))

	first := c.Split(content)
	second := c.Split(content)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	// A second chunker with the same configuration produces byte-identical
	// boundaries.
	other := NewChunker(WithChunkSize(500), WithChunkOverlap(50))
	assert.Equal(t, first, other.Split(content))
}

func TestChunker_ChunksCoverContent(t *testing.T) {
	content := strings.Repeat("abcdefghij", 100)
	c := NewChunker(WithChunkSize(128), WithChunkOverlap(16))

	chunks := c.Split(content)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 128, "chunk %d exceeds size", i)
	}

	// Consecutive chunks share exactly the configured overlap.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-16:], chunks[i][:16], "chunk %d overlap", i)
	}
}

func TestChunker_OverlapCappedBelowSize(t *testing.T) {
	// An overlap >= size would never advance; the constructor clamps it.
	c := NewChunker(WithChunkSize(10), WithChunkOverlap(10))

	chunks := c.Split(strings.Repeat("x", 100))
	assert.NotEmpty(t, chunks)
	assert.Less(t, len(chunks), 100)
}

func TestChunker_MultibyteRunesStayIntact(t *testing.T) {
	content := strings.Repeat("héllo wörld ünïcode ", 50)
	c := NewChunker(WithChunkSize(64), WithChunkOverlap(8))

	for _, chunk := range c.Split(content) {
		assert.True(t, strings.ToValidUTF8(chunk, "?") == chunk, "chunk contains a split rune")
	}
}

func TestChunker_Defaults(t *testing.T) {
	c := NewChunker()
	assert.Equal(t, DefaultChunkSize, c.chunkSize)
	assert.Equal(t, DefaultChunkOverlap, c.overlap)
}
