// Package ingestion implements the fetch, extract, chunk and hash stages of
// the document pipeline.
package ingestion

import (
	"strings"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 2000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Chunker splits extracted text into fixed-size chunks. Boundaries depend
// only on the content and the (size, overlap) pair, so re-chunking the same
// document always yields the same chunk set.
type Chunker struct {
	chunkSize int
	overlap   int
}

// ChunkerOption configures the chunker.
type ChunkerOption func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithChunkOverlap sets the overlap between chunks in characters.
func WithChunkOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// NewChunker creates a chunker with the given options.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Split divides content into chunks. Empty content produces no chunks.
func (c *Chunker) Split(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	runes := []rune(content)
	contentLen := len(runes)

	step := c.chunkSize - c.overlap
	estimated := contentLen/step + 1
	chunks := make([]string, 0, estimated)

	for start := 0; start < contentLen; start += step {
		end := start + c.chunkSize
		if end > contentLen {
			end = contentLen
		}

		chunk := string(runes[start:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		if end == contentLen {
			break
		}
	}

	return chunks
}
