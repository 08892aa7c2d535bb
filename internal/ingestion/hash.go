package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ContentHash returns the sha256 hex digest of the whitespace-normalized
// text. Normalizing first keeps the tenant-level dedup stable across
// re-extractions that only differ in spacing.
func ContentHash(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ChunkID derives the stable id for one chunk of a document. Upserting the
// same document twice overwrites points instead of duplicating them.
func ChunkID(documentID string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", documentID, index)))
	return hex.EncodeToString(sum[:])
}
