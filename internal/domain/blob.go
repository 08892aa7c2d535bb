package domain

import (
	"context"
	"time"
)

// BlobInfo describes one stored object in a site's folder.
type BlobInfo struct {
	Path       string
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// BlobStore is the opaque file storage collaborator. Objects live under one
// folder per site and are addressed by path; the store has no knowledge of
// documents or chunks.
type BlobStore interface {
	List(ctx context.Context, siteID string) ([]BlobInfo, error)
	Download(ctx context.Context, siteID, path string) ([]byte, error)
}
