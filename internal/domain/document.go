package domain

import (
	"context"
	"time"
)

type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindURL  SourceKind = "url"
)

// DocumentStatus tracks pipeline progress. A document never moves backwards;
// error is terminal until the operator resubmits the source.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusChunked  DocumentStatus = "chunked"
	DocumentStatusEmbedded DocumentStatus = "embedded"
	DocumentStatusStored   DocumentStatus = "stored"
	DocumentStatusError    DocumentStatus = "error"
)

// Document is one ingested source (an uploaded file or a fetched URL).
// ContentHash is the sha256 of the normalized extracted text and is unique
// per site, which is what makes re-ingestion idempotent.
type Document struct {
	ID          string         `json:"id" bson:"id"`
	SiteID      string         `json:"site_id" bson:"site_id"`
	SourceKind  SourceKind     `json:"source_kind" bson:"source_kind"`
	Location    string         `json:"location" bson:"location"`
	Title       string         `json:"title" bson:"title"`
	ContentHash string         `json:"content_hash" bson:"content_hash"`
	Status      DocumentStatus `json:"status" bson:"status"`
	ChunkCount  int            `json:"chunk_count" bson:"chunk_count"`
	Error       string         `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`
}

type DocumentStore interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, siteID, id string) (Document, error)
	GetByContentHash(ctx context.Context, siteID, contentHash string) (Document, error)
	GetByLocation(ctx context.Context, siteID, location string) (Document, error)
	ListBySite(ctx context.Context, siteID string) ([]Document, error)
	Update(ctx context.Context, doc Document) error
	DeleteBySite(ctx context.Context, siteID string) error
}

// ChunkPoint is one embedded chunk headed for the vector store. IDs are
// derived from (document id, index) so repeated upserts overwrite in place.
type ChunkPoint struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Vector     []float32
	CreatedAt  time.Time
}

// ChunkMatch is a retrieval hit ordered by descending similarity score.
type ChunkMatch struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// VectorStore is the nearest-neighbor index. Implementations apply the site
// filter internally so a query can never cross tenants.
type VectorStore interface {
	Upsert(ctx context.Context, siteID string, points []ChunkPoint) error
	Query(ctx context.Context, siteID string, vector []float32, topK int) ([]ChunkMatch, error)
	DeleteByDocument(ctx context.Context, siteID, documentID string) error
}
