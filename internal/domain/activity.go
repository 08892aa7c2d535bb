package domain

import (
	"context"
	"time"
	"unicode/utf8"
)

type ActivityStatus string

const (
	ActivityStatusProcessing ActivityStatus = "processing"
	ActivityStatusSuccess    ActivityStatus = "success"
	ActivityStatusError      ActivityStatus = "error"
)

// MaxActivityErrorLen caps the stored error message so a pathological
// upstream response cannot bloat the ledger.
const MaxActivityErrorLen = 500

// URLIngestionActivity is the audit row for one URL ingestion request,
// keyed by the client-supplied request id. Retries with the same id attach
// to the existing activity instead of creating a new one.
type URLIngestionActivity struct {
	RequestID     string         `json:"request_id" bson:"request_id"`
	SiteID        string         `json:"site_id" bson:"site_id"`
	URL           string         `json:"url" bson:"url"`
	Status        ActivityStatus `json:"status" bson:"status"`
	DocumentID    string         `json:"document_id,omitempty" bson:"document_id,omitempty"`
	ChunksCreated int            `json:"chunks_created" bson:"chunks_created"`
	Error         string         `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt     time.Time      `json:"started_at" bson:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// ActivityCompletion is the terminal update applied once the pipeline ends.
type ActivityCompletion struct {
	Status        ActivityStatus
	DocumentID    string
	ChunksCreated int
	Error         string
	CompletedAt   time.Time
}

type ActivityStore interface {
	// Begin inserts the processing row for a request id. It reports false
	// without error when an activity with that id already exists, which is
	// how duplicate submissions collapse to one logical activity.
	Begin(ctx context.Context, activity URLIngestionActivity) (bool, error)
	Get(ctx context.Context, siteID, requestID string) (URLIngestionActivity, error)
	Complete(ctx context.Context, siteID, requestID string, completion ActivityCompletion) error
	ListBySite(ctx context.Context, siteID string, limit int) ([]URLIngestionActivity, error)
}

// TruncateActivityError trims err text to the ledger cap. The cut backs up
// to a rune boundary so the stored message stays valid UTF-8.
func TruncateActivityError(msg string) string {
	if len(msg) <= MaxActivityErrorLen {
		return msg
	}

	cut := MaxActivityErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}

	return msg[:cut]
}
