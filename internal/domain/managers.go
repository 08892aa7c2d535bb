package domain

import (
	"context"
	"time"
)

// IngestStatus is the caller-facing outcome of one ingestion request.
type IngestStatus string

const (
	IngestStatusSuccess    IngestStatus = "success"
	IngestStatusSkipped    IngestStatus = "skipped"
	IngestStatusProcessing IngestStatus = "processing"
	IngestStatusError      IngestStatus = "error"
)

type IngestResult struct {
	DocumentID    string       `json:"document_id,omitempty"`
	Status        IngestStatus `json:"status"`
	ChunksCreated int          `json:"chunks_created"`
}

// BatchIngestResult summarizes a process-new-only sweep over a site's blobs.
type BatchIngestResult struct {
	TotalFiles int `json:"total_files"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

type SiteManager interface {
	Create(ctx context.Context, ownerUserID, name string, allowedOrigins []string) (Site, string, error)
	Get(ctx context.Context, siteID string) (Site, error)
	GetForOwner(ctx context.Context, siteID, ownerUserID string) (Site, error)
	ListForOwner(ctx context.Context, ownerUserID string) ([]Site, error)
	AuthenticateSecret(ctx context.Context, siteID, secret string) (Site, error)
	VerifyOrigin(ctx context.Context, siteID, origin string) error
	Update(ctx context.Context, siteID, ownerUserID string, update SiteUpdate) (Site, error)
	Delete(ctx context.Context, siteID, ownerUserID string) error
}

type IngestionManager interface {
	IngestFile(ctx context.Context, siteID, name string, data []byte) (IngestResult, error)
	IngestURL(ctx context.Context, siteID, rawURL, requestID string) (IngestResult, error)
	ProcessNewOnly(ctx context.Context, siteID string) (BatchIngestResult, error)
	ListDocuments(ctx context.Context, siteID string) ([]Document, error)
}

type ChatParams struct {
	Query          string
	History        []ChatMessage
	TopK           int
	Temperature    *float64
	ConversationID string
}

type ChatResult struct {
	Answer          string       `json:"answer"`
	TurnID          string       `json:"turn_id"`
	ConversationID  string       `json:"conversation_id"`
	NewConversation bool         `json:"new_conversation"`
	Sources         []ChunkMatch `json:"sources"`
	Unanswered      bool         `json:"unanswered"`
}

type ChatManager interface {
	Answer(ctx context.Context, siteID string, params ChatParams) (ChatResult, error)
}

type FeedbackParams struct {
	TurnID    string
	Sentiment Sentiment
	Notes     string
	Metadata  map[string]any
}

// AnalyticsOverview is the dashboard aggregate for one site.
type AnalyticsOverview struct {
	Summary      OverviewSummary `json:"summary"`
	WeeklyTrend  []TrendPoint    `json:"weekly_trend"`
	TopQueries   []QueryCount    `json:"top_queries"`
	CommonIssues []IssueCluster  `json:"common_issues"`
}

type OverviewSummary struct {
	TotalQueries        int       `json:"total_queries"`
	UniqueConversations int       `json:"unique_conversations"`
	AvgSatisfaction     float64   `json:"avg_satisfaction"`
	KnowledgeGaps       int       `json:"knowledge_gaps"`
	AvgResponseTimeMS   int64     `json:"avg_response_time_ms"`
	TopIssue            string    `json:"top_issue,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type TrendPoint struct {
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Unanswered int    `json:"unanswered"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

type IssueCluster struct {
	Topic   string `json:"topic"`
	Count   int    `json:"count"`
	Example string `json:"example"`
}

type AnalyticsManager interface {
	RecordFeedback(ctx context.Context, siteID string, params FeedbackParams) error
	ListActivities(ctx context.Context, siteID string, limit int) ([]URLIngestionActivity, error)
	Overview(ctx context.Context, siteID string) (AnalyticsOverview, error)
}

type GapActionParams struct {
	Topic    string
	Action   GapAction
	Metadata map[string]any
}

type GapAnalyzer interface {
	Recompute(ctx context.Context, siteID string) ([]KnowledgeGap, error)
	ListGaps(ctx context.Context, siteID string) ([]KnowledgeGap, error)
	ApplyAction(ctx context.Context, siteID string, params GapActionParams) (KnowledgeGap, error)
}
