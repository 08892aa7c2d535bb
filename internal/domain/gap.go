package domain

import (
	"context"
	"time"
)

type GapStatus string

const (
	GapStatusOpen     GapStatus = "open"
	GapStatusLinked   GapStatus = "linked"
	GapStatusResolved GapStatus = "resolved"
)

type GapAction string

const (
	GapActionLinkSource   GapAction = "link_source"
	GapActionMarkResolved GapAction = "mark_resolved"
)

// KnowledgeGap is a derived record: a question topic the knowledge base keeps
// failing to answer. The analyzer owns the rate fields; operators own the
// linking and resolution actions.
type KnowledgeGap struct {
	ID             string     `json:"id" bson:"id"`
	SiteID         string     `json:"site_id" bson:"site_id"`
	Topic          string     `json:"topic" bson:"topic"`
	TopicLabel     string     `json:"topic_label" bson:"topic_label"`
	GapRate        int        `json:"gap_rate" bson:"gap_rate"`
	Why            string     `json:"why" bson:"why"`
	Missing        []string   `json:"missing" bson:"missing"`
	RecentAttempts int        `json:"recent_attempts" bson:"recent_attempts"`
	LastSeenAt     time.Time  `json:"last_seen_at" bson:"last_seen_at"`
	Status         GapStatus  `json:"status" bson:"status"`
	LinkedSources  []string   `json:"linked_sources,omitempty" bson:"linked_sources,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" bson:"updated_at"`
}

type GapStore interface {
	// Upsert writes the gap keyed by (site id, topic).
	Upsert(ctx context.Context, gap KnowledgeGap) error
	GetByTopic(ctx context.Context, siteID, topic string) (KnowledgeGap, error)
	// ListBySite returns gaps ordered by gap rate, highest first.
	ListBySite(ctx context.Context, siteID string) ([]KnowledgeGap, error)
}
