package domain

import (
	"context"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Score maps sentiment to the satisfaction scale used by the analytics
// overview: positive 1.0, neutral 0.5, negative 0.0.
func (s Sentiment) Score() float64 {
	switch s {
	case SentimentPositive:
		return 1.0
	case SentimentNeutral:
		return 0.5
	default:
		return 0.0
	}
}

type Conversation struct {
	ID        string    `json:"id" bson:"id"`
	SiteID    string    `json:"site_id" bson:"site_id"`
	TurnCount int       `json:"turn_count" bson:"turn_count"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// TurnFeedback overwrites on every write; a turn carries at most one feedback
// record and the last submission wins.
type TurnFeedback struct {
	Sentiment Sentiment      `json:"sentiment" bson:"sentiment"`
	Notes     string         `json:"notes,omitempty" bson:"notes,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}

// ChatTurn is one query/answer exchange. Turns are immutable once written
// except for feedback attachment.
type ChatTurn struct {
	ID             string         `json:"id" bson:"id"`
	ConversationID string         `json:"conversation_id" bson:"conversation_id"`
	SiteID         string         `json:"site_id" bson:"site_id"`
	Seq            int            `json:"seq" bson:"seq"`
	Query          string         `json:"query" bson:"query"`
	Answer         string         `json:"answer" bson:"answer"`
	ChunkIDs       []string       `json:"chunk_ids" bson:"chunk_ids"`
	DocumentIDs    []string       `json:"document_ids" bson:"document_ids"`
	Unanswered     bool           `json:"unanswered" bson:"unanswered"`
	LatencyMS      int64          `json:"latency_ms" bson:"latency_ms"`
	Model          string         `json:"model" bson:"model"`
	TopScore       float64        `json:"top_score" bson:"top_score"`
	Language       string         `json:"language" bson:"language"`
	Feedback       *TurnFeedback  `json:"feedback,omitempty" bson:"feedback,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
}

// IsGap reports whether the turn counts toward a knowledge gap: either no
// retrieved content cleared the similarity floor, or the visitor said the
// answer was wrong.
func (t ChatTurn) IsGap() bool {
	if t.Unanswered {
		return true
	}
	return t.Feedback != nil && t.Feedback.Sentiment == SentimentNegative
}

type ConversationStore interface {
	Create(ctx context.Context, conv Conversation) error
	GetByID(ctx context.Context, siteID, id string) (Conversation, error)

	// NextSeq atomically increments the conversation's turn counter and
	// returns the new value. Concurrent turns in one conversation receive
	// distinct, ordered sequence numbers.
	NextSeq(ctx context.Context, siteID, conversationID string) (int, error)

	CreateTurn(ctx context.Context, turn ChatTurn) error
	GetTurn(ctx context.Context, siteID, turnID string) (ChatTurn, error)
	SetTurnFeedback(ctx context.Context, siteID, turnID string, feedback TurnFeedback) error
	ListTurnsSince(ctx context.Context, siteID string, since time.Time, offset, limit int) ([]ChatTurn, error)
	CountConversations(ctx context.Context, siteID string, since time.Time) (int, error)
}
