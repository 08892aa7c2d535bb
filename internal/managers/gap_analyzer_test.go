package managers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdeck/helpdeck/internal/analytics"
	"github.com/helpdeck/helpdeck/internal/domain"
	"github.com/helpdeck/helpdeck/internal/storage/memory"
)

type gapFixture struct {
	analyzer      domain.GapAnalyzer
	conversations *memory.ConversationStore
	gaps          *memory.GapStore
	classifier    *analytics.Classifier
}

func newGapFixture(t *testing.T, policy GapPolicy) *gapFixture {
	t.Helper()

	f := &gapFixture{
		conversations: memory.NewConversationStore(),
		gaps:          memory.NewGapStore(),
		classifier:    analytics.NewClassifier(),
	}

	f.analyzer = NewGapAnalyzer(GapAnalyzerDependencies{
		ConversationStore: f.conversations,
		GapStore:          f.gaps,
		Classifier:        f.classifier,
		Policy:            policy,
	})

	return f
}

func (f *gapFixture) addTurns(t *testing.T, siteID, query string, total, unanswered int, age time.Duration) {
	t.Helper()

	for i := 0; i < total; i++ {
		err := f.conversations.CreateTurn(context.Background(), domain.ChatTurn{
			ID:         fmt.Sprintf("%s-%s-%d-%d", siteID, query[:3], time.Now().UnixNano(), i),
			SiteID:     siteID,
			Query:      query,
			Answer:     "answer",
			Unanswered: i < unanswered,
			CreatedAt:  time.Now().UTC().Add(-age),
		})
		require.NoError(t, err)
	}
}

func TestGapAnalyzer_GapRateArithmetic(t *testing.T) {
	ctx := context.Background()
	f := newGapFixture(t, GapPolicy{})

	// 10 attempts, 4 unanswered.
	f.addTurns(t, "site-a", "how do refunds work", 10, 4, time.Hour)

	gaps, err := f.analyzer.Recompute(ctx, "site-a")
	require.NoError(t, err)
	require.Len(t, gaps, 1)

	assert.Equal(t, 40, gaps[0].GapRate)
	assert.Equal(t, 10, gaps[0].RecentAttempts)
	assert.Equal(t, domain.GapStatusOpen, gaps[0].Status)
	assert.NotEmpty(t, gaps[0].Missing)
	assert.NotEmpty(t, gaps[0].Why)
}

func TestGapAnalyzer_MinAttemptsThreshold(t *testing.T) {
	ctx := context.Background()
	f := newGapFixture(t, GapPolicy{MinAttempts: 3})

	// Two attempts, both unanswered: below the floor, no gap surfaces.
	f.addTurns(t, "site-a", "rare edge case", 2, 2, time.Hour)

	gaps, err := f.analyzer.Recompute(ctx, "site-a")
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestGapAnalyzer_LowRateDoesNotOpen(t *testing.T) {
	ctx := context.Background()
	f := newGapFixture(t, GapPolicy{OpenRate: 20})

	// 1 of 10 unanswered = 10%, under the open threshold.
	f.addTurns(t, "site-a", "well answered topic", 10, 1, time.Hour)

	gaps, err := f.analyzer.Recompute(ctx, "site-a")
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestGapAnalyzer_NegativeFeedbackCounts(t *testing.T) {
	ctx := context.Background()
	f := newGapFixture(t, GapPolicy{})

	f.addTurns(t, "site-a", "confusing topic", 5, 0, time.Hour)

	// Three of the answered turns get negative feedback.
	turns, err := f.conversations.ListTurnsSince(ctx, "site-a", time.Now().Add(-24*time.Hour), 0, 100)
	require.NoError(t, err)
	require.Len(t, turns, 5)
	for _, turn := range turns[:3] {
		require.NoError(t, f.conversations.SetTurnFeedback(ctx, "site-a", turn.ID, domain.TurnFeedback{
			Sentiment: domain.SentimentNegative,
			CreatedAt: time.Now().UTC(),
		}))
	}

	gaps, err := f.analyzer.Recompute(ctx, "site-a")
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, 60, gaps[0].GapRate)
}

func TestGapAnalyzer_ApplyAction(t *testing.T) {
	ctx := context.Background()
	f := newGapFixture(t, GapPolicy{})

	f.addTurns(t, "site-a", "refund policy", 5, 3, time.Hour)

	gaps, err := f.analyzer.Recompute(ctx, "site-a")
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	topic := gaps[0].Topic
	assert.Equal(t, 60, gaps[0].GapRate)

	t.Run("link_source", func(t *testing.T) {
		gap, err := f.analyzer.ApplyAction(ctx, "site-a", domain.GapActionParams{
			Topic:    topic,
			Action:   domain.GapActionLinkSource,
			Metadata: map[string]any{"urls": []any{"https://example.com/refunds"}},
		})
		require.NoError(t, err)
		assert.Equal(t, domain.GapStatusLinked, gap.Status)
		assert.Contains(t, gap.LinkedSources, "https://example.com/refunds")
		// Linking alone never changes the rate.
		assert.Equal(t, 60, gap.GapRate)
	})

	t.Run("link_source requires sources", func(t *testing.T) {
		_, err := f.analyzer.ApplyAction(ctx, "site-a", domain.GapActionParams{
			Topic:  topic,
			Action: domain.GapActionLinkSource,
		})
		assert.Error(t, err)
	})

	t.Run("mark_resolved", func(t *testing.T) {
		gap, err := f.analyzer.ApplyAction(ctx, "site-a", domain.GapActionParams{
			Topic:  topic,
			Action: domain.GapActionMarkResolved,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.GapStatusResolved, gap.Status)
		require.NotNil(t, gap.ResolvedAt)
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := f.analyzer.ApplyAction(ctx, "site-a", domain.GapActionParams{
			Topic:  topic,
			Action: domain.GapAction("ignore"),
		})
		assert.Error(t, err)
	})

	t.Run("unknown topic", func(t *testing.T) {
		_, err := f.analyzer.ApplyAction(ctx, "site-a", domain.GapActionParams{
			Topic:  "no-such-topic",
			Action: domain.GapActionMarkResolved,
		})
		assert.ErrorIs(t, err, domain.ErrGapNotFound)
	})
}

func TestGapAnalyzer_LinkedGapAutoResolvesWhenRateDrops(t *testing.T) {
	ctx := context.Background()

	// A wide-window analyzer surfaces the gap from older turns.
	wide := newGapFixture(t, GapPolicy{WindowDays: 7, ResolveRate: 10})
	wide.addTurns(t, "site-a", "billing question", 5, 3, 3*24*time.Hour)

	gaps, err := wide.analyzer.Recompute(ctx, "site-a")
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	topic := gaps[0].Topic

	_, err = wide.analyzer.ApplyAction(ctx, "site-a", domain.GapActionParams{
		Topic:    topic,
		Action:   domain.GapActionLinkSource,
		Metadata: map[string]any{"document_ids": []any{"doc-new"}},
	})
	require.NoError(t, err)

	// The next window sees only fresh, fully-answered turns: recomputation
	// confirms the resolution.
	narrow := &gapFixture{
		conversations: wide.conversations,
		gaps:          wide.gaps,
		classifier:    wide.classifier,
	}
	narrow.analyzer = NewGapAnalyzer(GapAnalyzerDependencies{
		ConversationStore: narrow.conversations,
		GapStore:          narrow.gaps,
		Classifier:        narrow.classifier,
		Policy:            GapPolicy{WindowDays: 2, ResolveRate: 10},
	})
	narrow.addTurns(t, "site-a", "billing question", 5, 0, time.Hour)

	gaps, err = narrow.analyzer.Recompute(ctx, "site-a")
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, domain.GapStatusResolved, gaps[0].Status)
	require.NotNil(t, gaps[0].ResolvedAt)
	assert.Zero(t, gaps[0].GapRate)
}

func TestGapAnalyzer_ResolvedGapReopensOnRegression(t *testing.T) {
	ctx := context.Background()
	f := newGapFixture(t, GapPolicy{WindowDays: 7, ReopenRate: 30})

	// Seed a resolved gap directly.
	topic, label := f.classifier.Topic("api rate limit")
	resolvedAt := time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, f.gaps.Upsert(ctx, domain.KnowledgeGap{
		ID:         "gap-1",
		SiteID:     "site-a",
		Topic:      topic,
		TopicLabel: label,
		GapRate:    5,
		Status:     domain.GapStatusResolved,
		ResolvedAt: &resolvedAt,
	}))

	// The topic regresses: 5 of 10 recent attempts fail.
	f.addTurns(t, "site-a", "api rate limit", 10, 5, time.Hour)

	gaps, err := f.analyzer.Recompute(ctx, "site-a")
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, domain.GapStatusOpen, gaps[0].Status)
	assert.Nil(t, gaps[0].ResolvedAt)
	assert.Equal(t, 50, gaps[0].GapRate)
}

func TestGapAnalyzer_TenantScoped(t *testing.T) {
	ctx := context.Background()
	f := newGapFixture(t, GapPolicy{})

	f.addTurns(t, "site-a", "refund policy", 5, 3, time.Hour)
	f.addTurns(t, "site-b", "refund policy", 5, 5, time.Hour)

	gapsA, err := f.analyzer.Recompute(ctx, "site-a")
	require.NoError(t, err)
	require.Len(t, gapsA, 1)
	assert.Equal(t, "site-a", gapsA[0].SiteID)
	assert.Equal(t, 60, gapsA[0].GapRate)

	gapsB, err := f.analyzer.Recompute(ctx, "site-b")
	require.NoError(t, err)
	require.Len(t, gapsB, 1)
	assert.Equal(t, 100, gapsB[0].GapRate)
}
