package managers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdeck/helpdeck/internal/domain"
	"github.com/helpdeck/helpdeck/internal/storage/memory"
	"github.com/helpdeck/helpdeck/internal/vector"
)

type chatFixture struct {
	manager       domain.ChatManager
	sites         *memory.SiteStore
	conversations *memory.ConversationStore
	vectors       *vector.MemoryStore
	embedder      *stubEmbedder
	answerer      *stubAnswerer
	site          domain.Site
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	ctx := context.Background()

	f := &chatFixture{
		sites:         memory.NewSiteStore(),
		conversations: memory.NewConversationStore(),
		vectors:       vector.NewMemoryStore(),
		embedder:      newStubEmbedder(3),
		answerer:      &stubAnswerer{},
	}

	f.site = domain.Site{
		ID:          "site-a",
		OwnerUserID: "owner-1",
		Name:        "Docs Site",
		Enabled:     true,
		Settings:    domain.DefaultWidgetSettings(),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.sites.Create(ctx, f.site))

	f.manager = NewChatManager(ChatManagerDependencies{
		SiteStore:         f.sites,
		ConversationStore: f.conversations,
		VectorStore:       f.vectors,
		Embedder:          f.embedder,
		Answerer:          f.answerer,
		MinSimilarity:     0.4,
	})

	return f
}

// seedChunks gives the query an exact-match chunk plus weaker neighbors.
func (f *chatFixture) seedChunks(t *testing.T, query string) {
	t.Helper()

	queryVec := []float32{1, 0, 0}
	f.embedder.vectors[query] = queryVec

	require.NoError(t, f.vectors.Upsert(context.Background(), f.site.ID, []domain.ChunkPoint{
		{ID: "c-exact", DocumentID: "doc-1", Index: 0, Text: "exact match chunk", Vector: []float32{1, 0, 0}},
		{ID: "c-close", DocumentID: "doc-1", Index: 1, Text: "close chunk", Vector: []float32{0.9, 0.3, 0}},
		{ID: "c-far", DocumentID: "doc-2", Index: 0, Text: "unrelated chunk", Vector: []float32{0, 0, 1}},
	}))
}

func TestChatManager_Answer(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.seedChunks(t, "how do refunds work")

	result, err := f.manager.Answer(ctx, f.site.ID, domain.ChatParams{Query: "how do refunds work"})
	require.NoError(t, err)

	assert.Equal(t, "stub answer", result.Answer)
	assert.NotEmpty(t, result.TurnID)
	assert.NotEmpty(t, result.ConversationID)
	assert.True(t, result.NewConversation)
	assert.False(t, result.Unanswered)

	// The orthogonal chunk is below the similarity floor and excluded.
	for _, src := range result.Sources {
		assert.NotEqual(t, "c-far", src.ID)
	}
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, "c-exact", result.Sources[0].ID)

	// The synthesis call saw the retrieved context and the query.
	assert.Contains(t, f.answerer.lastRequest.Context, "exact match chunk")
	assert.Equal(t, "how do refunds work", f.answerer.lastRequest.Query)
	assert.Contains(t, f.answerer.lastRequest.System, "Docs Site")

	// The turn is persisted with the retrieved chunk ids.
	turn, err := f.conversations.GetTurn(ctx, f.site.ID, result.TurnID)
	require.NoError(t, err)
	assert.Equal(t, 1, turn.Seq)
	assert.Contains(t, turn.ChunkIDs, "c-exact")
	assert.False(t, turn.Unanswered)
	assert.GreaterOrEqual(t, turn.LatencyMS, int64(0))
}

func TestChatManager_ConversationThreading(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.seedChunks(t, "first question")
	f.embedder.vectors["second question"] = []float32{1, 0, 0}

	first, err := f.manager.Answer(ctx, f.site.ID, domain.ChatParams{Query: "first question"})
	require.NoError(t, err)

	second, err := f.manager.Answer(ctx, f.site.ID, domain.ChatParams{
		Query:          "second question",
		ConversationID: first.ConversationID,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.False(t, second.NewConversation)

	turn1, err := f.conversations.GetTurn(ctx, f.site.ID, first.TurnID)
	require.NoError(t, err)
	turn2, err := f.conversations.GetTurn(ctx, f.site.ID, second.TurnID)
	require.NoError(t, err)
	assert.Equal(t, 1, turn1.Seq)
	assert.Equal(t, 2, turn2.Seq)
}

func TestChatManager_StaleConversationIDStartsFresh(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.seedChunks(t, "a question")

	result, err := f.manager.Answer(ctx, f.site.ID, domain.ChatParams{
		Query:          "a question",
		ConversationID: "no-such-conversation",
	})
	require.NoError(t, err)
	assert.True(t, result.NewConversation)
	assert.NotEqual(t, "no-such-conversation", result.ConversationID)
}

func TestChatManager_UnansweredWhenNothingClearsThreshold(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	// Only an orthogonal chunk exists; the answer provider still responds,
	// but the turn is flagged for gap analysis.
	f.embedder.vectors["obscure question"] = []float32{1, 0, 0}
	require.NoError(t, f.vectors.Upsert(ctx, f.site.ID, []domain.ChunkPoint{
		{ID: "c-far", DocumentID: "doc-2", Index: 0, Text: "unrelated", Vector: []float32{0, 0, 1}},
	}))

	result, err := f.manager.Answer(ctx, f.site.ID, domain.ChatParams{Query: "obscure question"})
	require.NoError(t, err)

	assert.True(t, result.Unanswered)
	assert.Empty(t, result.Sources)
	assert.Equal(t, "stub answer", result.Answer)

	turn, err := f.conversations.GetTurn(ctx, f.site.ID, result.TurnID)
	require.NoError(t, err)
	assert.True(t, turn.Unanswered)
	assert.Empty(t, turn.ChunkIDs)
}

func TestChatManager_FallbackOnSynthesisFailure(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.seedChunks(t, "failing question")
	f.answerer.fail = true

	result, err := f.manager.Answer(ctx, f.site.ID, domain.ChatParams{Query: "failing question"})
	require.NoError(t, err)

	// Single attempt, degraded answer, turn still recorded.
	assert.Equal(t, int32(1), f.answerer.calls.Load())
	assert.Equal(t, fallbackAnswer, result.Answer)

	turn, err := f.conversations.GetTurn(ctx, f.site.ID, result.TurnID)
	require.NoError(t, err)
	assert.Equal(t, fallbackAnswer, turn.Answer)
}

func TestChatManager_Validation(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	_, err := f.manager.Answer(ctx, f.site.ID, domain.ChatParams{Query: "   "})
	assert.Error(t, err)

	long := make([]byte, maxQueryChars+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.manager.Answer(ctx, f.site.ID, domain.ChatParams{Query: string(long)})
	assert.Error(t, err)
}

func TestChatManager_DisabledSite(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	site := f.site
	site.Enabled = false
	require.NoError(t, f.sites.Update(ctx, site))

	_, err := f.manager.Answer(ctx, f.site.ID, domain.ChatParams{Query: "anything"})
	assert.Error(t, err)
}

func TestChatManager_TopKClamped(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	f.embedder.vectors["broad question"] = []float32{1, 0, 0}

	points := make([]domain.ChunkPoint, 30)
	for i := range points {
		points[i] = domain.ChunkPoint{
			ID:         fmt.Sprintf("p-%d", i),
			DocumentID: "doc-1",
			Index:      i,
			Text:       "chunk",
			Vector:     []float32{1, 0, 0},
		}
	}
	require.NoError(t, f.vectors.Upsert(ctx, f.site.ID, points))

	result, err := f.manager.Answer(ctx, f.site.ID, domain.ChatParams{
		Query: "broad question",
		TopK:  1000,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Sources), domain.MaxTopK)
}
