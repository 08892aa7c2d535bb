package managers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/domain"
)

const (
	maxQueryChars      = 2000
	maxHistoryMessages = 10
	maxContextChars    = 12000
	answerMaxTokens    = 1024

	fallbackAnswer = "I'm having trouble generating an answer right now. Please try again in a moment."
)

type chatManager struct {
	sites         domain.SiteStore
	conversations domain.ConversationStore
	vectors       domain.VectorStore
	embedder      domain.Embedder
	answerer      domain.Answerer
	minSimilarity float64
}

type ChatManagerDependencies struct {
	SiteStore         domain.SiteStore
	ConversationStore domain.ConversationStore
	VectorStore       domain.VectorStore
	Embedder          domain.Embedder
	Answerer          domain.Answerer
	MinSimilarity     float64
}

func NewChatManager(deps ChatManagerDependencies) domain.ChatManager {
	return &chatManager{
		sites:         deps.SiteStore,
		conversations: deps.ConversationStore,
		vectors:       deps.VectorStore,
		embedder:      deps.Embedder,
		answerer:      deps.Answerer,
		minSimilarity: deps.MinSimilarity,
	}
}

func (m *chatManager) Answer(ctx context.Context, siteID string, params domain.ChatParams) (domain.ChatResult, error) {
	started := time.Now()

	query := strings.TrimSpace(params.Query)
	if query == "" {
		return domain.ChatResult{}, domain.ValidationError("query is required")
	}
	if len(query) > maxQueryChars {
		return domain.ChatResult{}, domain.ValidationError("query exceeds the maximum length")
	}

	site, err := m.sites.GetByID(ctx, siteID)
	if err != nil {
		return domain.ChatResult{}, err
	}
	if !site.Enabled {
		return domain.ChatResult{}, domain.AuthError("site is disabled")
	}

	topK := params.TopK
	if topK <= 0 {
		topK = site.Settings.TopK
	}
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	if topK > domain.MaxTopK {
		topK = domain.MaxTopK
	}

	temperature := site.Settings.Temperature
	if params.Temperature != nil {
		temperature = *params.Temperature
	}

	queryVectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return domain.ChatResult{}, err
	}
	if len(queryVectors) != 1 {
		return domain.ChatResult{}, domain.UpstreamError("embedding provider returned no vector for the query", nil)
	}

	matches, err := m.vectors.Query(ctx, siteID, queryVectors[0], topK)
	if err != nil {
		return domain.ChatResult{}, err
	}

	// Matches below the similarity floor are noise; a turn with none above
	// it is unanswered regardless of what the model says.
	sources := make([]domain.ChunkMatch, 0, len(matches))
	for _, match := range matches {
		if match.Score >= m.minSimilarity {
			sources = append(sources, match)
		}
	}
	unanswered := len(sources) == 0

	var topScore float64
	if len(sources) > 0 {
		topScore = sources[0].Score
	}

	contextBlocks := buildContext(sources)

	history := params.History
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	// One synthesis attempt. On provider failure the turn still lands with
	// the static fallback; the visitor is never shown a raw 502.
	answerText := fallbackAnswer
	model := m.answerer.Model()

	answer, err := m.answerer.Answer(ctx, domain.AnswerRequest{
		System:      systemPrompt(site.Name),
		Query:       query,
		Context:     contextBlocks,
		History:     history,
		Temperature: temperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		log.Warn().Err(err).Str("site_id", siteID).Msg("Answer synthesis failed, serving fallback")
	} else {
		answerText = answer.Text
		model = answer.Model
	}

	conversationID := params.ConversationID
	newConversation := false
	if conversationID != "" {
		if _, err := m.conversations.GetByID(ctx, siteID, conversationID); err != nil {
			if !errors.Is(err, domain.ErrConversationNotFound) {
				return domain.ChatResult{}, err
			}
			// Stale id from the widget's storage; start a fresh thread.
			conversationID = ""
		}
	}
	if conversationID == "" {
		now := time.Now().UTC()
		conv := domain.Conversation{
			ID:        uuid.NewString(),
			SiteID:    siteID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.conversations.Create(ctx, conv); err != nil {
			return domain.ChatResult{}, err
		}
		conversationID = conv.ID
		newConversation = true
	}

	seq, err := m.conversations.NextSeq(ctx, siteID, conversationID)
	if err != nil {
		return domain.ChatResult{}, err
	}

	chunkIDs := make([]string, len(sources))
	documentIDs := make([]string, 0, len(sources))
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		chunkIDs[i] = src.ID
		if _, ok := seen[src.DocumentID]; !ok {
			seen[src.DocumentID] = struct{}{}
			documentIDs = append(documentIDs, src.DocumentID)
		}
	}

	turn := domain.ChatTurn{
		ID:             xid.New().String(),
		ConversationID: conversationID,
		SiteID:         siteID,
		Seq:            seq,
		Query:          query,
		Answer:         answerText,
		ChunkIDs:       chunkIDs,
		DocumentIDs:    documentIDs,
		Unanswered:     unanswered,
		LatencyMS:      time.Since(started).Milliseconds(),
		Model:          model,
		TopScore:       topScore,
		Language:       detectLanguage(query),
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.conversations.CreateTurn(ctx, turn); err != nil {
		return domain.ChatResult{}, err
	}

	return domain.ChatResult{
		Answer:          answerText,
		TurnID:          turn.ID,
		ConversationID:  conversationID,
		NewConversation: newConversation,
		Sources:         sources,
		Unanswered:      unanswered,
	}, nil
}

// buildContext assembles the prompt context from the top matches, stopping
// once the character budget is spent. At least one block always goes in so a
// single oversized chunk cannot empty the context.
func buildContext(sources []domain.ChunkMatch) []string {
	blocks := make([]string, 0, len(sources))
	total := 0

	for _, src := range sources {
		if len(blocks) > 0 && total+len(src.Text) > maxContextChars {
			break
		}
		blocks = append(blocks, src.Text)
		total += len(src.Text)
	}

	return blocks
}

func systemPrompt(siteName string) string {
	return fmt.Sprintf(
		"You are the support assistant for %s. Answer the visitor's question using only the documentation excerpts provided. Be concise and direct. If the excerpts do not contain the answer, say that you could not find it in the documentation and suggest contacting support.",
		siteName,
	)
}

func detectLanguage(text string) string {
	info := whatlanggo.Detect(text)
	code := whatlanggo.LangToString(info.Lang)
	if code == "" {
		return "und"
	}

	return code
}
