package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]domain.Conversation
	turns         map[string]domain.ChatTurn
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]domain.Conversation),
		turns:         make(map[string]domain.ChatTurn),
	}
}

func (s *ConversationStore) Create(ctx context.Context, conv domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conv.ID]; ok {
		return domain.StorageError("conversation already exists", nil)
	}
	s.conversations[conv.ID] = conv

	return nil
}

func (s *ConversationStore) GetByID(ctx context.Context, siteID, id string) (domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok || conv.SiteID != siteID {
		return domain.Conversation{}, domain.ErrConversationNotFound
	}

	return conv, nil
}

func (s *ConversationStore) NextSeq(ctx context.Context, siteID, conversationID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.SiteID != siteID {
		return 0, domain.ErrConversationNotFound
	}

	conv.TurnCount++
	conv.UpdatedAt = time.Now().UTC()
	s.conversations[conversationID] = conv

	return conv.TurnCount, nil
}

func (s *ConversationStore) CreateTurn(ctx context.Context, turn domain.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.turns[turn.ID]; ok {
		return domain.StorageError("chat turn already exists", nil)
	}
	s.turns[turn.ID] = cloneTurn(turn)

	return nil
}

func (s *ConversationStore) GetTurn(ctx context.Context, siteID, turnID string) (domain.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turn, ok := s.turns[turnID]
	if !ok || turn.SiteID != siteID {
		return domain.ChatTurn{}, domain.ErrTurnNotFound
	}

	return cloneTurn(turn), nil
}

func (s *ConversationStore) SetTurnFeedback(ctx context.Context, siteID, turnID string, feedback domain.TurnFeedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn, ok := s.turns[turnID]
	if !ok || turn.SiteID != siteID {
		return domain.ErrTurnNotFound
	}

	turn.Feedback = &feedback
	s.turns[turnID] = turn

	return nil
}

func (s *ConversationStore) ListTurnsSince(ctx context.Context, siteID string, since time.Time, offset, limit int) ([]domain.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var turns []domain.ChatTurn
	for _, turn := range s.turns {
		if turn.SiteID == siteID && !turn.CreatedAt.Before(since) {
			turns = append(turns, cloneTurn(turn))
		}
	}
	sort.Slice(turns, func(i, j int) bool {
		if turns[i].CreatedAt.Equal(turns[j].CreatedAt) {
			return turns[i].ID < turns[j].ID
		}
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})

	if offset >= len(turns) {
		return nil, nil
	}
	turns = turns[offset:]
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}

	return turns, nil
}

func (s *ConversationStore) CountConversations(ctx context.Context, siteID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, conv := range s.conversations {
		if conv.SiteID == siteID && !conv.CreatedAt.Before(since) {
			count++
		}
	}

	return count, nil
}

func cloneTurn(turn domain.ChatTurn) domain.ChatTurn {
	out := turn
	if turn.ChunkIDs != nil {
		out.ChunkIDs = append([]string(nil), turn.ChunkIDs...)
	}
	if turn.DocumentIDs != nil {
		out.DocumentIDs = append([]string(nil), turn.DocumentIDs...)
	}
	if turn.Feedback != nil {
		feedback := *turn.Feedback
		out.Feedback = &feedback
	}

	return out
}
