package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type GapStore struct {
	mu   sync.RWMutex
	gaps map[string]domain.KnowledgeGap
}

func NewGapStore() *GapStore {
	return &GapStore{
		gaps: make(map[string]domain.KnowledgeGap),
	}
}

func gapKey(siteID, topic string) string {
	return siteID + ":" + topic
}

func (s *GapStore) Upsert(ctx context.Context, gap domain.KnowledgeGap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gaps[gapKey(gap.SiteID, gap.Topic)] = cloneGap(gap)

	return nil
}

func (s *GapStore) GetByTopic(ctx context.Context, siteID, topic string) (domain.KnowledgeGap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gap, ok := s.gaps[gapKey(siteID, topic)]
	if !ok {
		return domain.KnowledgeGap{}, domain.ErrGapNotFound
	}

	return cloneGap(gap), nil
}

func (s *GapStore) ListBySite(ctx context.Context, siteID string) ([]domain.KnowledgeGap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var gaps []domain.KnowledgeGap
	for _, gap := range s.gaps {
		if gap.SiteID == siteID {
			gaps = append(gaps, cloneGap(gap))
		}
	}
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].GapRate == gaps[j].GapRate {
			return gaps[i].Topic < gaps[j].Topic
		}
		return gaps[i].GapRate > gaps[j].GapRate
	})

	return gaps, nil
}

func cloneGap(gap domain.KnowledgeGap) domain.KnowledgeGap {
	out := gap
	if gap.Missing != nil {
		out.Missing = append([]string(nil), gap.Missing...)
	}
	if gap.LinkedSources != nil {
		out.LinkedSources = append([]string(nil), gap.LinkedSources...)
	}
	if gap.ResolvedAt != nil {
		resolvedAt := *gap.ResolvedAt
		out.ResolvedAt = &resolvedAt
	}

	return out
}
