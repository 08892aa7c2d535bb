// Package vector provides the nearest-neighbor index implementations. Every
// implementation filters by site internally so queries cannot cross tenants.
package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type memoryPoint struct {
	point domain.ChunkPoint
	seq   int
}

// MemoryStore is an in-process vector store used for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	points  map[string]map[string]memoryPoint // siteID -> chunkID -> point
	nextSeq int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		points: make(map[string]map[string]memoryPoint),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, siteID string, points []domain.ChunkPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sitePoints, ok := s.points[siteID]
	if !ok {
		sitePoints = make(map[string]memoryPoint)
		s.points[siteID] = sitePoints
	}

	for _, p := range points {
		seq := s.nextSeq
		if existing, ok := sitePoints[p.ID]; ok {
			// Overwrites keep their original insertion order.
			seq = existing.seq
		} else {
			s.nextSeq++
		}
		sitePoints[p.ID] = memoryPoint{point: p, seq: seq}
	}

	return nil
}

func (s *MemoryStore) Query(ctx context.Context, siteID string, vector []float32, topK int) ([]domain.ChunkMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	type scored struct {
		point domain.ChunkPoint
		score float64
		seq   int
	}

	var results []scored
	for _, mp := range s.points[siteID] {
		results = append(results, scored{
			point: mp.point,
			score: cosineSimilarity(vector, mp.point.Vector),
			seq:   mp.seq,
		})
	}

	// Sort by score descending; ties keep insertion order so results are
	// stable across identical queries.
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].seq < results[j].seq
	})

	if len(results) > topK {
		results = results[:topK]
	}

	matches := make([]domain.ChunkMatch, len(results))
	for i, r := range results {
		matches[i] = domain.ChunkMatch{
			ID:         r.point.ID,
			DocumentID: r.point.DocumentID,
			Index:      r.point.Index,
			Text:       r.point.Text,
			Score:      r.score,
		}
	}

	return matches, nil
}

func (s *MemoryStore) DeleteByDocument(ctx context.Context, siteID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, mp := range s.points[siteID] {
		if mp.point.DocumentID == documentID {
			delete(s.points[siteID], id)
		}
	}

	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
