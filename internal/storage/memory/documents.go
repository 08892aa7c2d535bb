package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]domain.Document),
	}
}

func (s *DocumentStore) Create(ctx context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return domain.StorageError("document already exists", nil)
	}
	s.docs[doc.ID] = doc

	return nil
}

func (s *DocumentStore) GetByID(ctx context.Context, siteID, id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok || doc.SiteID != siteID {
		return domain.Document{}, domain.ErrDocumentNotFound
	}

	return doc, nil
}

func (s *DocumentStore) GetByContentHash(ctx context.Context, siteID, contentHash string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if doc.SiteID == siteID && doc.ContentHash == contentHash {
			return doc, nil
		}
	}

	return domain.Document{}, domain.ErrDocumentNotFound
}

func (s *DocumentStore) GetByLocation(ctx context.Context, siteID, location string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if doc.SiteID == siteID && doc.Location == location {
			return doc, nil
		}
	}

	return domain.Document{}, domain.ErrDocumentNotFound
}

func (s *DocumentStore) ListBySite(ctx context.Context, siteID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.Document
	for _, doc := range s.docs {
		if doc.SiteID == siteID {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})

	return docs, nil
}

func (s *DocumentStore) Update(ctx context.Context, doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[doc.ID]
	if !ok || existing.SiteID != doc.SiteID {
		return domain.ErrDocumentNotFound
	}
	s.docs[doc.ID] = doc

	return nil
}

func (s *DocumentStore) DeleteBySite(ctx context.Context, siteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, doc := range s.docs {
		if doc.SiteID == siteID {
			delete(s.docs, id)
		}
	}

	return nil
}
