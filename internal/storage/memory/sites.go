package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type SiteStore struct {
	mu    sync.RWMutex
	sites map[string]domain.Site
}

func NewSiteStore() *SiteStore {
	return &SiteStore{
		sites: make(map[string]domain.Site),
	}
}

func (s *SiteStore) Create(ctx context.Context, site domain.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sites[site.ID]; ok {
		return domain.StorageError("site already exists", nil)
	}
	s.sites[site.ID] = cloneSite(site)

	return nil
}

func (s *SiteStore) GetByID(ctx context.Context, id string) (domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.sites[id]
	if !ok {
		return domain.Site{}, domain.ErrSiteNotFound
	}

	return cloneSite(site), nil
}

func (s *SiteStore) ListByOwner(ctx context.Context, ownerUserID string) ([]domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sites []domain.Site
	for _, site := range s.sites {
		if site.OwnerUserID == ownerUserID {
			sites = append(sites, cloneSite(site))
		}
	}
	sortSites(sites)

	return sites, nil
}

func (s *SiteStore) ListEnabled(ctx context.Context) ([]domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sites []domain.Site
	for _, site := range s.sites {
		if site.Enabled {
			sites = append(sites, cloneSite(site))
		}
	}
	sortSites(sites)

	return sites, nil
}

func (s *SiteStore) Update(ctx context.Context, site domain.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sites[site.ID]; !ok {
		return domain.ErrSiteNotFound
	}
	s.sites[site.ID] = cloneSite(site)

	return nil
}

func (s *SiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sites[id]; !ok {
		return domain.ErrSiteNotFound
	}
	delete(s.sites, id)

	return nil
}

func sortSites(sites []domain.Site) {
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].CreatedAt.Equal(sites[j].CreatedAt) {
			return sites[i].ID < sites[j].ID
		}
		return sites[i].CreatedAt.Before(sites[j].CreatedAt)
	})
}

func cloneSite(site domain.Site) domain.Site {
	out := site
	if site.AllowedOrigins != nil {
		out.AllowedOrigins = append([]string(nil), site.AllowedOrigins...)
	}

	return out
}
