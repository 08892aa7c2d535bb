package managers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdeck/helpdeck/internal/auth"
	"github.com/helpdeck/helpdeck/internal/domain"
	"github.com/helpdeck/helpdeck/internal/storage/memory"
	"github.com/helpdeck/helpdeck/internal/vector"
)

func newSiteManager(t *testing.T) (domain.SiteManager, *memory.DocumentStore, *vector.MemoryStore) {
	t.Helper()

	documents := memory.NewDocumentStore()
	vectors := vector.NewMemoryStore()
	manager := NewSiteManager(SiteManagerDependencies{
		SiteStore:     memory.NewSiteStore(),
		DocumentStore: documents,
		VectorStore:   vectors,
	})

	return manager, documents, vectors
}

func TestSiteManager_Create(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newSiteManager(t)

	site, secret, err := manager.Create(ctx, "owner-1", "Docs Site", []string{"https://docs.example.com"})
	require.NoError(t, err)

	assert.NotEmpty(t, site.ID)
	assert.Equal(t, "owner-1", site.OwnerUserID)
	assert.True(t, site.Enabled)
	assert.True(t, strings.HasPrefix(secret, auth.SecretPrefix))

	// Only the hash is stored; the raw secret appears nowhere in the record.
	stored, err := manager.Get(ctx, site.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.SecretHash)
	assert.NotContains(t, stored.SecretHash, secret)

	// Defaults are applied.
	assert.Equal(t, domain.DefaultTopK, stored.Settings.TopK)
}

func TestSiteManager_CreateValidation(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newSiteManager(t)

	_, _, err := manager.Create(ctx, "owner-1", "   ", nil)
	assert.Error(t, err)

	_, _, err = manager.Create(ctx, "", "Site", nil)
	assert.Error(t, err)
}

func TestSiteManager_AuthenticateSecret(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newSiteManager(t)

	site, secret, err := manager.Create(ctx, "owner-1", "Docs Site", nil)
	require.NoError(t, err)

	authed, err := manager.AuthenticateSecret(ctx, site.ID, secret)
	require.NoError(t, err)
	assert.Equal(t, site.ID, authed.ID)

	_, err = manager.AuthenticateSecret(ctx, site.ID, secret+"x")
	assert.Error(t, err)

	_, err = manager.AuthenticateSecret(ctx, "no-such-site", secret)
	assert.Error(t, err)
}

func TestSiteManager_AuthenticateSecret_DisabledSite(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newSiteManager(t)

	site, secret, err := manager.Create(ctx, "owner-1", "Docs Site", nil)
	require.NoError(t, err)

	disabled := false
	_, err = manager.Update(ctx, site.ID, "owner-1", domain.SiteUpdate{Enabled: &disabled})
	require.NoError(t, err)

	_, err = manager.AuthenticateSecret(ctx, site.ID, secret)
	require.Error(t, err)

	var domainErr *domain.Error
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrorKindAuth, domainErr.Kind)
}

func TestSiteManager_VerifyOrigin(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newSiteManager(t)

	site, _, err := manager.Create(ctx, "owner-1", "Docs Site", []string{
		"https://docs.example.com",
		"*.widgets.example.com",
		"bare-host.example.com",
	})
	require.NoError(t, err)

	empty, _, err := manager.Create(ctx, "owner-1", "Locked Site", nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		siteID  string
		origin  string
		allowed bool
	}{
		{"exact match", site.ID, "https://docs.example.com", true},
		{"exact match trailing slash", site.ID, "https://docs.example.com/", true},
		{"case insensitive", site.ID, "https://DOCS.example.com", true},
		{"wildcard subdomain", site.ID, "https://eu.widgets.example.com", true},
		{"wildcard deep subdomain", site.ID, "https://a.b.widgets.example.com", true},
		{"wildcard does not match apex", site.ID, "https://widgets.example.com", false},
		{"bare host entry", site.ID, "https://bare-host.example.com", true},
		{"bare host with port", site.ID, "https://bare-host.example.com:8443", true},
		{"unlisted origin", site.ID, "https://evil.example.org", false},
		{"scheme only prefix attack", site.ID, "https://docs.example.com.evil.org", false},
		{"no origin header passes", site.ID, "", true},
		{"empty list denies", empty.ID, "https://docs.example.com", false},
		{"empty list without origin passes", empty.ID, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := manager.VerifyOrigin(ctx, tt.siteID, tt.origin)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSiteManager_Update(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newSiteManager(t)

	site, _, err := manager.Create(ctx, "owner-1", "Docs Site", nil)
	require.NoError(t, err)

	name := "Renamed"
	origins := []string{"https://new.example.com/"}
	updated, err := manager.Update(ctx, site.ID, "owner-1", domain.SiteUpdate{
		Name:           &name,
		AllowedOrigins: &origins,
	})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, []string{"https://new.example.com"}, updated.AllowedOrigins)
	assert.True(t, updated.UpdatedAt.After(site.UpdatedAt) || updated.UpdatedAt.Equal(site.UpdatedAt))

	// Another owner cannot touch the site, and cannot learn it exists.
	_, err = manager.Update(ctx, site.ID, "owner-2", domain.SiteUpdate{Name: &name})
	assert.ErrorIs(t, err, domain.ErrSiteNotFound)
}

func TestSiteManager_UpdateRejectsBadSettings(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newSiteManager(t)

	site, _, err := manager.Create(ctx, "owner-1", "Docs Site", nil)
	require.NoError(t, err)

	bad := domain.DefaultWidgetSettings()
	bad.TopK = 100
	_, err = manager.Update(ctx, site.ID, "owner-1", domain.SiteUpdate{Settings: &bad})
	assert.Error(t, err)

	bad = domain.DefaultWidgetSettings()
	bad.Temperature = 3
	_, err = manager.Update(ctx, site.ID, "owner-1", domain.SiteUpdate{Settings: &bad})
	assert.Error(t, err)

	bad = domain.DefaultWidgetSettings()
	bad.Position = "top-center"
	_, err = manager.Update(ctx, site.ID, "owner-1", domain.SiteUpdate{Settings: &bad})
	assert.Error(t, err)
}

func TestSiteManager_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	manager, documents, vectors := newSiteManager(t)

	site, _, err := manager.Create(ctx, "owner-1", "Docs Site", nil)
	require.NoError(t, err)

	doc := domain.Document{
		ID:          "doc-1",
		SiteID:      site.ID,
		SourceKind:  domain.SourceKindFile,
		Location:    "guide.txt",
		ContentHash: "hash-1",
		Status:      domain.DocumentStatusStored,
	}
	require.NoError(t, documents.Create(ctx, doc))
	require.NoError(t, vectors.Upsert(ctx, site.ID, []domain.ChunkPoint{
		{ID: "c1", DocumentID: "doc-1", Vector: []float32{1, 0}},
	}))

	// A stranger cannot delete the site.
	err = manager.Delete(ctx, site.ID, "owner-2")
	assert.ErrorIs(t, err, domain.ErrSiteNotFound)

	require.NoError(t, manager.Delete(ctx, site.ID, "owner-1"))

	_, err = manager.Get(ctx, site.ID)
	assert.ErrorIs(t, err, domain.ErrSiteNotFound)

	docs, err := documents.ListBySite(ctx, site.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	matches, err := vectors.Query(ctx, site.ID, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSiteManager_GetForOwner(t *testing.T) {
	ctx := context.Background()
	manager, _, _ := newSiteManager(t)

	site, _, err := manager.Create(ctx, "owner-1", "Docs Site", nil)
	require.NoError(t, err)

	got, err := manager.GetForOwner(ctx, site.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, site.ID, got.ID)

	_, err = manager.GetForOwner(ctx, site.ID, "owner-2")
	assert.ErrorIs(t, err, domain.ErrSiteNotFound)
}
