package managers

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/auth"
	"github.com/helpdeck/helpdeck/internal/domain"
)

type siteManager struct {
	sites     domain.SiteStore
	documents domain.DocumentStore
	vectors   domain.VectorStore
}

type SiteManagerDependencies struct {
	SiteStore     domain.SiteStore
	DocumentStore domain.DocumentStore
	VectorStore   domain.VectorStore
}

func NewSiteManager(deps SiteManagerDependencies) domain.SiteManager {
	return &siteManager{
		sites:     deps.SiteStore,
		documents: deps.DocumentStore,
		vectors:   deps.VectorStore,
	}
}

func (m *siteManager) Create(ctx context.Context, ownerUserID, name string, allowedOrigins []string) (domain.Site, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Site{}, "", domain.ValidationError("site name is required")
	}
	if ownerUserID == "" {
		return domain.Site{}, "", domain.ValidationError("owner is required")
	}

	secret, err := auth.GenerateSecret()
	if err != nil {
		return domain.Site{}, "", err
	}

	secretHash, err := auth.HashSecret(secret)
	if err != nil {
		return domain.Site{}, "", err
	}

	now := time.Now().UTC()
	site := domain.Site{
		ID:             uuid.NewString(),
		OwnerUserID:    ownerUserID,
		Name:           name,
		AllowedOrigins: normalizeOrigins(allowedOrigins),
		SecretHash:     secretHash,
		Enabled:        true,
		Settings:       domain.DefaultWidgetSettings(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.sites.Create(ctx, site); err != nil {
		return domain.Site{}, "", err
	}

	log.Info().Str("site_id", site.ID).Str("name", site.Name).Msg("Site created")

	// The raw secret is returned exactly once; only its hash is stored.
	return site, secret, nil
}

func (m *siteManager) Get(ctx context.Context, siteID string) (domain.Site, error) {
	return m.sites.GetByID(ctx, siteID)
}

// GetForOwner hides sites the caller does not own behind not-found, so site
// ids cannot be probed across accounts.
func (m *siteManager) GetForOwner(ctx context.Context, siteID, ownerUserID string) (domain.Site, error) {
	site, err := m.sites.GetByID(ctx, siteID)
	if err != nil {
		return domain.Site{}, err
	}
	if site.OwnerUserID != ownerUserID {
		return domain.Site{}, domain.ErrSiteNotFound
	}

	return site, nil
}

func (m *siteManager) ListForOwner(ctx context.Context, ownerUserID string) ([]domain.Site, error) {
	return m.sites.ListByOwner(ctx, ownerUserID)
}

func (m *siteManager) AuthenticateSecret(ctx context.Context, siteID, secret string) (domain.Site, error) {
	site, err := m.sites.GetByID(ctx, siteID)
	if err != nil {
		return domain.Site{}, domain.AuthError("invalid site or secret")
	}
	if !site.Enabled {
		return domain.Site{}, domain.AuthError("site is disabled")
	}
	if !auth.VerifySecret(site.SecretHash, secret) {
		return domain.Site{}, domain.AuthError("invalid site or secret")
	}

	return site, nil
}

// VerifyOrigin enforces the allow-list for cross-origin widget calls. Requests
// without an Origin header are server-to-server and pass; browsers always send
// one. An empty allow-list denies every cross-origin caller.
func (m *siteManager) VerifyOrigin(ctx context.Context, siteID, origin string) error {
	if origin == "" {
		return nil
	}

	site, err := m.sites.GetByID(ctx, siteID)
	if err != nil {
		return err
	}

	for _, allowed := range site.AllowedOrigins {
		if originMatches(allowed, origin) {
			return nil
		}
	}

	return domain.AuthError("origin not allowed for this site")
}

func (m *siteManager) Update(ctx context.Context, siteID, ownerUserID string, update domain.SiteUpdate) (domain.Site, error) {
	site, err := m.GetForOwner(ctx, siteID, ownerUserID)
	if err != nil {
		return domain.Site{}, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return domain.Site{}, domain.ValidationError("site name is required")
		}
		site.Name = name
	}
	if update.AllowedOrigins != nil {
		site.AllowedOrigins = normalizeOrigins(*update.AllowedOrigins)
	}
	if update.Enabled != nil {
		site.Enabled = *update.Enabled
	}
	if update.Settings != nil {
		if err := validateSettings(*update.Settings); err != nil {
			return domain.Site{}, err
		}
		site.Settings = *update.Settings
	}
	site.UpdatedAt = time.Now().UTC()

	if err := m.sites.Update(ctx, site); err != nil {
		return domain.Site{}, err
	}

	return site, nil
}

// Delete removes the site row, its documents and their chunks. Conversations
// and turns stay behind for audit; with the site gone they are unreachable
// through the API.
func (m *siteManager) Delete(ctx context.Context, siteID, ownerUserID string) error {
	if _, err := m.GetForOwner(ctx, siteID, ownerUserID); err != nil {
		return err
	}

	docs, err := m.documents.ListBySite(ctx, siteID)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := m.vectors.DeleteByDocument(ctx, siteID, doc.ID); err != nil {
			return err
		}
	}

	if err := m.documents.DeleteBySite(ctx, siteID); err != nil {
		return err
	}
	if err := m.sites.Delete(ctx, siteID); err != nil {
		return err
	}

	log.Info().Str("site_id", siteID).Int("documents", len(docs)).Msg("Site deleted")

	return nil
}

func validateSettings(settings domain.WidgetSettings) error {
	if settings.TopK < 1 || settings.TopK > domain.MaxTopK {
		return domain.ValidationError("top_k must be between 1 and 20")
	}
	if settings.Temperature < 0 || settings.Temperature > 1 {
		return domain.ValidationError("temperature must be between 0 and 1")
	}
	switch settings.Position {
	case "bottom-right", "bottom-left":
	default:
		return domain.ValidationError("position must be bottom-right or bottom-left")
	}

	return nil
}

func normalizeOrigins(origins []string) []string {
	normalized := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
		if origin != "" {
			normalized = append(normalized, origin)
		}
	}

	return normalized
}

// originMatches compares one allow-list entry against the request Origin.
// Entries may be full origins ("https://docs.example.com"), bare hosts
// ("docs.example.com") or wildcard hosts ("*.example.com" matches any
// subdomain). A bare "*" is not honored; the allow-list is never allow-all.
func originMatches(allowed, origin string) bool {
	allowed = strings.ToLower(strings.TrimSuffix(allowed, "/"))
	origin = strings.ToLower(strings.TrimSuffix(origin, "/"))

	if allowed == "" || allowed == "*" {
		return false
	}
	if allowed == origin {
		return true
	}

	host := hostOf(origin)
	if host == "" {
		return false
	}

	pattern := hostOf(allowed)
	if pattern == "" {
		pattern = allowed
	}

	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return strings.HasSuffix(host, "."+suffix)
	}

	return host == pattern
}

func hostOf(origin string) string {
	if !strings.Contains(origin, "://") {
		return stripPort(origin)
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}

	return stripPort(u.Host)
}

func stripPort(host string) string {
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}

	return host
}
