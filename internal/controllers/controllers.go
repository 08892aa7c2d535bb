// Package controllers holds the HTTP handlers. Controllers bind and validate
// request payloads, resolve which site a request operates on, and delegate to
// the managers; domain errors flow back to the server's error handler.
package controllers

import (
	"github.com/gofiber/fiber/v3"

	"github.com/helpdeck/helpdeck/internal/auth"
	"github.com/helpdeck/helpdeck/internal/domain"
	"github.com/helpdeck/helpdeck/internal/middlewares"
)

// resolveSiteID picks the tenant a request operates on. Widget tokens are
// pinned to the site they were minted for; naming a different site in the
// payload is rejected rather than silently redirected. Owner tokens must name
// the site explicitly, and ownership is verified against the store before any
// site-scoped operation runs.
func resolveSiteID(claims *auth.Claims, requested string) (string, error) {
	if claims == nil {
		return "", domain.AuthError("missing bearer token")
	}

	switch claims.Kind {
	case auth.TokenKindWidget:
		if requested != "" && requested != claims.SiteID {
			return "", fiber.NewError(fiber.StatusForbidden, "token does not match this site")
		}
		return claims.SiteID, nil
	case auth.TokenKindOwner:
		if requested == "" {
			return "", domain.ValidationError("site_id is required")
		}
		return requested, nil
	}

	return "", domain.AuthError("unsupported token kind")
}

// ownerFromContext returns the dashboard user behind an owner token.
func ownerFromContext(c fiber.Ctx) (string, error) {
	claims := middlewares.ClaimsFromContext(c)
	if claims == nil || claims.Kind != auth.TokenKindOwner || claims.Subject == "" {
		return "", domain.AuthError("owner token required")
	}

	return claims.Subject, nil
}

// requireSiteAccess resolves the tenant for an authenticated request and, for
// owner tokens, verifies the caller owns it. Widget tokens carry their own
// site and need no store lookup here.
func requireSiteAccess(c fiber.Ctx, sites domain.SiteManager, requested string) (string, error) {
	claims := middlewares.ClaimsFromContext(c)

	siteID, err := resolveSiteID(claims, requested)
	if err != nil {
		return "", err
	}

	if claims.Kind == auth.TokenKindOwner {
		if _, err := sites.GetForOwner(c.RequestCtx(), siteID, claims.Subject); err != nil {
			return "", err
		}
	}

	return siteID, nil
}

// firstNonEmpty returns the first non-empty identifier. Payloads may name the
// tenant as widget_id or site_id; they are the same value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
