package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/helpdeck/helpdeck/internal/auth"
	"github.com/helpdeck/helpdeck/internal/domain"
)

const localsClaims = "token_claims"

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RequireToken enforces a verified bearer token of one of the given kinds
// and stores the claims for downstream handlers.
func RequireToken(verifier TokenVerifier, kinds ...auth.TokenKind) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return domain.AuthError("missing bearer token")
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("Token verification failed")
			return domain.AuthError("invalid or expired token")
		}

		if len(kinds) > 0 && !kindAllowed(claims.Kind, kinds) {
			return fiber.NewError(fiber.StatusForbidden, "token not allowed for this endpoint")
		}

		c.Locals(localsClaims, claims)

		return c.Next()
	}
}

// ClaimsFromContext returns the claims stored by RequireToken, or nil when
// the request was not authenticated.
func ClaimsFromContext(c fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(localsClaims).(*auth.Claims)
	return claims
}

// BearerToken extracts the token from the Authorization header, or returns
// the empty string when the header is absent or not a bearer scheme.
func BearerToken(c fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)

	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}

func kindAllowed(kind auth.TokenKind, kinds []auth.TokenKind) bool {
	for _, allowed := range kinds {
		if kind == allowed {
			return true
		}
	}

	return false
}
