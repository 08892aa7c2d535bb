package middlewares

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdeck/helpdeck/internal/auth"
	"github.com/helpdeck/helpdeck/internal/domain"
)

// newProtectedApp maps domain auth errors to 401 the way the server's error
// handler does, so middleware behavior is observable through status codes.
func newProtectedApp(t *testing.T, issuer *auth.TokenIssuer, kinds ...auth.TokenKind) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.SendStatus(fiberErr.Code)
			}
			if kind, ok := domain.KindOf(err); ok && kind == domain.ErrorKindAuth {
				return c.SendStatus(fiber.StatusUnauthorized)
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	app.Get("/protected", func(c fiber.Ctx) error {
		claims := ClaimsFromContext(c)
		require.NotNil(t, claims)
		return c.JSON(fiber.Map{"site_id": claims.SiteID})
	}, RequireToken(issuer, kinds...))

	return app
}

func TestRequireToken(t *testing.T) {
	issuer := auth.NewTokenIssuer("test-secret", 10*time.Minute)
	app := newProtectedApp(t, issuer, auth.TokenKindWidget)

	widgetToken, _, err := issuer.IssueWidgetToken("site-1", auth.IssuedBySecret)
	require.NoError(t, err)
	ownerToken, _, err := issuer.IssueOwnerToken("user-1", time.Hour)
	require.NoError(t, err)
	forged, _, err := auth.NewTokenIssuer("wrong-secret", 10*time.Minute).
		IssueWidgetToken("site-1", auth.IssuedBySecret)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		status     int
	}{
		{"valid widget token", "Bearer " + widgetToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer scheme", "Basic abc", http.StatusUnauthorized},
		{"forged token", "Bearer " + forged, http.StatusUnauthorized},
		{"wrong kind", "Bearer " + ownerToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()

	var extracted string
	app.Get("/", func(c fiber.Ctx) error {
		extracted = BearerToken(c)
		return c.SendString("ok")
	})

	tests := []struct {
		header   string
		expected string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Bearer  abc123 ", "abc123"},
		{"Basic abc123", ""},
		{"Bearer ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}

		resp, err := app.Test(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tt.expected, extracted, "header %q", tt.header)
	}
}
