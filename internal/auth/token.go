package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type TokenKind string

const (
	TokenKindWidget TokenKind = "widget"
	TokenKindOwner  TokenKind = "owner"
)

const (
	IssuedBySecret = "secret"
	IssuedByOwner  = "owner"
)

// Claims is the verified content of a helpdeck token. Widget tokens scope a
// single site; owner tokens identify a dashboard user via the subject claim.
type Claims struct {
	SiteID   string    `json:"site_id,omitempty"`
	Kind     TokenKind `json:"kind"`
	IssuedBy string    `json:"issued_by,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens. Verification always checks
// the signature and expiry; a token that merely decodes is never trusted.
type TokenIssuer struct {
	secret        []byte
	ttl           time.Duration
	signingMethod jwt.SigningMethod
	now           func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:        []byte(secret),
		ttl:           ttl,
		signingMethod: jwt.SigningMethodHS256,
		now:           time.Now,
	}
}

// IssueWidgetToken mints a short-lived token scoped to one site. issuedBy
// records which trust path produced it (widget secret or owner session).
func (i *TokenIssuer) IssueWidgetToken(siteID, issuedBy string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		SiteID:   siteID,
		Kind:     TokenKindWidget,
		IssuedBy: issuedBy,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(i.signingMethod, claims)

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign widget token: %w", err)
	}

	return signed, expiresAt, nil
}

// IssueOwnerToken mints a token identifying a dashboard user.
func (i *TokenIssuer) IssueOwnerToken(ownerUserID string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		Kind: TokenKindOwner,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerUserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(i.signingMethod, claims)

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign owner token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify parses tokenString, rejecting wrong algorithms, bad signatures and
// expired tokens before returning the claims.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != i.signingMethod.Alg() {
			return nil, fmt.Errorf("token algorithm %s does not match as expected", token.Method.Alg())
		}

		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, domain.AuthError("invalid or expired token")
	}

	if !token.Valid {
		return nil, domain.AuthError("invalid token")
	}

	return claims, nil
}

// WithClock overrides the issuer clock, used by tests to drive expiry.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}
