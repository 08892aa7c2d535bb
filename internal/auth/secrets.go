package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SecretPrefix marks widget secrets so leaked values are recognizable in
// logs and repositories without storing anything reversible server-side.
const SecretPrefix = "hd_sk_"

const secretByteLen = 32

// GenerateSecret returns a new widget secret. The raw value is shown to the
// caller exactly once; only the bcrypt hash is persisted.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}

	return SecretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSecret derives the stored form of a widget secret.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}

	return string(hash), nil
}

// VerifySecret reports whether secret matches the stored hash.
func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
