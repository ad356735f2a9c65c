package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// ChallengeMethodS256 is the only supported PKCE challenge method.
const ChallengeMethodS256 = "S256"

const (
	verifierBytes = 32
	stateBytes    = 32
)

// NewVerifier returns a PKCE code verifier of 43 URL-safe characters.
func NewVerifier() (string, error) {
	return randomToken(verifierBytes)
}

// Challenge derives the S256 code challenge of verifier.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewState returns an unguessable state token.
func NewState() (string, error) {
	return randomToken(stateBytes)
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
