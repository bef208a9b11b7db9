package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const tokenVersion = 1

// devSecret keeps local development working without extra env configuration.
// Production refuses to mint tokens without a real secret.
const devSecret = "dev-embed-auth-secret"

var ErrSecretRequired = errors.New("embed auth secret is required to create sessions")

// sessionPayload is the signed half of a session token.
type sessionPayload struct {
	V    int    `json:"v"`
	Slug string `json:"slug"`
	Exp  int64  `json:"exp"` // unix seconds
}

// TokenSigner mints and verifies stateless embed session tokens. A token is
// base64url(payload) + "." + base64url(HMAC-SHA256(payload)), so no
// server-side session storage is needed.
type TokenSigner struct {
	secret     []byte
	production bool
	now        func() time.Time
}

// NewTokenSigner builds a signer from the configured secret. Outside
// production an empty secret falls back to a fixed development value.
func NewTokenSigner(secret string, production bool) *TokenSigner {
	secret = strings.TrimSpace(secret)
	if secret == "" && !production {
		secret = devSecret
	}
	return &TokenSigner{
		secret:     []byte(secret),
		production: production,
		now:        time.Now,
	}
}

// CookieName returns the per-slug session cookie name.
func CookieName(slug string) string {
	return "ss_embed_" + slug
}

func (s *TokenSigner) sign(payloadB64 string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payloadB64))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Mint creates a signed session token for slug, valid for ttl. Minting
// without a configured secret is a fatal configuration error in production.
func (s *TokenSigner) Mint(slug string, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSecretRequired
	}

	payload := sessionPayload{
		V:    tokenVersion,
		Slug: slug,
		Exp:  s.now().Unix() + int64(ttl.Seconds()),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	payloadB64 := base64.RawURLEncoding.EncodeToString(raw)
	return payloadB64 + "." + s.sign(payloadB64), nil
}

// Verify reports whether token is a valid, unexpired session token bound to
// expectedSlug. Any malformed, forged or expired token is simply invalid;
// callers treat that identically to no credential at all.
func (s *TokenSigner) Verify(token, expectedSlug string) bool {
	if len(s.secret) == 0 {
		return false
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	payloadB64, sigB64 := parts[0], parts[1]

	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	expected, err := base64.RawURLEncoding.DecodeString(s.sign(payloadB64))
	if err != nil {
		return false
	}
	// Constant-time compare before the payload is even decoded.
	if !hmac.Equal(sig, expected) {
		return false
	}

	raw, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return false
	}

	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}

	if payload.V != tokenVersion {
		return false
	}
	if payload.Slug != expectedSlug {
		return false
	}
	if s.now().Unix() > payload.Exp {
		return false
	}

	return true
}
