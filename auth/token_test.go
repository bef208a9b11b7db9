package auth

import (
	"strings"
	"testing"
	"time"
)

func newTestSigner(secret string) *TokenSigner {
	return NewTokenSigner(secret, false)
}

func TestMintVerify_RoundTrip(t *testing.T) {
	signer := newTestSigner("test-secret")

	tests := []struct {
		name string
		slug string
		ttl  time.Duration
	}{
		{"Simple slug", "juice-factory", time.Hour},
		{"Slug with underscore", "demo_site1", 7 * 24 * time.Hour},
		{"Short ttl", "abc", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := signer.Mint(tt.slug, tt.ttl)
			if err != nil {
				t.Fatalf("Mint() error = %v", err)
			}
			if !signer.Verify(token, tt.slug) {
				t.Errorf("Verify() = false immediately after minting")
			}
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	signer := newTestSigner("test-secret")

	token, err := signer.Mint("demo-site", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	// Move the clock past the expiry
	signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if signer.Verify(token, "demo-site") {
		t.Error("Verify() = true for expired token")
	}
}

func TestVerify_SlugBinding(t *testing.T) {
	signer := newTestSigner("test-secret")

	token, err := signer.Mint("slug-a", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	if signer.Verify(token, "slug-b") {
		t.Error("Verify() = true for a token minted for a different slug")
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	signer := newTestSigner("test-secret")

	token, err := signer.Mint("demo-site", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		t.Fatalf("unexpected token shape: %q", token)
	}

	// Flip one character in the signature segment
	sig := []byte(parts[1])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + string(sig)

	if signer.Verify(tampered, "demo-site") {
		t.Error("Verify() = true for tampered signature")
	}
}

func TestVerify_Malformed(t *testing.T) {
	signer := newTestSigner("test-secret")

	tests := []struct {
		name  string
		token string
	}{
		{"Empty", ""},
		{"No separator", "abcdef"},
		{"Too many parts", "a.b.c"},
		{"Empty payload", ".sig"},
		{"Empty signature", "payload."},
		{"Invalid base64", "!!!.???"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if signer.Verify(tt.token, "demo-site") {
				t.Errorf("Verify(%q) = true, want false", tt.token)
			}
		})
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	minter := newTestSigner("secret-one")
	verifier := newTestSigner("secret-two")

	token, err := minter.Mint("demo-site", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	if verifier.Verify(token, "demo-site") {
		t.Error("Verify() = true under a different secret")
	}
}

func TestMint_SecretRequiredInProduction(t *testing.T) {
	signer := NewTokenSigner("", true)

	if _, err := signer.Mint("demo-site", time.Hour); err != ErrSecretRequired {
		t.Errorf("Mint() error = %v, want ErrSecretRequired", err)
	}
	if signer.Verify("anything.anything", "demo-site") {
		t.Error("Verify() = true with no secret configured")
	}
}

func TestDevFallbackSecret(t *testing.T) {
	// Outside production an empty secret falls back to the dev value, so
	// two independently constructed signers agree.
	a := NewTokenSigner("", false)
	b := NewTokenSigner("", false)

	token, err := a.Mint("demo-site", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if !b.Verify(token, "demo-site") {
		t.Error("dev-fallback signers disagree")
	}
}

func TestCookieName(t *testing.T) {
	if got := CookieName("juice-factory"); got != "ss_embed_juice-factory" {
		t.Errorf("CookieName() = %q", got)
	}
}
