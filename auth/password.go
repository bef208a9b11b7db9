package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/scrypt"
)

// passwordChars deliberately omits ambiguous characters (l/1, O/0, i/I) so
// passwords survive being read over the phone.
const passwordChars = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

const derivedPasswordLength = 8

// ErrSeedNotConfigured is the distinct failure for a missing password seed.
// Without the seed, passwords can neither be generated nor regenerated, so
// this must never be reported as a generic error.
var ErrSeedNotConfigured = errors.New("password seed not configured")

// DerivePassword deterministically derives the password for a slug from the
// server-side seed. The same slug and seed always yield the same password,
// which lets independent environments agree on passwords without syncing a
// table. Rotating the seed invalidates every password at once.
func DerivePassword(slug, seed string) (string, error) {
	if seed == "" {
		return "", ErrSeedNotConfigured
	}

	mac := hmac.New(sha256.New, []byte(seed))
	mac.Write([]byte(slug))
	digest := hex.EncodeToString(mac.Sum(nil))

	// First 12 hex chars (48 bits) converted to a readable password. The
	// conversion matches the link-generator tooling: least-significant
	// character first.
	num, err := hexToUint64(digest[:12])
	if err != nil {
		return "", err
	}

	base := uint64(len(passwordChars))
	out := make([]byte, derivedPasswordLength)
	for i := 0; i < derivedPasswordLength; i++ {
		out[i] = passwordChars[num%base]
		num /= base
	}
	return string(out), nil
}

func hexToUint64(s string) (uint64, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n, nil
}

const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltBytes    = 16
)

// NewPasswordSalt returns a fresh random salt, hex encoded.
func NewPasswordSalt() (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return hex.EncodeToString(salt), nil
}

// HashPassword derives the stored scrypt hash for a password and salt.
func HashPassword(password, saltHex string) (string, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", err
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// CheckPassword verifies a candidate password against a stored salt and
// hash in constant time.
func CheckPassword(candidate, saltHex, hashHex string) bool {
	computed, err := HashPassword(candidate, saltHex)
	if err != nil {
		return false
	}
	stored, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	computedRaw, err := hex.DecodeString(computed)
	if err != nil {
		return false
	}
	if len(stored) != len(computedRaw) {
		return false
	}
	return subtle.ConstantTimeCompare(computedRaw, stored) == 1
}
