// Package auth generates and verifies tenant API keys. The raw key is
// returned to the caller exactly once, at registration time, and only its
// bcrypt hash is ever persisted.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors" // v0.9.1
	"golang.org/x/crypto/bcrypt"
)

const (
	rawKeyBytes = 32

	// DefaultCost matches config.AuthConfig.BcryptCost's default and is used
	// by callers that construct a Hasher without reading config (tests,
	// one-off tooling).
	DefaultCost = 12
)

// ErrKeyMismatch is returned by Verify when the presented key does not
// match the stored hash.
var ErrKeyMismatch = errors.New("api key does not match")

// Hasher hashes and verifies tenant API keys with a configurable bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher. A cost of 0 falls back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// GenerateKey returns a fresh, high-entropy raw API key suitable for
// presenting to a tenant exactly once.
func GenerateKey() (string, error) {
	buf := make([]byte, rawKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to read random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash computes a salted adaptive hash of a raw API key.
func (h *Hasher) Hash(rawKey string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(rawKey), h.cost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash api key")
	}
	return string(digest), nil
}

// Verify performs a constant-time comparison between a raw API key and a
// stored bcrypt hash (bcrypt's comparison is itself constant-time in the
// digest length, which is what spec §3 requires).
func (h *Hasher) Verify(hash, rawKey string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)); err != nil {
		return ErrKeyMismatch
	}
	return nil
}

// ErrMalformedKey is returned by ParseKey when a presented key doesn't carry
// a recognizable site id segment.
var ErrMalformedKey = errors.New("malformed api key")

const keySeparator = "."

// FormatKey joins a site id and a freshly generated secret into the single
// opaque token a tenant presents on every request. bcrypt hashes can't be
// looked up by value, so the site id rides along in the token itself: the
// auth middleware splits it back out to find which site's hash to verify
// against, and the secret half is what actually gets checked.
func FormatKey(siteID, secret string) string {
	return siteID + keySeparator + secret
}

// ParseKey splits a presented API key back into its site id and secret.
func ParseKey(raw string) (siteID, secret string, err error) {
	idx := strings.Index(raw, keySeparator)
	if idx <= 0 || idx == len(raw)-1 {
		return "", "", ErrMalformedKey
	}
	return raw[:idx], raw[idx+1:], nil
}
