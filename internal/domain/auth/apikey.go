// Package auth authenticates admin API requests via HMAC-SHA256 hashed API
// keys. Raw keys are never stored; the database holds only peppered hashes.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for unknown keys, hash mismatches, and missing
// scopes. It is deliberately indistinguishable across causes.
var ErrUnauthorized = errors.New("unauthorized")

// Scopes gate the admin surface.
const (
	// ScopeAdmin allows discount code management and catalog repricing.
	ScopeAdmin = "admin"
)

// APIKey holds the identity and permission data for a validated API key.
type APIKey struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries the given scope.
func (k *APIKey) HasScope(scope string) bool {
	return slices.Contains(k.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}

// Authenticator validates raw API keys against the repository.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator with the given repository and
// HMAC pepper.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// HashKey computes the hex-encoded HMAC-SHA256 of a raw key under the
// configured pepper. Used both for lookups and when minting new keys.
func (a *Authenticator) HashKey(raw string) string {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate validates a raw API key and returns its stored record. The
// stored hash is re-compared in constant time to guard against timing
// side-channels on a stale or wrong row.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*APIKey, error) {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(raw))
	computed := mac.Sum(nil)

	key, err := a.keys.FindByHash(ctx, hex.EncodeToString(computed))
	if err != nil {
		return nil, ErrUnauthorized
	}

	stored, err := hex.DecodeString(key.KeyHash)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(computed, stored) != 1 {
		return nil, ErrUnauthorized
	}
	return key, nil
}
