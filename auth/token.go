// Package auth mints the short-lived service credential sent to the cache API.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAudience = "api.serlo.org"
	DefaultTTL      = 2 * time.Hour
	DefaultLeeway   = 5 * time.Minute

	// Scheme prefixes the token in the Authorization header.
	Scheme = "Serlo Service="
)

var ErrNoSecret = errors.New("auth: shared secret is required")

// ServiceToken signs HS256 tokens that identify Service to the cache API.
// Tokens are reused until less than Leeway of their lifetime remains.
// Safe for concurrent use.
type ServiceToken struct {
	Service  string        // token issuer
	Secret   []byte        // shared HMAC secret
	Audience string        // "" => DefaultAudience
	TTL      time.Duration // 0 => DefaultTTL
	Leeway   time.Duration // 0 => DefaultLeeway

	now func() time.Time // tests

	mu      sync.Mutex
	token   string
	expires time.Time
}

// Authorization returns the Authorization header value, minting a token if needed.
func (t *ServiceToken) Authorization(ctx context.Context) (string, error) {
	tok, err := t.Token(ctx)
	if err != nil {
		return "", err
	}
	return Scheme + tok, nil
}

// Token returns a signed JWT, reusing the cached one while it is fresh.
func (t *ServiceToken) Token(_ context.Context) (string, error) {
	if len(t.Secret) == 0 {
		return "", ErrNoSecret
	}
	now := time.Now()
	if t.now != nil {
		now = t.now()
	}
	leeway := t.Leeway
	if leeway == 0 {
		leeway = DefaultLeeway
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token != "" && now.Add(leeway).Before(t.expires) {
		return t.token, nil
	}

	ttl := t.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	aud := t.Audience
	if aud == "" {
		aud = DefaultAudience
	}
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    t.Service,
		Audience:  jwt.ClaimStrings{aud},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", err
	}
	t.token, t.expires = signed, exp
	return signed, nil
}
