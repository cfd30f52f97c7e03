// Package csrf issues and validates the anti-forgery tokens that the
// letter-status server embeds in its pages and expects back in the
// X-CSRFToken header.
package csrf

import (
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// HeaderName is the request header that carries the token.
const HeaderName = "X-CSRFToken"

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = time.Hour

// Tokens is a TTL-bounded set of issued tokens.
//
// A token stays valid for repeated use until it expires; a page keeps
// polling with the token it was rendered with.
type Tokens struct {
	data *gocache.Cache
	ttl  time.Duration
}

// New creates a token set whose tokens expire after ttl. A non-positive ttl
// uses DefaultTTL.
func New(ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tokens{
		data: gocache.New(ttl, ttl*2),
		ttl:  ttl,
	}
}

// Issue creates and records a new token.
func (t *Tokens) Issue() string {
	token := uuid.NewString()
	t.data.Set(token, struct{}{}, gocache.DefaultExpiration)
	return token
}

// Valid reports whether token was issued and has not expired.
func (t *Tokens) Valid(token string) bool {
	if token == "" {
		return false
	}
	_, ok := t.data.Get(token)
	return ok
}

// Revoke invalidates token immediately.
func (t *Tokens) Revoke(token string) {
	t.data.Delete(token)
}

// Count returns the number of live tokens, including expired ones not yet
// cleaned up.
func (t *Tokens) Count() int {
	return t.data.ItemCount()
}

// TTL returns the token lifetime.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}
