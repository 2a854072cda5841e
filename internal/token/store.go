// Package token holds the bearer credential used for backend requests.
package token

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Store keeps the session credential. It is created at session start and
// cleared at logout; every backend request reads it through Get.
//
// The token is opaque to the rest of the application. When it happens to be
// a JWT, the exp claim sets the store's own eviction time; the signature is
// never verified here because the gateway is not the token authority. There
// is no refresh logic: once evicted, requests go out unauthenticated and the
// backend rejects them.
type Store struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time // overridable in tests
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Set stores the credential and, when it decodes as a JWT with an exp claim,
// records the eviction time.
func (s *Store) Set(tok string) {
	var expires time.Time
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			expires = exp.Time
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
	s.expiresAt = expires
}

// Get returns the credential, or ("", false) when absent or past eviction.
func (s *Store) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", false
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		s.token = ""
		s.expiresAt = time.Time{}
		return "", false
	}
	return s.token, true
}

// Clear wipes the credential.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}
