package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenStore is an in-memory one-time token store. Redemption is an atomic
// check-and-delete under the mutex, so a token is honored at most once even
// when concurrent requests present it simultaneously. Expiry is checked on
// read rather than trusted to timers.
type TokenStore struct {
	mu     sync.Mutex
	clock  func() time.Time
	tokens map[string]issuedToken
}

type issuedToken struct {
	bookingID string
	expiresAt time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{clock: time.Now, tokens: make(map[string]issuedToken)}
}

// NewTokenStoreWithClock is test-only for deterministic expiry.
func NewTokenStoreWithClock(clock func() time.Time) *TokenStore {
	s := NewTokenStore()
	s.clock = clock
	return s
}

func (s *TokenStore) Issue(_ context.Context, bookingID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = issuedToken{bookingID: bookingID, expiresAt: s.clock().Add(ttl)}
	return token, nil
}

func (s *TokenStore) Redeem(_ context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issued, ok := s.tokens[token]
	if !ok {
		return "", false, nil
	}
	delete(s.tokens, token)
	if s.clock().After(issued.expiresAt) {
		return "", false, nil
	}
	return issued.bookingID, true, nil
}
