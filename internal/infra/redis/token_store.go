package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenStore keeps one-time result tokens in Redis. GETDEL makes redemption
// an atomic check-and-delete, so a token is honored at most once even across
// server instances; TTL doubles as the expiry.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func tokenKey(token string) string {
	return "talent:token:" + token
}

func (s *TokenStore) Issue(ctx context.Context, bookingID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, tokenKey(token), bookingID, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *TokenStore) Redeem(ctx context.Context, token string) (string, bool, error) {
	bookingID, err := s.client.GetDel(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return bookingID, true, nil
}
