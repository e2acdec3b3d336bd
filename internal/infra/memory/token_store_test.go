package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTokenRedeemOnce(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	token, err := s.Issue(ctx, "b1", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	owner, ok, err := s.Redeem(ctx, token)
	if err != nil || !ok || owner != "b1" {
		t.Fatalf("expected redemption for b1, got owner=%q ok=%v err=%v", owner, ok, err)
	}
	if _, ok, _ := s.Redeem(ctx, token); ok {
		t.Fatalf("token must not redeem twice")
	}
}

func TestTokenExpiry(t *testing.T) {
	current := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	s := NewTokenStoreWithClock(func() time.Time { return current })
	ctx := context.Background()

	token, err := s.Issue(ctx, "b1", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	current = current.Add(2 * time.Minute)

	if _, ok, _ := s.Redeem(ctx, token); ok {
		t.Fatalf("expired token must not redeem")
	}
}

func TestTokenUnknownIsRejected(t *testing.T) {
	s := NewTokenStore()
	if _, ok, err := s.Redeem(context.Background(), "nope"); ok || err != nil {
		t.Fatalf("expected clean rejection, got ok=%v err=%v", ok, err)
	}
}

// Concurrent presentations of the same token yield exactly one winner.
func TestTokenConcurrentRedeem(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()
	token, err := s.Issue(ctx, "b1", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	const attempts = 10
	var wg sync.WaitGroup
	wins := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, ok, _ := s.Redeem(ctx, token)
			wins[n] = ok
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range wins {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}
}
