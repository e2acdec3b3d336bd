package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"talent-exam-service/internal/domain"
)

// countingLoader counts upstream loads to observe cache behavior.
type countingLoader struct {
	loads     int64
	questions []domain.Question
}

func (l *countingLoader) LoadQuestions(_ context.Context, contestID, slotID string) ([]domain.Question, error) {
	atomic.AddInt64(&l.loads, 1)
	return l.questions, nil
}

func TestQuestionCacheReadThrough(t *testing.T) {
	loader := &countingLoader{questions: []domain.Question{{ID: "q1"}}}
	cache := NewQuestionCache(loader, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		qs, err := cache.GetQuestions(ctx, "contest-1", "Slot-1")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if len(qs) != 1 || qs[0].ID != "q1" {
			t.Fatalf("unexpected questions: %+v", qs)
		}
	}
	if got := atomic.LoadInt64(&loader.loads); got != 1 {
		t.Fatalf("expected a single upstream load, got %d", got)
	}
}

func TestQuestionCacheInvalidateForcesReload(t *testing.T) {
	loader := &countingLoader{questions: []domain.Question{{ID: "q1"}}}
	cache := NewQuestionCache(loader, time.Hour)
	ctx := context.Background()

	if _, err := cache.GetQuestions(ctx, "contest-1", "Slot-1"); err != nil {
		t.Fatalf("warm: %v", err)
	}
	loader.questions = []domain.Question{{ID: "q1"}, {ID: "q2"}}
	cache.Invalidate("contest-1", "Slot-1")

	qs, err := cache.GetQuestions(ctx, "contest-1", "Slot-1")
	if err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected reloaded set of 2, got %+v", qs)
	}
	if got := atomic.LoadInt64(&loader.loads); got != 2 {
		t.Fatalf("expected 2 upstream loads, got %d", got)
	}
}

func TestQuestionCacheExpiryReloads(t *testing.T) {
	loader := &countingLoader{questions: []domain.Question{{ID: "q1"}}}
	cache := NewQuestionCache(loader, time.Hour)

	current := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	cache.clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	ctx := context.Background()

	if _, err := cache.GetQuestions(ctx, "contest-1", "Slot-1"); err != nil {
		t.Fatalf("warm: %v", err)
	}

	// Jitter adds at most 10%, so 2x TTL is always past expiry.
	mu.Lock()
	current = current.Add(2 * time.Hour)
	mu.Unlock()

	if _, err := cache.GetQuestions(ctx, "contest-1", "Slot-1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if got := atomic.LoadInt64(&loader.loads); got != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", got)
	}
}

func TestQuestionCacheHitReturnsCopy(t *testing.T) {
	loader := &countingLoader{questions: []domain.Question{{ID: "q1"}, {ID: "q2"}}}
	cache := NewQuestionCache(loader, time.Hour)
	ctx := context.Background()

	first, err := cache.GetQuestions(ctx, "contest-1", "Slot-1")
	if err != nil {
		t.Fatalf("warm: %v", err)
	}
	first[0].ID = "mutated"

	again, err := cache.GetQuestions(ctx, "contest-1", "Slot-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again[0].ID != "q1" {
		t.Fatalf("caller mutation must not leak into the cache, got %+v", again)
	}
}

// Concurrent cold reads collapse into one upstream load via singleflight.
func TestQuestionCacheSingleflight(t *testing.T) {
	loader := &countingLoader{questions: []domain.Question{{ID: "q1"}}}
	cache := NewQuestionCache(loader, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetQuestions(ctx, "contest-1", "Slot-1"); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&loader.loads); got != 1 {
		t.Fatalf("expected collapsed single load, got %d", got)
	}
}
