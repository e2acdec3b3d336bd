package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"talent-exam-service/internal/domain"
)

// QuestionLoader fetches question sets from a backing store (e.g., postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, contestID, slotID string) ([]domain.Question, error)
}

// QuestionCache is a read-through cache of per-slot question sets. The TTL
// should cover the longest exam duration so an entry never expires mid-exam;
// explicit Invalidate handles upstream mutations. The cache is an
// optimization only: every miss falls through to the loader.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (c *QuestionCache) GetQuestions(ctx context.Context, contestID, slotID string) ([]domain.Question, error) {
	key := slotKey(contestID, slotID)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return copyQuestions(entry.questions), nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.LoadQuestions(ctx, contestID, slotID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedQuestions{
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	// The flight result is shared by every waiter; hand each caller its own
	// slice so a mutation cannot corrupt the cached entry.
	return copyQuestions(result.([]domain.Question)), nil
}

func copyQuestions(qs []domain.Question) []domain.Question {
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	return out
}

// Invalidate drops only the affected entry, driven by the change feed.
func (c *QuestionCache) Invalidate(contestID, slotID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, slotKey(contestID, slotID))
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
