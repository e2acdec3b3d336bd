package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"talent-exam-service/internal/domain"
)

// QuestionLoader fetches question sets from a backing store (e.g., postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, contestID, slotID string) ([]domain.Question, error)
}

// QuestionCache caches the full question set (answer key included) per
// (contest, slot) as a JSON blob in Redis, falling back to the loader on a
// miss. The TTL should cover the longest exam duration; mutations are
// handled by the explicit Invalidate path, not expiry.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func questionKey(contestID, slotID string) string {
	return "talent:questions:" + contestID + ":" + slotID
}

func (c *QuestionCache) GetQuestions(ctx context.Context, contestID, slotID string) ([]domain.Question, error) {
	key := questionKey(contestID, slotID)

	if questions, ok := c.readCache(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if questions, ok := c.readCache(ctx, key); ok {
			return questions, nil
		}

		questions, err := c.loader.LoadQuestions(ctx, contestID, slotID)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(questions); err == nil {
			// Best effort: a failed cache write only costs the next reader a reload.
			_ = c.client.Set(ctx, key, data, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) readCache(ctx context.Context, key string) ([]domain.Question, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

// Invalidate removes only the affected entry, driven by the change feed.
func (c *QuestionCache) Invalidate(ctx context.Context, contestID, slotID string) error {
	return c.client.Del(ctx, questionKey(contestID, slotID)).Err()
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
