package redis

import (
	"context"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

// questionChannel carries "contestID:slotID" messages published whenever a
// question is created, edited, or deleted.
const questionChannel = "talent:questions:changed"

// PublishQuestionChange notifies every instance that a slot's question set
// mutated. Admin mutation paths call this after the store write.
func PublishQuestionChange(ctx context.Context, client *redis.Client, contestID, slotID string) error {
	return client.Publish(ctx, questionChannel, contestID+":"+slotID).Err()
}

// QuestionInvalidator subscribes to the change feed and drops only the
// affected cache entry. Unlike process-local timers, the feed reaches every
// server instance and survives restarts (the cache simply reloads).
type QuestionInvalidator struct {
	client *redis.Client
	cache  *QuestionCache
}

func NewQuestionInvalidator(client *redis.Client, cache *QuestionCache) *QuestionInvalidator {
	return &QuestionInvalidator{client: client, cache: cache}
}

// Run consumes change events until the context is canceled.
func (inv *QuestionInvalidator) Run(ctx context.Context) error {
	sub := inv.client.Subscribe(ctx, questionChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			contestID, slotID, found := strings.Cut(msg.Payload, ":")
			if !found {
				log.Printf("invalidator: malformed change event %q", msg.Payload)
				continue
			}
			if err := inv.cache.Invalidate(ctx, contestID, slotID); err != nil {
				log.Printf("invalidator: drop %s:%s: %v", contestID, slotID, err)
			}
		}
	}
}
