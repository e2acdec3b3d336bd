package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// reserveScript is the atomic bounded increment: the occupancy check and the
// increment run inside one script, so two racing callers can never both take
// the last seat. Returns the new occupancy, or 0 when the slot is full.
var reserveScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
  return 0
end
return redis.call('INCR', KEYS[1])
`)

// releaseScript decrements, never below zero.
var releaseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current <= 0 then
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// SeatCounter enforces the per-(contest, slot) capacity ceiling in Redis, so
// the admission decision stays linearizable across server instances.
type SeatCounter struct {
	client *redis.Client
}

func NewSeatCounter(client *redis.Client) *SeatCounter {
	return &SeatCounter{client: client}
}

func seatKey(contestID, slotID string) string {
	return "talent:seats:" + contestID + ":" + slotID
}

func (c *SeatCounter) Reserve(ctx context.Context, contestID, slotID string, capacity int) (bool, error) {
	taken, err := reserveScript.Run(ctx, c.client, []string{seatKey(contestID, slotID)}, capacity).Int()
	if err != nil {
		return false, err
	}
	return taken > 0, nil
}

func (c *SeatCounter) Release(ctx context.Context, contestID, slotID string) error {
	return releaseScript.Run(ctx, c.client, []string{seatKey(contestID, slotID)}).Err()
}
