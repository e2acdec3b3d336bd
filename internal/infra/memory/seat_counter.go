package memory

import (
	"context"
	"sync"
)

// SeatCounter is an in-memory bounded seat counter. The mutex is the
// serialization point: check and increment happen in one critical section,
// so concurrent reservations can never exceed the ceiling.
type SeatCounter struct {
	mu    sync.Mutex
	seats map[string]int
}

func NewSeatCounter() *SeatCounter {
	return &SeatCounter{seats: make(map[string]int)}
}

func (c *SeatCounter) Reserve(_ context.Context, contestID, slotID string, capacity int) (bool, error) {
	key := slotKey(contestID, slotID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seats[key] >= capacity {
		return false, nil
	}
	c.seats[key]++
	return true, nil
}

func (c *SeatCounter) Release(_ context.Context, contestID, slotID string) error {
	key := slotKey(contestID, slotID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seats[key] > 0 {
		c.seats[key]--
	}
	return nil
}

// Occupied reports the current reservation count (tests and demos).
func (c *SeatCounter) Occupied(contestID, slotID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seats[slotKey(contestID, slotID)]
}
