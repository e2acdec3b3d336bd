package app

import (
	"sort"
	"sync"
	"time"

	"talent-exam-service/internal/domain"
)

// LeaderboardHub keeps a live scoreboard per (contest, slot) and fans
// updates out to websocket subscribers. Boards are built from scored
// submissions only; the stores stay the source of truth.
type LeaderboardHub struct {
	mu     sync.RWMutex
	boards map[string]*board
	now    func() time.Time
}

func NewLeaderboardHub() *LeaderboardHub {
	return &LeaderboardHub{boards: make(map[string]*board), now: time.Now}
}

// NewLeaderboardHubWithClock is test-only for deterministic timestamps.
func NewLeaderboardHubWithClock(now func() time.Time) *LeaderboardHub {
	h := NewLeaderboardHub()
	h.now = now
	return h
}

func boardKey(contestID, slotID string) string {
	return contestID + "|" + slotID
}

func (h *LeaderboardHub) getOrCreate(contestID, slotID string) *board {
	key := boardKey(contestID, slotID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.boards[key]; ok {
		return b
	}
	b := &board{
		contestID:   contestID,
		slotID:      slotID,
		now:         h.now,
		entries:     make(map[string]domain.LeaderboardEntry),
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
	h.boards[key] = b
	return b
}

// Record upserts a scored booking and broadcasts the new standings.
func (h *LeaderboardHub) Record(contestID, slotID string, entry domain.LeaderboardEntry) domain.Leaderboard {
	return h.getOrCreate(contestID, slotID).record(entry)
}

// Snapshot returns the current standings without subscribing.
func (h *LeaderboardHub) Snapshot(contestID, slotID string) domain.Leaderboard {
	h.mu.RLock()
	b, ok := h.boards[boardKey(contestID, slotID)]
	h.mu.RUnlock()
	if !ok {
		return domain.Leaderboard{ContestID: contestID, SlotID: slotID, Entries: []domain.LeaderboardEntry{}, UpdatedAt: h.now()}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

// Subscribe returns a channel receiving standings updates. The caller must
// invoke the returned cancel function to avoid leaks.
func (h *LeaderboardHub) Subscribe(contestID, slotID string) (<-chan domain.Leaderboard, func()) {
	return h.getOrCreate(contestID, slotID).subscribe()
}

type board struct {
	contestID string
	slotID    string
	now       func() time.Time

	mu          sync.RWMutex
	entries     map[string]domain.LeaderboardEntry
	subscribers map[chan domain.Leaderboard]struct{}
}

func (b *board) record(entry domain.LeaderboardEntry) domain.Leaderboard {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[entry.BookingID] = entry
	return b.broadcastLocked()
}

func (b *board) subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	initial := b.snapshotLocked()
	b.mu.Unlock()

	ch <- initial

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *board) broadcastLocked() domain.Leaderboard {
	lb := b.snapshotLocked()
	for ch := range b.subscribers {
		select {
		case ch <- lb:
		default:
			// Drop the stale update so a slow client never blocks broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb
}

func (b *board) snapshotLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e)
	}

	// Score desc; ties go to whoever finished earlier, then name.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].ExamTakenAt.Equal(entries[j].ExamTakenAt) {
			return entries[i].ExamTakenAt.Before(entries[j].ExamTakenAt)
		}
		return entries[i].Name < entries[j].Name
	})

	return domain.Leaderboard{
		ContestID: b.contestID,
		SlotID:    b.slotID,
		Entries:   entries,
		UpdatedAt: b.now(),
	}
}
