package app_test

import (
	"testing"
	"time"

	"talent-exam-service/internal/app"
	"talent-exam-service/internal/domain"
)

func boardEntry(id, name string, score float64, takenAt time.Time) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{BookingID: id, Name: name, Score: score, ExamTakenAt: takenAt}
}

func TestLeaderboardOrdering(t *testing.T) {
	base := time.Date(2025, 3, 10, 8, 30, 0, 0, domain.IST())
	hub := app.NewLeaderboardHubWithClock(func() time.Time { return base })

	hub.Record("contest-1", "Slot-1", boardEntry("b1", "Alice", 3.0, base.Add(2*time.Minute)))
	hub.Record("contest-1", "Slot-1", boardEntry("b2", "Bob", 5.0, base.Add(3*time.Minute)))
	// Same score as Alice but finished earlier, so Carol ranks above her.
	hub.Record("contest-1", "Slot-1", boardEntry("b3", "Carol", 3.0, base.Add(1*time.Minute)))

	lb := hub.Snapshot("contest-1", "Slot-1")
	got := []string{}
	for _, e := range lb.Entries {
		got = append(got, e.BookingID)
	}
	want := []string{"b2", "b3", "b1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestLeaderboardRecordUpserts(t *testing.T) {
	base := time.Date(2025, 3, 10, 8, 30, 0, 0, domain.IST())
	hub := app.NewLeaderboardHub()

	hub.Record("contest-1", "Slot-1", boardEntry("b1", "Alice", 1.0, base))
	lb := hub.Record("contest-1", "Slot-1", boardEntry("b1", "Alice", 4.0, base))

	if len(lb.Entries) != 1 {
		t.Fatalf("expected 1 entry after upsert, got %d", len(lb.Entries))
	}
	if lb.Entries[0].Score != 4.0 {
		t.Fatalf("expected updated score 4.0, got %v", lb.Entries[0].Score)
	}
}

func TestLeaderboardSnapshotUnknownBoardIsEmpty(t *testing.T) {
	hub := app.NewLeaderboardHub()
	lb := hub.Snapshot("contest-9", "Slot-9")
	if lb.Entries == nil || len(lb.Entries) != 0 {
		t.Fatalf("expected empty non-nil entries, got %+v", lb.Entries)
	}
	if lb.ContestID != "contest-9" || lb.SlotID != "Slot-9" {
		t.Fatalf("expected board identity on empty snapshot, got %+v", lb)
	}
}

func TestLeaderboardSubscribeReceivesInitialAndUpdates(t *testing.T) {
	base := time.Date(2025, 3, 10, 8, 30, 0, 0, domain.IST())
	hub := app.NewLeaderboardHub()
	hub.Record("contest-1", "Slot-1", boardEntry("b1", "Alice", 2.0, base))

	updates, cancel := hub.Subscribe("contest-1", "Slot-1")
	defer cancel()

	initial := <-updates
	if len(initial.Entries) != 1 || initial.Entries[0].BookingID != "b1" {
		t.Fatalf("expected initial snapshot with b1, got %+v", initial.Entries)
	}

	hub.Record("contest-1", "Slot-1", boardEntry("b2", "Bob", 5.0, base.Add(time.Minute)))
	select {
	case lb := <-updates:
		if len(lb.Entries) != 2 || lb.Entries[0].BookingID != "b2" {
			t.Fatalf("expected update led by b2, got %+v", lb.Entries)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update received after record")
	}
}

// A subscriber that never drains must not block the broadcaster; it just
// loses stale frames and keeps the freshest one.
func TestLeaderboardSlowSubscriberDropsStaleFrames(t *testing.T) {
	base := time.Date(2025, 3, 10, 8, 30, 0, 0, domain.IST())
	hub := app.NewLeaderboardHub()

	updates, cancel := hub.Subscribe("contest-1", "Slot-1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			hub.Record("contest-1", "Slot-1", boardEntry("b1", "Alice", float64(i), base))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked on a slow subscriber")
	}

	// Drain whatever is buffered; the last frame must carry the final score.
	var last domain.Leaderboard
	for {
		select {
		case lb := <-updates:
			last = lb
			continue
		default:
		}
		break
	}
	if len(last.Entries) != 1 || last.Entries[0].Score != 49 {
		t.Fatalf("expected freshest frame with score 49, got %+v", last.Entries)
	}
}

func TestLeaderboardCancelIsSafeTwice(t *testing.T) {
	hub := app.NewLeaderboardHub()
	_, cancel := hub.Subscribe("contest-1", "Slot-1")
	cancel()
	cancel()

	// Board must still broadcast to remaining subscribers.
	updates, cancel2 := hub.Subscribe("contest-1", "Slot-1")
	defer cancel2()
	<-updates
	hub.Record("contest-1", "Slot-1", boardEntry("b1", "Alice", 1.0, time.Now()))
	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatalf("board stopped broadcasting after a canceled subscriber")
	}
}
