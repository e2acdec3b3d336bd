package app

import (
	"context"
	"log"
	"time"
)

// ReservationJanitor releases seats held by bookings that never paid.
// A Pending booking older than the TTL moves to Failed and its seat goes
// back to the pool; the identity constraint stays, so the user resumes via
// payment rather than registering twice.
type ReservationJanitor struct {
	bookings BookingStore
	seats    SeatCounter
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewReservationJanitor(bookings BookingStore, seats SeatCounter, ttl, interval time.Duration) *ReservationJanitor {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReservationJanitor{
		bookings: bookings,
		seats:    seats,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// NewReservationJanitorWithClock is test-only for deterministic sweeps.
func NewReservationJanitorWithClock(bookings BookingStore, seats SeatCounter, ttl, interval time.Duration, now func() time.Time) *ReservationJanitor {
	j := NewReservationJanitor(bookings, seats, ttl, interval)
	j.now = now
	return j
}

// Run sweeps on a ticker until the context is canceled.
func (j *ReservationJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep fails expired unpaid bookings and hands their seats back. MarkFailed
// is conditional on the booking still being Pending, so a payment landing
// mid-sweep wins and the seat is not released twice.
func (j *ReservationJanitor) Sweep(ctx context.Context) {
	cutoff := j.now().Add(-j.ttl)
	expired, err := j.bookings.FindUnpaidBefore(ctx, cutoff)
	if err != nil {
		log.Printf("janitor: list unpaid bookings: %v", err)
		return
	}
	for _, b := range expired {
		failed, err := j.bookings.MarkFailed(ctx, b.ID)
		if err != nil {
			log.Printf("janitor: fail booking %s: %v", b.ID, err)
			continue
		}
		if !failed {
			continue
		}
		if err := j.seats.Release(ctx, b.ContestID, b.SlotID); err != nil {
			log.Printf("janitor: release seat for booking %s: %v", b.ID, err)
		}
	}
}
