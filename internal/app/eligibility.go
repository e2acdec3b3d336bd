package app

import (
	"context"
	"fmt"
	"time"

	"talent-exam-service/internal/domain"
)

// EligibilityState is the exam-window state for one booking at one instant.
type EligibilityState string

const (
	EligibilityNotPaid   EligibilityState = "not_paid"
	EligibilityWrongDate EligibilityState = "wrong_date"
	EligibilityTooEarly  EligibilityState = "too_early"
	EligibilityOpen      EligibilityState = "open"
	EligibilityClosed    EligibilityState = "closed"
)

// DefaultEarlyEntry is how long before slot start a participant may enter.
const DefaultEarlyEntry = 10 * time.Minute

// Eligibility is the evaluator's verdict, with countdown fields for client UIs.
type Eligibility struct {
	State      EligibilityState `json:"state"`
	Eligible   bool             `json:"eligible"`
	Message    string           `json:"message"`
	BookingID  string           `json:"bookingId"`
	SlotID     string           `json:"slotId"`
	StartTime  string           `json:"startTime"`
	EndTime    string           `json:"endTime"`
	CanStartIn int64            `json:"canStartIn"` // seconds until slot start, >= 0
}

// EvaluateWindow computes the exam-window state for a booking. It is pure:
// no I/O, O(1), safe to call at polling frequency. All comparisons happen in
// IST against the single now instant passed in.
func EvaluateWindow(b domain.Booking, now time.Time, earlyEntry time.Duration) (Eligibility, error) {
	window, ok := domain.SlotWindowFor(b.SlotID)
	if !ok {
		return Eligibility{}, domain.ErrInvalidSlot
	}

	out := Eligibility{
		BookingID: b.ID,
		SlotID:    b.SlotID,
		StartTime: window.Start.Display(),
		EndTime:   window.End.Display(),
	}

	// Payment guard comes before any time-based state.
	if !b.IsPaid {
		out.State = EligibilityNotPaid
		out.Message = "Payment not found or not completed."
		return out, nil
	}

	nowIST := now.In(domain.IST())
	today := domain.CivilDate(nowIST)
	if _, err := domain.ParseExamDate(b.ExamDate); err != nil {
		return Eligibility{}, err
	}
	// ISO dates compare correctly as strings.
	if b.ExamDate < today {
		out.State = EligibilityWrongDate
		out.Message = fmt.Sprintf("Your booked exam date (%s) has already passed.", b.ExamDate)
		return out, nil
	}
	if b.ExamDate > today {
		out.State = EligibilityWrongDate
		out.Message = fmt.Sprintf("Your booked exam date is %s. You can join only on that date.", b.ExamDate)
		return out, nil
	}

	slotStart, slotEnd, err := window.On(b.ExamDate)
	if err != nil {
		return Eligibility{}, err
	}
	entryOpens := slotStart.Add(-earlyEntry)

	switch {
	case nowIST.After(slotEnd):
		out.State = EligibilityClosed
		out.Message = fmt.Sprintf("You missed your exam slot (%s - %s).", out.StartTime, out.EndTime)
	case nowIST.Before(entryOpens):
		out.State = EligibilityTooEarly
		// Countdown targets the slot start, not the early-entry point.
		out.CanStartIn = int64(slotStart.Sub(nowIST) / time.Second)
		out.Message = fmt.Sprintf("Your slot starts at %s. You can join %d minutes before.", out.StartTime, int64(earlyEntry/time.Minute))
	default:
		out.State = EligibilityOpen
		out.Eligible = true
		remaining := int64(slotStart.Sub(nowIST) / time.Second)
		if remaining < 0 {
			remaining = 0
		}
		out.CanStartIn = remaining
		if remaining > 0 {
			out.Message = "Your exam will start soon."
		} else {
			out.Message = "You are eligible to start the exam."
		}
	}
	return out, nil
}

// EligibilityService resolves a booking and evaluates its window.
type EligibilityService struct {
	bookings   BookingStore
	earlyEntry time.Duration
	now        func() time.Time
}

func NewEligibilityService(bookings BookingStore, earlyEntry time.Duration) *EligibilityService {
	if earlyEntry <= 0 {
		earlyEntry = DefaultEarlyEntry
	}
	return &EligibilityService{bookings: bookings, earlyEntry: earlyEntry, now: time.Now}
}

// NewEligibilityServiceWithClock is test-only for deterministic time.
func NewEligibilityServiceWithClock(bookings BookingStore, earlyEntry time.Duration, now func() time.Time) *EligibilityService {
	s := NewEligibilityService(bookings, earlyEntry)
	s.now = now
	return s
}

// Check evaluates whether the booking's holder may currently enter the exam.
func (s *EligibilityService) Check(ctx context.Context, bookingID string) (Eligibility, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return Eligibility{}, err
	}
	return EvaluateWindow(booking, s.now(), s.earlyEntry)
}
