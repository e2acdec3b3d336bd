package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"talent-exam-service/internal/domain"
)

// ContestStore loads contest definitions.
type ContestStore interface {
	GetContest(ctx context.Context, contestID string) (domain.Contest, error)
}

// BookingStore persists bookings. InsertBooking must enforce the unique
// (contestID, email) and (contestID, phone) constraints and return
// domain.ErrDuplicateRegistration when either is violated.
type BookingStore interface {
	InsertBooking(ctx context.Context, b domain.Booking) error
	GetBooking(ctx context.Context, bookingID string) (domain.Booking, error)
	SetPayment(ctx context.Context, bookingID, orderID string, paid bool, status domain.BookingStatus) error
	// MarkExamTaken flips examTaken exactly once; it returns false without
	// error when the flag was already set.
	MarkExamTaken(ctx context.Context, bookingID string, score float64, at time.Time) (bool, error)
	// MarkFailed moves a Pending booking to Failed; false when the booking
	// was not Pending anymore.
	MarkFailed(ctx context.Context, bookingID string) (bool, error)
	CountSlot(ctx context.Context, contestID, slotID string) (int, error)
	FindUnpaidBefore(ctx context.Context, cutoff time.Time) ([]domain.Booking, error)
}

// SeatCounter is the single shared mutable resource on the admission path.
// Reserve must be atomic with respect to the capacity ceiling: for capacity N,
// at most N Reserve calls may ever return true between matching Releases.
type SeatCounter interface {
	Reserve(ctx context.Context, contestID, slotID string, capacity int) (bool, error)
	Release(ctx context.Context, contestID, slotID string) error
}

// RegistrationRequest carries the identity and slot choice for one registration.
type RegistrationRequest struct {
	ContestID string `json:"contestId"`
	SlotID    string `json:"slotId"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	ExamDate  string `json:"examDate"`
}

// RegistrationService is the slot admission controller: it decides whether a
// registration may proceed given current occupancy and performs the atomic
// seat reservation.
type RegistrationService struct {
	contests ContestStore
	bookings BookingStore
	seats    SeatCounter
	now      func() time.Time
}

func NewRegistrationService(contests ContestStore, bookings BookingStore, seats SeatCounter) *RegistrationService {
	return &RegistrationService{
		contests: contests,
		bookings: bookings,
		seats:    seats,
		now:      time.Now,
	}
}

// NewRegistrationServiceWithClock is test-only for deterministic timestamps.
func NewRegistrationServiceWithClock(contests ContestStore, bookings BookingStore, seats SeatCounter, now func() time.Time) *RegistrationService {
	s := NewRegistrationService(contests, bookings, seats)
	s.now = now
	return s
}

// Register reserves a seat and creates the booking. The seat is taken through
// the atomic counter before the insert; any later failure hands it back, so
// the counter never exceeds capacity and never leaks a seat.
func (s *RegistrationService) Register(ctx context.Context, req RegistrationRequest) (domain.Booking, error) {
	if req.Name == "" || req.Email == "" || req.Phone == "" {
		return domain.Booking{}, fmt.Errorf("%w: name, email and phone are required", domain.ErrValidation)
	}
	if _, err := domain.ParseExamDate(req.ExamDate); err != nil {
		return domain.Booking{}, err
	}

	contest, err := s.contests.GetContest(ctx, req.ContestID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !contest.IsActive {
		return domain.Booking{}, domain.ErrContestInactive
	}
	if !domain.ValidSlot(req.SlotID) {
		return domain.Booking{}, domain.ErrInvalidSlot
	}

	ok, err := s.seats.Reserve(ctx, req.ContestID, req.SlotID, contest.MaxPerSlot)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("reserve seat: %w", err)
	}
	if !ok {
		return domain.Booking{}, domain.ErrSlotFull
	}

	booking := domain.Booking{
		ID:             uuid.NewString(),
		ContestID:      req.ContestID,
		SlotID:         req.SlotID,
		UserID:         req.UserID,
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:          strings.TrimSpace(req.Phone),
		ExamDate:       req.ExamDate,
		RegistrationAt: s.now(),
		Password:       generatePassword(),
		Status:         domain.StatusPending,
	}

	if err := s.bookings.InsertBooking(ctx, booking); err != nil {
		_ = s.seats.Release(ctx, req.ContestID, req.SlotID)
		return domain.Booking{}, err
	}
	return booking, nil
}

// SlotOccupancy reports the current booking count and fullness for one slot.
type SlotOccupancy struct {
	SlotID    string `json:"slotId"`
	Count     int    `json:"count"`
	IsFull    bool   `json:"isFull"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// SlotCounts returns occupancy for every slot of a contest, in display order.
func (s *RegistrationService) SlotCounts(ctx context.Context, contestID string) ([]SlotOccupancy, error) {
	contest, err := s.contests.GetContest(ctx, contestID)
	if err != nil {
		return nil, err
	}
	out := make([]SlotOccupancy, 0, len(domain.SlotIDs()))
	for _, slotID := range domain.SlotIDs() {
		count, err := s.bookings.CountSlot(ctx, contestID, slotID)
		if err != nil {
			return nil, err
		}
		window, _ := domain.SlotWindowFor(slotID)
		out = append(out, SlotOccupancy{
			SlotID:    slotID,
			Count:     count,
			IsFull:    count >= contest.MaxPerSlot,
			StartTime: window.Start.Display(),
			EndTime:   window.End.Display(),
		})
	}
	return out, nil
}

const passwordChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789@#$!%*?"

// generatePassword issues the booking's random secret (8-16 chars). It gates
// exam entry, so it draws from crypto/rand rather than a seeded source.
func generatePassword() string {
	buf := make([]byte, 17)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	length := 8 + int(buf[0])%9
	b := make([]byte, length)
	for i := range b {
		b[i] = passwordChars[int(buf[i+1])%len(passwordChars)]
	}
	return string(b)
}
