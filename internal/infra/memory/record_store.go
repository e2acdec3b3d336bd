package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"talent-exam-service/internal/domain"
)

// RecordStore is an in-memory record store for contests, bookings, questions
// and submissions. It enforces the same unique constraints as the postgres
// store and doubles as the question loader in cache-only deployments.
type RecordStore struct {
	mu          sync.RWMutex
	contests    map[string]domain.Contest
	bookings    map[string]domain.Booking
	byEmail     map[string]string            // contestID|email -> bookingID
	byPhone     map[string]string            // contestID|phone -> bookingID
	questions   map[string][]domain.Question // contestID|slotID
	submissions map[string]domain.Submission // bookingID
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		contests:    make(map[string]domain.Contest),
		bookings:    make(map[string]domain.Booking),
		byEmail:     make(map[string]string),
		byPhone:     make(map[string]string),
		questions:   make(map[string][]domain.Question),
		submissions: make(map[string]domain.Submission),
	}
}

func slotKey(contestID, slotID string) string { return contestID + "|" + slotID }
func emailKey(contestID, email string) string { return contestID + "|" + strings.ToLower(email) }
func phoneKey(contestID, phone string) string { return contestID + "|" + phone }

// PutContest seeds or replaces a contest (admin path / tests).
func (s *RecordStore) PutContest(c domain.Contest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contests[c.ID] = c
}

func (s *RecordStore) GetContest(_ context.Context, contestID string) (domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contests[contestID]
	if !ok {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	return c, nil
}

func (s *RecordStore) InsertBooking(_ context.Context, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ek := emailKey(b.ContestID, b.Email)
	pk := phoneKey(b.ContestID, b.Phone)
	if _, exists := s.byEmail[ek]; exists {
		return domain.ErrDuplicateRegistration
	}
	if _, exists := s.byPhone[pk]; exists {
		return domain.ErrDuplicateRegistration
	}
	s.bookings[b.ID] = b
	s.byEmail[ek] = b.ID
	s.byPhone[pk] = b.ID
	return nil
}

func (s *RecordStore) GetBooking(_ context.Context, bookingID string) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, nil
}

func (s *RecordStore) SetPayment(_ context.Context, bookingID, orderID string, paid bool, status domain.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if orderID != "" {
		b.OrderID = orderID
	}
	b.IsPaid = paid
	b.Status = status
	s.bookings[bookingID] = b
	return nil
}

func (s *RecordStore) MarkExamTaken(_ context.Context, bookingID string, score float64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return false, domain.ErrBookingNotFound
	}
	if b.ExamTaken {
		return false, nil
	}
	b.ExamTaken = true
	takenAt := at
	b.ExamTakenAt = &takenAt
	b.Score = score
	s.bookings[bookingID] = b
	return true, nil
}

func (s *RecordStore) MarkFailed(_ context.Context, bookingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return false, domain.ErrBookingNotFound
	}
	if b.Status != domain.StatusPending {
		return false, nil
	}
	b.Status = domain.StatusFailed
	s.bookings[bookingID] = b
	return true, nil
}

func (s *RecordStore) CountSlot(_ context.Context, contestID, slotID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, b := range s.bookings {
		if b.ContestID == contestID && b.SlotID == slotID && b.Status != domain.StatusFailed {
			count++
		}
	}
	return count, nil
}

func (s *RecordStore) FindUnpaidBefore(_ context.Context, cutoff time.Time) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if !b.IsPaid && b.Status == domain.StatusPending && b.RegistrationAt.Before(cutoff) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationAt.Before(out[j].RegistrationAt) })
	return out, nil
}

// PutQuestions seeds the question set for a slot (admin path / tests).
func (s *RecordStore) PutQuestions(contestID, slotID string, qs []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[slotKey(contestID, slotID)] = qs
}

// DeleteQuestion removes one question; the caller is responsible for firing
// the cache invalidation that mutation requires.
func (s *RecordStore) DeleteQuestion(contestID, slotID, questionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey(contestID, slotID)
	qs := s.questions[key]
	out := qs[:0]
	for _, q := range qs {
		if q.ID != questionID {
			out = append(out, q)
		}
	}
	s.questions[key] = out
}

// LoadQuestions implements the loader side of the question cache.
func (s *RecordStore) LoadQuestions(_ context.Context, contestID, slotID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qs := s.questions[slotKey(contestID, slotID)]
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	return out, nil
}

func (s *RecordStore) InsertSubmission(_ context.Context, sub domain.Submission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[sub.BookingID]; exists {
		return false, nil
	}
	s.submissions[sub.BookingID] = sub
	return true, nil
}

func (s *RecordStore) GetSubmission(_ context.Context, bookingID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[bookingID]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return sub, nil
}
