package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"talent-exam-service/internal/domain"
)

// QuestionRepository loads the server-authoritative question set for a slot
// (normally through the read-through cache).
type QuestionRepository interface {
	GetQuestions(ctx context.Context, contestID, slotID string) ([]domain.Question, error)
}

// SubmissionStore persists scoring records. InsertSubmission is the
// exactly-once enforcement point: it must reject a second record for the same
// bookingID (returning created=false) under any interleaving.
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, sub domain.Submission) (created bool, err error)
	GetSubmission(ctx context.Context, bookingID string) (domain.Submission, error)
}

// TokenStore issues and redeems one-time result tokens. Redeem must be an
// atomic check-and-delete: a token redeems at most once under concurrency.
type TokenStore interface {
	Issue(ctx context.Context, bookingID string, ttl time.Duration) (string, error)
	Redeem(ctx context.Context, token string) (bookingID string, ok bool, err error)
}

// ExamService scores submissions idempotently, one submission per booking.
type ExamService struct {
	bookings    BookingStore
	questions   QuestionRepository
	submissions SubmissionStore
	tokens      TokenStore
	board       *LeaderboardHub
	tokenTTL    time.Duration
	now         func() time.Time
}

func NewExamService(bookings BookingStore, questions QuestionRepository, submissions SubmissionStore, tokens TokenStore, board *LeaderboardHub) *ExamService {
	return &ExamService{
		bookings:    bookings,
		questions:   questions,
		submissions: submissions,
		tokens:      tokens,
		board:       board,
		tokenTTL:    15 * time.Minute,
		now:         time.Now,
	}
}

// NewExamServiceWithClock is test-only for deterministic timestamps.
func NewExamServiceWithClock(bookings BookingStore, questions QuestionRepository, submissions SubmissionStore, tokens TokenStore, board *LeaderboardHub, now func() time.Time) *ExamService {
	s := NewExamService(bookings, questions, submissions, tokens, board)
	s.now = now
	return s
}

// Submit scores the answers against the server-held question set and commits
// exactly one submission record per booking. bookingID is the idempotency
// key: a retry returns the record created by the first successful call, with
// alreadySubmitted=true, and never rescoring anything. The record insert is
// the enforcement point; the booking's examTaken flag is the fast path and is
// reconciled if a previous attempt died between the two writes.
func (s *ExamService) Submit(ctx context.Context, bookingID string, answers []domain.AnswerSubmission) (domain.Submission, bool, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Submission{}, false, err
	}

	if booking.ExamTaken {
		existing, err := s.submissions.GetSubmission(ctx, bookingID)
		if err != nil {
			return domain.Submission{}, false, err
		}
		return existing, true, nil
	}

	questions, err := s.questions.GetQuestions(ctx, booking.ContestID, booking.SlotID)
	if err != nil {
		return domain.Submission{}, false, err
	}
	if len(questions) == 0 {
		return domain.Submission{}, false, domain.ErrNoQuestionsResolved
	}

	byID := make(map[string]domain.AnswerSubmission, len(answers))
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	matched := 0
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; !ok {
			// Unknown question IDs are dropped, never an error.
			continue
		}
		byID[a.QuestionID] = a
		matched++
	}
	if matched == 0 {
		return domain.Submission{}, false, domain.ErrNoQuestionsResolved
	}

	now := s.now()
	sub := scoreAnswers(booking, questions, byID)
	sub.SubmittedAt = now

	created, err := s.submissions.InsertSubmission(ctx, sub)
	if err != nil {
		return domain.Submission{}, false, fmt.Errorf("insert submission: %w", err)
	}
	if !created {
		// Lost the race (or a retry after a partial failure): adopt the
		// winning record and make sure the booking flag caught up.
		existing, err := s.submissions.GetSubmission(ctx, bookingID)
		if err != nil {
			return domain.Submission{}, false, err
		}
		if _, err := s.bookings.MarkExamTaken(ctx, bookingID, existing.TotalScore, existing.SubmittedAt); err != nil {
			return domain.Submission{}, false, err
		}
		return existing, true, nil
	}

	if _, err := s.bookings.MarkExamTaken(ctx, bookingID, sub.TotalScore, now); err != nil {
		// The record is committed; the flag will be reconciled on the next
		// retry through the !created path.
		return sub, false, fmt.Errorf("mark exam taken: %w", err)
	}

	if s.board != nil {
		s.board.Record(booking.ContestID, booking.SlotID, domain.LeaderboardEntry{
			BookingID:   booking.ID,
			Name:        booking.Name,
			Score:       sub.TotalScore,
			ExamTakenAt: now,
		})
	}
	return sub, false, nil
}

const wrongAnswerPenalty = 0.33

// scoreAnswers walks the server question set in order. Questions without an
// answer are skipped; attempted answers earn +marks or -0.33 flat.
func scoreAnswers(booking domain.Booking, questions []domain.Question, byID map[string]domain.AnswerSubmission) domain.Submission {
	sub := domain.Submission{
		BookingID: booking.ID,
		ContestID: booking.ContestID,
		SlotID:    booking.SlotID,
		Answers:   make([]domain.Answer, 0, len(questions)),
	}

	for _, q := range questions {
		ans, answered := byID[q.ID]
		record := domain.Answer{QuestionID: q.ID}

		var attempted, correct bool
		switch q.Type {
		case domain.QuestionText, domain.QuestionNumeric:
			text := strings.TrimSpace(ans.TextAnswer)
			if answered && text != "" {
				attempted = true
				record.TextAnswer = ans.TextAnswer
				correct = strings.EqualFold(text, strings.TrimSpace(q.CorrectAnswer))
			}
		default: // mcq
			if answered && ans.SelectedOption != nil {
				attempted = true
				record.SelectedOption = ans.SelectedOption
				idx := *ans.SelectedOption
				correct = idx >= 0 && idx < len(q.Options) && q.Options[idx].Correct
			}
		}

		if !attempted {
			record.Skipped = true
			sub.Skipped++
		} else {
			sub.Attempted++
			record.Correct = correct
			if correct {
				sub.Correct++
				sub.TotalScore += q.Marks
			} else {
				sub.Wrong++
				sub.TotalScore -= wrongAnswerPenalty
			}
		}
		sub.Answers = append(sub.Answers, record)
	}
	return sub
}

// Status reports whether the booking's exam has been taken.
type ExamStatus struct {
	BookingID   string     `json:"bookingId"`
	ExamTaken   bool       `json:"examTaken"`
	ExamTakenAt *time.Time `json:"examTakenAt,omitempty"`
}

func (s *ExamService) Status(ctx context.Context, bookingID string) (ExamStatus, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return ExamStatus{}, err
	}
	return ExamStatus{BookingID: booking.ID, ExamTaken: booking.ExamTaken, ExamTakenAt: booking.ExamTakenAt}, nil
}

// IssueResultToken mints a one-time token for downloading the scored result.
// Only paid bookings with a committed submission qualify.
func (s *ExamService) IssueResultToken(ctx context.Context, bookingID string) (string, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return "", err
	}
	if !booking.IsPaid {
		return "", fmt.Errorf("%w: booking is not paid", domain.ErrValidation)
	}
	if !booking.ExamTaken {
		return "", domain.ErrSubmissionNotFound
	}
	return s.tokens.Issue(ctx, bookingID, s.tokenTTL)
}

// Result redeems a one-time token and returns the stored submission. The
// token is consumed even if the read fails; the client must mint a new one.
func (s *ExamService) Result(ctx context.Context, bookingID, token string) (domain.Submission, error) {
	owner, ok, err := s.tokens.Redeem(ctx, token)
	if err != nil {
		return domain.Submission{}, err
	}
	if !ok || owner != bookingID {
		return domain.Submission{}, domain.ErrTokenInvalid
	}
	sub, err := s.submissions.GetSubmission(ctx, bookingID)
	if err != nil {
		if errors.Is(err, domain.ErrSubmissionNotFound) {
			return domain.Submission{}, err
		}
		return domain.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	return sub, nil
}
