package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"talent-exam-service/internal/domain"
)

const uniqueViolation = "23505"

// Store implements the contest, booking and submission stores on postgres.
// Uniqueness and exactly-once semantics lean on the database: unique indexes
// on (contest_id, email) / (contest_id, phone), the submissions primary key
// on booking_id, and conditional updates for the one-way exam_taken flip.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetContest(ctx context.Context, contestID string) (domain.Contest, error) {
	var c domain.Contest
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, COALESCE(description, ''), start_date, end_date,
		       entry_fee, max_per_slot, total_slots, duration_min, is_active
		FROM talent_contests WHERE id = $1`, contestID).
		Scan(&c.ID, &c.Title, &c.Description, &c.StartDate, &c.EndDate,
			&c.EntryFee, &c.MaxPerSlot, &c.TotalSlots, &c.DurationMin, &c.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	if err != nil {
		return domain.Contest{}, fmt.Errorf("get contest: %w", err)
	}
	return c, nil
}

// PutContest upserts a contest definition (admin path, integration tests).
func (s *Store) PutContest(ctx context.Context, c domain.Contest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO talent_contests (id, title, description, start_date, end_date, entry_fee, max_per_slot, total_slots, duration_min, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			title=EXCLUDED.title, description=EXCLUDED.description,
			start_date=EXCLUDED.start_date, end_date=EXCLUDED.end_date,
			entry_fee=EXCLUDED.entry_fee, max_per_slot=EXCLUDED.max_per_slot,
			total_slots=EXCLUDED.total_slots, duration_min=EXCLUDED.duration_min,
			is_active=EXCLUDED.is_active`,
		c.ID, c.Title, c.Description, c.StartDate, c.EndDate, c.EntryFee, c.MaxPerSlot, c.TotalSlots, c.DurationMin, c.IsActive)
	if err != nil {
		return fmt.Errorf("put contest: %w", err)
	}
	return nil
}

func (s *Store) InsertBooking(ctx context.Context, b domain.Booking) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO talent_bookings
			(id, contest_id, slot_id, user_id, name, email, phone, exam_date,
			 registration_at, exam_taken, score, password, is_paid, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,false,0,$10,false,$11)`,
		b.ID, b.ContestID, b.SlotID, nullable(b.UserID), b.Name, b.Email, b.Phone, b.ExamDate,
		b.RegistrationAt, b.Password, b.Status)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateRegistration
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

const bookingColumns = `
	id, contest_id, slot_id, COALESCE(user_id, ''), name, email, phone, exam_date,
	registration_at, exam_taken, exam_taken_at, score, password, COALESCE(order_id, ''), is_paid, status`

func (s *Store) GetBooking(ctx context.Context, bookingID string) (domain.Booking, error) {
	var b domain.Booking
	err := s.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM talent_bookings WHERE id = $1`, bookingID).
		Scan(&b.ID, &b.ContestID, &b.SlotID, &b.UserID, &b.Name, &b.Email, &b.Phone, &b.ExamDate,
			&b.RegistrationAt, &b.ExamTaken, &b.ExamTakenAt, &b.Score, &b.Password, &b.OrderID, &b.IsPaid, &b.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

func (s *Store) SetPayment(ctx context.Context, bookingID, orderID string, paid bool, status domain.BookingStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE talent_bookings
		SET order_id = COALESCE(NULLIF($2, ''), order_id), is_paid = $3, status = $4
		WHERE id = $1`, bookingID, orderID, paid, status)
	if err != nil {
		return fmt.Errorf("set payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}

// MarkExamTaken is the conditional one-way flip: the WHERE clause makes the
// check-and-set a single statement, so a concurrent second submit sees false.
func (s *Store) MarkExamTaken(ctx context.Context, bookingID string, score float64, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE talent_bookings
		SET exam_taken = true, exam_taken_at = $2, score = $3
		WHERE id = $1 AND exam_taken = false`, bookingID, at, score)
	if err != nil {
		return false, fmt.Errorf("mark exam taken: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) MarkFailed(ctx context.Context, bookingID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE talent_bookings SET status = $2
		WHERE id = $1 AND status = $3`, bookingID, domain.StatusFailed, domain.StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) CountSlot(ctx context.Context, contestID, slotID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM talent_bookings
		WHERE contest_id = $1 AND slot_id = $2 AND status <> $3`, contestID, slotID, domain.StatusFailed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count slot: %w", err)
	}
	return count, nil
}

func (s *Store) FindUnpaidBefore(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM talent_bookings
		WHERE is_paid = false AND status = $1 AND registration_at < $2
		ORDER BY registration_at`, domain.StatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find unpaid: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.ContestID, &b.SlotID, &b.UserID, &b.Name, &b.Email, &b.Phone, &b.ExamDate,
			&b.RegistrationAt, &b.ExamTaken, &b.ExamTakenAt, &b.Score, &b.Password, &b.OrderID, &b.IsPaid, &b.Status); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// InsertSubmission relies on the booking_id primary key for exactly-once:
// ON CONFLICT DO NOTHING turns the duplicate into created=false.
func (s *Store) InsertSubmission(ctx context.Context, sub domain.Submission) (bool, error) {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO talent_submissions
			(booking_id, contest_id, slot_id, answers, total_score, attempted, skipped, correct, wrong, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (booking_id) DO NOTHING`,
		sub.BookingID, sub.ContestID, sub.SlotID, answers, sub.TotalScore,
		sub.Attempted, sub.Skipped, sub.Correct, sub.Wrong, sub.SubmittedAt)
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) GetSubmission(ctx context.Context, bookingID string) (domain.Submission, error) {
	var sub domain.Submission
	var answers []byte
	err := s.pool.QueryRow(ctx, `
		SELECT booking_id, contest_id, slot_id, answers, total_score, attempted, skipped, correct, wrong, submitted_at
		FROM talent_submissions WHERE booking_id = $1`, bookingID).
		Scan(&sub.BookingID, &sub.ContestID, &sub.SlotID, &answers, &sub.TotalScore,
			&sub.Attempted, &sub.Skipped, &sub.Correct, &sub.Wrong, &sub.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	if err := json.Unmarshal(answers, &sub.Answers); err != nil {
		return domain.Submission{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return sub, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
