package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"talent-exam-service/internal/domain"
)

// QuestionLoader loads question JSONB from postgres; the cache layer sits in
// front of it for exam-time reads.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, contestID, slotID string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT data FROM talent_questions
		WHERE contest_id = $1 AND lower(slot_id) = lower($2)
		ORDER BY id`, contestID, slotID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// PutQuestion upserts one question row (admin path, integration tests).
// Callers must follow up with a cache invalidation event.
func (l *QuestionLoader) PutQuestion(ctx context.Context, q domain.Question) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO talent_questions (id, contest_id, slot_id, data)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET contest_id=EXCLUDED.contest_id, slot_id=EXCLUDED.slot_id, data=EXCLUDED.data`,
		q.ID, q.ContestID, q.SlotID, data)
	if err != nil {
		return fmt.Errorf("put question: %w", err)
	}
	return nil
}
