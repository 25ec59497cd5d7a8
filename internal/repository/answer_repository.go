package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnswerRepository persists per-question answers. Redis is the hot store
// during a session; this table is the durable copy the autosave worker
// converges into, guarded by the same per-question write sequence.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertIfNewer writes an answer unless a newer seq is already stored.
// Replaying the same write is a no-op, so the pipeline is idempotent.
func (r *AnswerRepository) UpsertIfNewer(ctx context.Context, sessionID uuid.UUID, questionNumber int, answer *string, seq uint64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO answers (session_id, question_number, answer, seq)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, question_number) DO UPDATE
		 SET answer = EXCLUDED.answer, seq = EXCLUDED.seq, updated_at = NOW()
		 WHERE answers.seq < EXCLUDED.seq`,
		sessionID, questionNumber, answer, int64(seq),
	)
	return err
}

// MapBySession returns the stored answers for one session keyed by
// question_number. Absent keys mean unanswered.
func (r *AnswerRepository) MapBySession(ctx context.Context, sessionID uuid.UUID) (map[int]*string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_number, answer FROM answers WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[int]*string)
	for rows.Next() {
		var qn int
		var ans *string
		if err := rows.Scan(&qn, &ans); err != nil {
			return nil, err
		}
		answers[qn] = ans
	}
	return answers, rows.Err()
}

// MapBySessions returns answers for a batch of sessions in one query,
// keyed session → question_number → answer. Used by the teacher report.
func (r *AnswerRepository) MapBySessions(ctx context.Context, sessionIDs []uuid.UUID) (map[uuid.UUID]map[int]*string, error) {
	if len(sessionIDs) == 0 {
		return map[uuid.UUID]map[int]*string{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_number, answer FROM answers WHERE session_id = ANY($1)`,
		sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]map[int]*string, len(sessionIDs))
	for rows.Next() {
		var sid uuid.UUID
		var qn int
		var ans *string
		if err := rows.Scan(&sid, &qn, &ans); err != nil {
			return nil, err
		}
		if out[sid] == nil {
			out[sid] = make(map[int]*string)
		}
		out[sid][qn] = ans
	}
	return out, rows.Err()
}
