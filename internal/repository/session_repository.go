package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
)

// SessionReportRow combines a learner's identity with their session result
// for the teacher report.
type SessionReportRow struct {
	SessionID  uuid.UUID           `json:"session_id"`
	StudentID  int                 `json:"student_id"`
	Name       string              `json:"name"`
	Status     model.SessionStatus `json:"status"`
	Score      *model.Score        `json:"score"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at"`
	Answers    map[int]*string     `json:"answers"`
}

// LeaderboardRow is one ranked entry of a test's leaderboard.
type LeaderboardRow struct {
	Rank       int       `json:"rank"`
	StudentID  int       `json:"student_id"`
	Name       string    `json:"name"`
	Percentage float64   `json:"percentage"`
	Correct    int       `json:"correct"`
	Total      int       `json:"total"`
	FinishedAt time.Time `json:"finished_at"`
}

// SessionRepository handles test session data access. All status transitions
// are single-statement conditional updates so concurrent callers collapse
// into exactly one winner.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, test_id, student_id, device_id, status, started_at, deadline, finished_at, correct_count, total_count, percentage`

func scanSession(row interface{ Scan(...any) error }) (*model.TestSession, error) {
	s := &model.TestSession{}
	var correct, total *int
	var pct *float64
	err := row.Scan(&s.ID, &s.TestID, &s.StudentID, &s.DeviceID, &s.Status,
		&s.StartedAt, &s.Deadline, &s.FinishedAt, &correct, &total, &pct)
	if err != nil {
		return nil, err
	}
	if correct != nil && total != nil && pct != nil {
		s.Score = &model.Score{Correct: *correct, Total: *total, Percentage: *pct}
	}
	return s, nil
}

// GetByID retrieves a session by its UUID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions WHERE id = $1`, id))
}

// GetByTestAndStudent retrieves the session for a (test, student) pair.
// There is at most one: the pair is unique.
func (r *SessionRepository) GetByTestAndStudent(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM test_sessions WHERE test_id = $1 AND student_id = $2`,
		testID, studentID))
}

// Create inserts a new session. The unique (test_id, student_id) constraint
// plus DO NOTHING means a concurrent enter loses cleanly: the caller sees
// pgx.ErrNoRows and refetches the winner's row.
func (r *SessionRepository) Create(ctx context.Context, s *model.TestSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions (test_id, student_id, device_id, status, started_at, deadline)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (test_id, student_id) DO NOTHING
		 RETURNING id`,
		s.TestID, s.StudentID, s.DeviceID, model.SessionStatusInProgress, s.StartedAt, s.Deadline,
	).Scan(&s.ID)
}

// MarkInactive flips IN_PROGRESS to INACTIVE. Returns false when the session
// was not in progress (already exited, finished, or expired).
func (r *SessionRepository) MarkInactive(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions SET status = $1 WHERE id = $2 AND status = $3`,
		model.SessionStatusInactive, id, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Reactivate flips INACTIVE back to IN_PROGRESS, recording the device that
// resumed. The deadline column is untouched: remaining time always derives
// from the original deadline.
func (r *SessionRepository) Reactivate(ctx context.Context, id uuid.UUID, deviceID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions SET status = $1, device_id = $2 WHERE id = $3 AND status = $4`,
		model.SessionStatusInProgress, deviceID, id, model.SessionStatusInactive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateDevice records a rotated fingerprint on a session without touching
// its status. Used when the same learner re-enters an IN_PROGRESS session
// with a fresh fingerprint after the old lock expired.
func (r *SessionRepository) UpdateDevice(ctx context.Context, id uuid.UUID, deviceID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE test_sessions SET device_id = $1 WHERE id = $2`, deviceID, id)
	return err
}

// CompleteIf atomically moves a non-terminal session to the given terminal
// status and stores its score. Exactly one of any number of concurrent
// callers gets true; the rest observe the already-stored result via GetByID.
func (r *SessionRepository) CompleteIf(ctx context.Context, id uuid.UUID, to model.SessionStatus, score model.Score, finishedAt time.Time) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("complete: %q is not a terminal status", to)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE test_sessions
		 SET status = $1, correct_count = $2, total_count = $3, percentage = $4, finished_at = $5
		 WHERE id = $6 AND status IN ($7, $8)`,
		to, score.Correct, score.Total, score.Percentage, finishedAt,
		id, model.SessionStatusInProgress, model.SessionStatusInactive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListOverdue returns non-terminal sessions whose deadline passed before now.
// Used by the expiry sweeper as a correctness backstop.
func (r *SessionRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM test_sessions
		 WHERE status IN ($1, $2) AND deadline < $3
		 ORDER BY deadline ASC
		 LIMIT $4`,
		model.SessionStatusInProgress, model.SessionStatusInactive, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListByTest retrieves session report rows for a test with optional status
// filter and name search, paginated. Answers are attached by the caller.
func (r *SessionRepository) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int, status *string, search *string) ([]SessionReportRow, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := `
		FROM test_sessions ts
		JOIN users u ON ts.student_id = u.id
		WHERE ts.test_id = $1
	`
	args := []any{testID}

	if status != nil && *status != "" {
		args = append(args, *status)
		baseQuery += fmt.Sprintf(" AND ts.status = $%d", len(args))
	}
	if search != nil && *search != "" {
		args = append(args, "%"+*search+"%")
		baseQuery += fmt.Sprintf(" AND u.name ILIKE $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ts.id, ts.student_id, u.name, ts.status,
		       ts.correct_count, ts.total_count, ts.percentage,
		       ts.started_at, ts.finished_at
		` + baseQuery + `
		ORDER BY u.name ASC
		LIMIT $` + fmt.Sprintf("%d", len(args)+1) + ` OFFSET $` + fmt.Sprintf("%d", len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SessionReportRow
	for rows.Next() {
		var row SessionReportRow
		var correct, totalCount *int
		var pct *float64
		if err := rows.Scan(
			&row.SessionID, &row.StudentID, &row.Name, &row.Status,
			&correct, &totalCount, &pct, &row.StartedAt, &row.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		if correct != nil && totalCount != nil && pct != nil {
			row.Score = &model.Score{Correct: *correct, Total: *totalCount, Percentage: *pct}
		}
		results = append(results, row)
	}
	return results, total, rows.Err()
}

// Leaderboard returns completed sessions ranked by percentage descending,
// earliest completion first on ties.
func (r *SessionRepository) Leaderboard(ctx context.Context, testID uuid.UUID, limit int) ([]LeaderboardRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ts.student_id, u.name, ts.percentage, ts.correct_count, ts.total_count, ts.finished_at
		 FROM test_sessions ts
		 JOIN users u ON ts.student_id = u.id
		 WHERE ts.test_id = $1 AND ts.status = $2
		 ORDER BY ts.percentage DESC, ts.finished_at ASC
		 LIMIT $3`,
		testID, model.SessionStatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var board []LeaderboardRow
	rank := 0
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.StudentID, &row.Name, &row.Percentage,
			&row.Correct, &row.Total, &row.FinishedAt); err != nil {
			return nil, err
		}
		rank++
		row.Rank = rank
		board = append(board, row)
	}
	return board, rows.Err()
}
