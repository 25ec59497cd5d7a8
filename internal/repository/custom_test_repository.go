package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
)

// CustomTestRepository handles learner-authored test instances. The instance
// row carries its own lifecycle, so the same conditional-update discipline
// applies as for regular sessions.
type CustomTestRepository struct {
	pool *pgxpool.Pool
}

// NewCustomTestRepository creates a new CustomTestRepository.
func NewCustomTestRepository(pool *pgxpool.Pool) *CustomTestRepository {
	return &CustomTestRepository{pool: pool}
}

const customTestColumns = `id, student_id, name, duration_minutes, questions, status, started_at, deadline, finished_at, correct_count, total_count, percentage`

func scanCustomTest(row interface{ Scan(...any) error }) (*model.CustomTest, error) {
	c := &model.CustomTest{}
	var questions []byte
	var correct, total *int
	var pct *float64
	err := row.Scan(&c.ID, &c.StudentID, &c.Name, &c.DurationMinutes, &questions,
		&c.Status, &c.StartedAt, &c.Deadline, &c.FinishedAt, &correct, &total, &pct)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &c.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if correct != nil && total != nil && pct != nil {
		c.Score = &model.Score{Correct: *correct, Total: *total, Percentage: *pct}
	}
	return c, nil
}

// GetByID retrieves a custom test by its UUID.
func (r *CustomTestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CustomTest, error) {
	return scanCustomTest(r.pool.QueryRow(ctx,
		`SELECT `+customTestColumns+` FROM custom_tests WHERE id = $1`, id))
}

// Create inserts a new DRAFT custom test.
func (r *CustomTestRepository) Create(ctx context.Context, c *model.CustomTest) error {
	questions, err := json.Marshal(c.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO custom_tests (student_id, name, duration_minutes, questions, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		c.StudentID, c.Name, c.DurationMinutes, questions, model.CustomTestStatusDraft,
	).Scan(&c.ID)
}

// ListByStudent retrieves a learner's custom tests, newest first.
func (r *CustomTestRepository) ListByStudent(ctx context.Context, studentID int) ([]model.CustomTest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+customTestColumns+` FROM custom_tests WHERE student_id = $1 ORDER BY started_at DESC NULLS FIRST`,
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.CustomTest
	for rows.Next() {
		c, err := scanCustomTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *c)
	}
	return tests, rows.Err()
}

// StartIf flips DRAFT to IN_PROGRESS, fixing the deadline. Returns false if
// the test already started.
func (r *CustomTestRepository) StartIf(ctx context.Context, id uuid.UUID, startedAt, deadline time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE custom_tests
		 SET status = $1, started_at = $2, deadline = $3
		 WHERE id = $4 AND status = $5`,
		model.CustomTestStatusInProgress, startedAt, deadline, id, model.CustomTestStatusDraft)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteIf atomically moves an in-progress custom test to a terminal
// status with its score. Same single-winner semantics as sessions.
func (r *CustomTestRepository) CompleteIf(ctx context.Context, id uuid.UUID, to model.CustomTestStatus, score model.Score, finishedAt time.Time) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("complete: %q is not a terminal status", to)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE custom_tests
		 SET status = $1, correct_count = $2, total_count = $3, percentage = $4, finished_at = $5
		 WHERE id = $6 AND status = $7`,
		to, score.Correct, score.Total, score.Percentage, finishedAt,
		id, model.CustomTestStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListOverdue returns in-progress custom tests whose deadline passed.
func (r *CustomTestRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.CustomTest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+customTestColumns+`
		 FROM custom_tests
		 WHERE status = $1 AND deadline < $2
		 ORDER BY deadline ASC
		 LIMIT $3`,
		model.CustomTestStatusInProgress, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.CustomTest
	for rows.Next() {
		c, err := scanCustomTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *c)
	}
	return tests, rows.Err()
}
