package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
)

// TestRepository handles test definition data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

const testColumns = `id, name, teacher_id, duration_minutes, starts_at, ends_at, content_mode, document_url, status, created_at, updated_at`

func scanTest(row interface{ Scan(...any) error }) (*model.Test, error) {
	t := &model.Test{}
	err := row.Scan(&t.ID, &t.Name, &t.TeacherID, &t.DurationMinutes,
		&t.StartsAt, &t.EndsAt, &t.ContentMode, &t.DocumentURL,
		&t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a test by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return scanTest(r.pool.QueryRow(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = $1`, id))
}

// Create inserts a new test as DRAFT.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (name, teacher_id, duration_minutes, starts_at, ends_at, content_mode, document_url, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		t.Name, t.TeacherID, t.DurationMinutes, t.StartsAt, t.EndsAt,
		t.ContentMode, t.DocumentURL, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update modifies a test definition.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET name = $1, duration_minutes = $2, starts_at = $3, ends_at = $4,
		     content_mode = $5, document_url = $6, updated_at = NOW()
		 WHERE id = $7`,
		t.Name, t.DurationMinutes, t.StartsAt, t.EndsAt,
		t.ContentMode, t.DocumentURL, t.ID)
	return err
}

// UpdateStatus changes a test's lifecycle status.
func (r *TestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TestStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}

// Delete removes a test. Questions cascade via FK.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	return err
}

// ListByTeacherPaginated retrieves tests authored by a teacher. teacherID 0
// lists all tests.
func (r *TestRepository) ListByTeacherPaginated(ctx context.Context, teacherID, limit, offset int) ([]model.Test, int, error) {
	baseQuery := ` FROM tests`
	args := []any{}
	if teacherID != 0 {
		args = append(args, teacherID)
		baseQuery += ` WHERE teacher_id = $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + testColumns + baseQuery + ` ORDER BY created_at DESC`
	if teacherID != 0 {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		tests = append(tests, *t)
	}
	return tests, total, rows.Err()
}

// ListPublished retrieves every published test, used for cache prewarming
// and the student lobby.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests WHERE status = $1 ORDER BY created_at DESC`,
		model.TestStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}
