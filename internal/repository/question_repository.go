package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByTest retrieves a test's questions ordered by their public number.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, public_number, prompt_text, options, image_urls, correct_option
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY public_number ASC`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.PublicNumber, &q.PromptText,
			&q.Options, &q.ImageURLs, &q.CorrectOption); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Add inserts one question into a test.
func (r *QuestionRepository) Add(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (test_id, public_number, prompt_text, options, image_urls, correct_option)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		q.TestID, q.PublicNumber, q.PromptText, q.Options, q.ImageURLs, q.CorrectOption,
	).Scan(&q.ID)
}

// ReplaceForTest atomically swaps a test's full question list.
func (r *QuestionRepository) ReplaceForTest(ctx context.Context, testID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE test_id = $1`, testID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (test_id, public_number, prompt_text, options, image_urls, correct_option)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			testID, q.PublicNumber, q.PromptText, q.Options, q.ImageURLs, q.CorrectOption,
		).Scan(&q.ID); err != nil {
			return fmt.Errorf("insert question %d: %w", q.PublicNumber, err)
		}
	}

	return tx.Commit(ctx)
}
