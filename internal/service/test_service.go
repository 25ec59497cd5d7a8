package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/config"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/repository"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/response"
)

// Domain errors.
var (
	ErrNotTestAuthor    = errors.New("not the author of this test")
	ErrNoQuestions      = errors.New("test has no questions")
	ErrTestNotDraft     = errors.New("test status is not DRAFT")
	ErrTestNotPublished = errors.New("test status is not PUBLISHED")
)

// TestService handles test definition logic and Redis caching. Publishing
// snapshots the student payload and the answer key into Redis so a session
// never reads correct options from the hot path.
type TestService struct {
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(
	testRepo *repository.TestRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "test_service").Logger(),
	}
}

// GetByID retrieves a test by its UUID.
func (s *TestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return s.testRepo.GetByID(ctx, id)
}

// ListByTeacher retrieves tests, filtered by author unless teacherID is 0.
func (s *TestService) ListByTeacher(ctx context.Context, teacherID, page, perPage int) ([]model.Test, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	tests, total, err := s.testRepo.ListByTeacherPaginated(ctx, teacherID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if tests == nil {
		tests = []model.Test{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return tests, pagination, nil
}

// Create inserts a new test as DRAFT.
func (s *TestService) Create(ctx context.Context, t *model.Test) error {
	t.Status = model.TestStatusDraft
	return s.testRepo.Create(ctx, t)
}

// Update modifies an existing draft test. Published tests are immutable —
// active sessions depend on a stable definition.
func (s *TestService) Update(ctx context.Context, teacherID int, t *model.Test) error {
	existing, err := s.testRepo.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	if teacherID != 0 && existing.TeacherID != teacherID {
		return ErrNotTestAuthor
	}
	if existing.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}
	return s.testRepo.Update(ctx, t)
}

// Delete removes a draft test.
func (s *TestService) Delete(ctx context.Context, id uuid.UUID, teacherID int) error {
	existing, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if teacherID != 0 && existing.TeacherID != teacherID {
		return ErrNotTestAuthor
	}
	if existing.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}
	return s.testRepo.Delete(ctx, id)
}

// Publish changes test status to PUBLISHED and caches payload + answer key.
func (s *TestService) Publish(ctx context.Context, testID uuid.UUID, teacherID int) error {
	t, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}

	if t.TeacherID != teacherID {
		return ErrNotTestAuthor
	}
	if t.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}

	if err := s.WarmTestCache(ctx, t); err != nil {
		return err
	}

	if err := s.testRepo.UpdateStatus(ctx, testID, model.TestStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("test_id", testID.String()).Msg("Test published")
	return nil
}

// RefreshCache re-caches payload + answer key for a published test.
func (s *TestService) RefreshCache(ctx context.Context, testID uuid.UUID, teacherID int) error {
	t, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}

	if teacherID != 0 && t.TeacherID != teacherID {
		return ErrNotTestAuthor
	}
	if t.Status != model.TestStatusPublished {
		return ErrTestNotPublished
	}

	if err := s.WarmTestCache(ctx, t); err != nil {
		return err
	}

	s.log.Info().Str("test_id", testID.String()).Msg("Cache refreshed")
	return nil
}

// WarmTestCache loads a test's payload and answer key from PostgreSQL into
// Redis. Document-mode tests still carry their question list; the document
// URL rides along in the payload.
func (s *TestService) WarmTestCache(ctx context.Context, t *model.Test) error {
	questions, err := s.questionRepo.ListByTest(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	studentQuestions := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		studentQuestions[i] = model.QuestionForStudent{
			ID:           q.ID,
			PublicNumber: q.PublicNumber,
			PromptText:   q.PromptText,
			Options:      q.Options,
			ImageURLs:    q.ImageURLs,
		}
	}

	payload := model.TestPayload{
		TestID:          t.ID,
		Name:            t.Name,
		DurationMinutes: t.DurationMinutes,
		ContentMode:     t.ContentMode,
		DocumentURL:     t.DocumentURL,
		Questions:       studentQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	answerKey := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		answerKey[strconv.Itoa(q.PublicNumber)] = q.CorrectOption
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestPayloadKey(t.ID.String()), payloadJSON, 0)
	pipe.Del(ctx, config.CacheKey.TestAnswerKey(t.ID.String()))
	pipe.HSet(ctx, config.CacheKey.TestAnswerKey(t.ID.String()), answerKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", t.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published tests into Redis on startup so lazy
// loading cannot race under first-request load.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}

	if len(tests) == 0 {
		s.log.Info().Msg("No published tests to prewarm")
		return nil
	}

	warmed := 0
	for i := range tests {
		if err := s.WarmTestCache(ctx, &tests[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", tests[i].ID.String()).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}

// ListQuestions returns a draft test's questions to its author, answer key
// included.
func (s *TestService) ListQuestions(ctx context.Context, testID uuid.UUID, teacherID int) ([]model.Question, error) {
	t, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if teacherID != 0 && t.TeacherID != teacherID {
		return nil, ErrNotTestAuthor
	}
	questions, err := s.questionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// AddQuestion appends a question to a draft test.
func (s *TestService) AddQuestion(ctx context.Context, testID uuid.UUID, teacherID int, req *model.AddQuestionRequest) (*model.Question, error) {
	t, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if teacherID != 0 && t.TeacherID != teacherID {
		return nil, ErrNotTestAuthor
	}
	if t.Status != model.TestStatusDraft {
		return nil, ErrTestNotDraft
	}

	q := &model.Question{
		TestID:        testID,
		PublicNumber:  req.PublicNumber,
		PromptText:    req.PromptText,
		Options:       req.Options,
		ImageURLs:     req.ImageURLs,
		CorrectOption: req.CorrectOption,
	}
	if err := s.questionRepo.Add(ctx, q); err != nil {
		return nil, fmt.Errorf("add question: %w", err)
	}
	return q, nil
}

// ReplaceQuestions swaps a draft test's full question list in one transaction.
func (s *TestService) ReplaceQuestions(ctx context.Context, testID uuid.UUID, teacherID int, req *model.ReplaceQuestionsRequest) error {
	t, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return err
	}
	if teacherID != 0 && t.TeacherID != teacherID {
		return ErrNotTestAuthor
	}
	if t.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}

	questions := make([]model.Question, len(req.Questions))
	for i, in := range req.Questions {
		questions[i] = model.Question{
			TestID:        testID,
			PublicNumber:  in.PublicNumber,
			PromptText:    in.PromptText,
			Options:       in.Options,
			ImageURLs:     in.ImageURLs,
			CorrectOption: in.CorrectOption,
		}
	}
	if err := s.questionRepo.ReplaceForTest(ctx, testID, questions); err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}
	return nil
}

// GetTestPayload retrieves the cached student payload from Redis.
func (s *TestService) GetTestPayload(ctx context.Context, testID uuid.UUID) (*model.TestPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.TestPayloadKey(testID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.New("test not published or payload not cached")
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.TestPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// GetAnswerKey retrieves the correct options keyed by question_number.
// Never exposed over any client-facing surface before completion.
func (s *TestService) GetAnswerKey(ctx context.Context, testID uuid.UUID) (map[int]string, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.TestAnswerKey(testID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}

	if len(raw) == 0 {
		// Cache miss: rebuild from PostgreSQL, the source of truth.
		questions, err := s.questionRepo.ListByTest(ctx, testID)
		if err != nil {
			return nil, fmt.Errorf("answer key fallback: %w", err)
		}
		if len(questions) == 0 {
			return nil, ErrNoQuestions
		}
		key := make(map[int]string, len(questions))
		for _, q := range questions {
			key[q.PublicNumber] = q.CorrectOption
		}
		return key, nil
	}

	key := make(map[int]string, len(raw))
	for field, val := range raw {
		qn, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("malformed answer key field %q", field)
		}
		key[qn] = val
	}
	return key, nil
}
