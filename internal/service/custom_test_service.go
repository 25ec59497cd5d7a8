package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/answerstore"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/repository"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/timer"
)

var (
	ErrCustomTestNotFound = errors.New("custom test not found")
	ErrNotCustomTestOwner = errors.New("custom test belongs to another student")
	ErrCustomTestNotDraft = errors.New("custom test already started")
	ErrCustomTestNotLive  = errors.New("custom test is not in progress")
)

// CustomTestService manages learner-authored tests. A custom test carries its
// own attempt lifecycle and grades itself against its inline answer key,
// sharing the answer store and deadline engine with regular sessions.
type CustomTestService struct {
	repo   *repository.CustomTestRepository
	store  *answerstore.Store
	engine *timer.Engine
	log    zerolog.Logger

	now func() time.Time
}

// NewCustomTestService creates a new CustomTestService.
func NewCustomTestService(
	repo *repository.CustomTestRepository,
	store *answerstore.Store,
	engine *timer.Engine,
	log zerolog.Logger,
) *CustomTestService {
	return &CustomTestService{
		repo:   repo,
		store:  store,
		engine: engine,
		log:    log.With().Str("component", "custom_test_service").Logger(),
		now:    time.Now,
	}
}

// Create authors a new custom test in DRAFT.
func (s *CustomTestService) Create(ctx context.Context, studentID int, req *model.CreateCustomTestRequest) (*model.CustomTest, error) {
	questions := make([]model.CustomTestQuestion, len(req.Questions))
	seen := make(map[int]bool, len(req.Questions))
	for i, q := range req.Questions {
		if seen[q.Number] {
			return nil, fmt.Errorf("duplicate question_number %d", q.Number)
		}
		seen[q.Number] = true
		questions[i] = model.CustomTestQuestion{
			Number:        q.Number,
			PromptText:    q.PromptText,
			Options:       q.Options,
			CorrectOption: q.CorrectOption,
		}
	}

	ct := &model.CustomTest{
		StudentID:       studentID,
		Name:            req.Name,
		DurationMinutes: req.DurationMinutes,
		Questions:       questions,
		Status:          model.CustomTestStatusDraft,
	}
	if err := s.repo.Create(ctx, ct); err != nil {
		return nil, fmt.Errorf("create custom test: %w", err)
	}

	s.log.Info().
		Str("custom_test_id", ct.ID.String()).
		Int("student_id", studentID).
		Int("questions", len(questions)).
		Msg("Custom test created")
	return ct, nil
}

// List returns the learner's custom tests, answer keys stripped.
func (s *CustomTestService) List(ctx context.Context, studentID int) ([]model.CustomTest, error) {
	tests, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list custom tests: %w", err)
	}
	for i := range tests {
		stripKeys(&tests[i])
	}
	return tests, nil
}

// Get returns one owned custom test. The answer key stays hidden until the
// attempt is terminal.
func (s *CustomTestService) Get(ctx context.Context, id uuid.UUID, studentID int) (*model.CustomTest, error) {
	ct, err := s.getOwned(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if !ct.Status.Terminal() {
		stripKeys(ct)
	}
	return ct, nil
}

// Start moves DRAFT to IN_PROGRESS, fixing started_at and the deadline.
func (s *CustomTestService) Start(ctx context.Context, id uuid.UUID, studentID int) (*model.CustomTest, error) {
	ct, err := s.getOwned(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if ct.Status != model.CustomTestStatusDraft {
		if ct.Status == model.CustomTestStatusInProgress {
			// Re-entry after reload: no device lock here, just resume.
			s.trackDeadline(ct)
			stripKeys(ct)
			return ct, nil
		}
		return nil, ErrCustomTestNotDraft
	}

	startedAt := s.now()
	deadline := startedAt.Add(time.Duration(ct.DurationMinutes) * time.Minute)

	ok, err := s.repo.StartIf(ctx, ct.ID, startedAt, deadline)
	if err != nil {
		return nil, fmt.Errorf("start custom test: %w", err)
	}
	if !ok {
		latest, ferr := s.getOwned(ctx, id, studentID)
		if ferr != nil {
			return nil, ferr
		}
		stripKeys(latest)
		return latest, nil
	}

	ct.Status = model.CustomTestStatusInProgress
	ct.StartedAt = &startedAt
	ct.Deadline = &deadline
	s.trackDeadline(ct)

	s.log.Info().
		Str("custom_test_id", ct.ID.String()).
		Time("deadline", deadline).
		Msg("Custom test started")
	stripKeys(ct)
	return ct, nil
}

// SubmitAnswers applies a batch of answer changes under the same
// newer-seq-wins rule as regular sessions.
func (s *CustomTestService) SubmitAnswers(ctx context.Context, id uuid.UUID, studentID int, subs []model.AnswerSubmission) (map[int]*string, error) {
	ct, err := s.getOwned(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if ct.Status != model.CustomTestStatusInProgress {
		return nil, ErrCustomTestNotLive
	}
	if ct.Remaining(s.now()) == 0 {
		return nil, ErrDeadlineExceeded
	}

	stored := make(map[int]*string, len(subs))
	for _, sub := range subs {
		current, _, err := s.store.Get(ctx, ct.ID.String(), sub.QuestionNumber)
		if err != nil {
			return nil, err
		}
		resolved := answerstore.ResolveToggle(current.Answer, sub.Answer)

		entry, _, err := s.store.Apply(ctx, ct.ID.String(), sub.QuestionNumber, resolved, sub.Seq)
		if err != nil {
			return nil, err
		}
		stored[sub.QuestionNumber] = entry.Answer
	}
	return stored, nil
}

// State returns the resync snapshot for the custom test attempt.
func (s *CustomTestService) State(ctx context.Context, id uuid.UUID, studentID int) (*model.SessionState, error) {
	ct, err := s.getOwned(ctx, id, studentID)
	if err != nil {
		return nil, err
	}

	answers := map[int]*string{}
	entries, err := s.store.All(ctx, ct.ID.String())
	if err != nil {
		s.log.Warn().Err(err).Str("custom_test_id", ct.ID.String()).Msg("Answer read failed")
	} else {
		for qn, e := range entries {
			answers[qn] = e.Answer
		}
	}

	remaining := time.Duration(0)
	if ct.Status == model.CustomTestStatusInProgress {
		remaining = ct.Remaining(s.now())
	}

	return &model.SessionState{
		SessionID:        ct.ID,
		TestID:           ct.ID,
		Status:           model.SessionStatus(ct.Status),
		RemainingSeconds: remaining.Seconds(),
		Answers:          answers,
	}, nil
}

// Finish finalizes the custom test as COMPLETED and grades it against the
// inline answer key. Idempotent.
func (s *CustomTestService) Finish(ctx context.Context, id uuid.UUID, studentID int) (*model.CustomTest, error) {
	ct, err := s.getOwned(ctx, id, studentID)
	if err != nil {
		return nil, err
	}
	if ct.Status.Terminal() {
		return ct, nil
	}
	if ct.Status != model.CustomTestStatusInProgress {
		return nil, ErrCustomTestNotLive
	}

	return s.finalize(ctx, ct, model.CustomTestStatusCompleted)
}

// FinishAtDeadline finalizes an in-progress custom test whose clock ran out.
// The deadline counts as an automatic finish; EXPIRED is reserved for rows
// only the overdue sweep catches.
func (s *CustomTestService) FinishAtDeadline(ctx context.Context, id uuid.UUID) (*model.CustomTest, error) {
	ct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomTestNotFound
		}
		return nil, fmt.Errorf("get custom test: %w", err)
	}
	if ct.Status != model.CustomTestStatusInProgress {
		return ct, nil
	}
	return s.finalize(ctx, ct, model.CustomTestStatusCompleted)
}

// ExpireOverdue sweeps in-progress custom tests past their deadline.
func (s *CustomTestService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := s.repo.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list overdue custom tests: %w", err)
	}

	expired := 0
	for i := range overdue {
		if _, err := s.finalize(ctx, &overdue[i], model.CustomTestStatusExpired); err != nil {
			s.log.Error().Err(err).
				Str("custom_test_id", overdue[i].ID.String()).
				Msg("Failed to expire overdue custom test")
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *CustomTestService) finalize(ctx context.Context, ct *model.CustomTest, to model.CustomTestStatus) (*model.CustomTest, error) {
	answerKey := make(map[int]string, len(ct.Questions))
	for _, q := range ct.Questions {
		answerKey[q.Number] = q.CorrectOption
	}

	answers := map[int]*string{}
	entries, err := s.store.All(ctx, ct.ID.String())
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	for qn, e := range entries {
		answers[qn] = e.Answer
	}

	score := Grade(answerKey, answers)
	finishedAt := s.now()

	won, err := s.repo.CompleteIf(ctx, ct.ID, to, score, finishedAt)
	if err != nil {
		return nil, fmt.Errorf("complete custom test: %w", err)
	}
	if !won {
		latest, ferr := s.repo.GetByID(ctx, ct.ID)
		if ferr != nil {
			return nil, fmt.Errorf("refetch custom test: %w", ferr)
		}
		return latest, nil
	}

	ct.Status = to
	ct.FinishedAt = &finishedAt
	ct.Score = &score

	s.engine.Cancel(ct.ID)
	if err := s.store.Clear(ctx, ct.ID.String()); err != nil {
		s.log.Warn().Err(err).Str("custom_test_id", ct.ID.String()).Msg("Answer buffer cleanup failed")
	}

	s.log.Info().
		Str("custom_test_id", ct.ID.String()).
		Str("status", string(to)).
		Float64("percentage", score.Percentage).
		Msg("Custom test finalized")
	return ct, nil
}

func (s *CustomTestService) trackDeadline(ct *model.CustomTest) {
	if ct.Deadline == nil {
		return
	}
	s.engine.Track(ct.ID, *ct.Deadline, func(id uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.FinishAtDeadline(ctx, id); err != nil {
			s.log.Error().Err(err).Str("custom_test_id", id.String()).Msg("Deadline finish failed, sweeper will retry")
		}
	})
}

func (s *CustomTestService) getOwned(ctx context.Context, id uuid.UUID, studentID int) (*model.CustomTest, error) {
	ct, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomTestNotFound
		}
		return nil, fmt.Errorf("get custom test: %w", err)
	}
	if ct.StudentID != studentID {
		return nil, ErrNotCustomTestOwner
	}
	return ct, nil
}

// stripKeys blanks correct options before the payload leaves the service.
func stripKeys(ct *model.CustomTest) {
	for i := range ct.Questions {
		ct.Questions[i].CorrectOption = ""
	}
}
