package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/answerstore"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/config"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/repository"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/timer"
)

// Lifecycle errors. Handlers map these onto the error code catalog.
var (
	ErrTestCompleted    = errors.New("session already reached a terminal state")
	ErrSessionNotActive = errors.New("no active session for this test")
	ErrDeadlineExceeded = errors.New("session deadline has passed")
	ErrTestNotAvailable = errors.New("test is not open for entry")
)

// SessionService owns the attempt lifecycle: entering, exiting, finishing,
// expiring, answer intake, and state resync. PostgreSQL is the source of
// truth for status and deadline; Redis carries the hot copies.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	answerRepo  *repository.AnswerRepository
	testSvc     *TestService
	lock        *DeviceLockGuard
	store       *answerstore.Store
	engine      *timer.Engine
	rdb         *redis.Client
	grace       time.Duration
	log         zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	answerRepo *repository.AnswerRepository,
	testSvc *TestService,
	lock *DeviceLockGuard,
	store *answerstore.Store,
	engine *timer.Engine,
	rdb *redis.Client,
	grace time.Duration,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		answerRepo:  answerRepo,
		testSvc:     testSvc,
		lock:        lock,
		store:       store,
		engine:      engine,
		rdb:         rdb,
		grace:       grace,
		log:         log.With().Str("component", "session_service").Logger(),
		now:         time.Now,
	}
}

// Enter starts or resumes the learner's single attempt at a test.
//
// Outcomes by current state:
//   - no session: create one with deadline = now + duration
//   - IN_PROGRESS on the same device: refresh the lock and continue
//   - IN_PROGRESS elsewhere: ErrActiveElsewhere, hard block
//   - INACTIVE: reacquire the lock and reactivate against the original deadline
//   - terminal, or deadline already passed: ErrTestCompleted with the final row
func (s *SessionService) Enter(ctx context.Context, testID uuid.UUID, studentID int, deviceID string) (*model.TestSession, error) {
	t, err := s.testSvc.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	now := s.now()
	if t.Status != model.TestStatusPublished || !t.WindowOpen(now) {
		return nil, ErrTestNotAvailable
	}

	sess, err := s.sessionRepo.GetByTestAndStudent(ctx, testID, studentID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get session: %w", err)
		}
		return s.enterNew(ctx, t, studentID, deviceID, now)
	}
	return s.enterExisting(ctx, sess, deviceID, now)
}

func (s *SessionService) enterNew(ctx context.Context, t *model.Test, studentID int, deviceID string, now time.Time) (*model.TestSession, error) {
	if err := s.lock.Acquire(ctx, t.ID, studentID, deviceID, t.Duration()+s.grace); err != nil {
		return nil, err
	}

	sess := &model.TestSession{
		TestID:    t.ID,
		StudentID: studentID,
		DeviceID:  deviceID,
		Status:    model.SessionStatusInProgress,
		StartedAt: now,
		Deadline:  now.Add(t.Duration()),
	}

	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the insert race. The winner holds our own lock (same
			// student), so fall through to the resume path.
			existing, ferr := s.sessionRepo.GetByTestAndStudent(ctx, t.ID, studentID)
			if ferr != nil {
				return nil, fmt.Errorf("refetch session: %w", ferr)
			}
			return s.enterExisting(ctx, existing, deviceID, now)
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.cacheDeadline(ctx, sess)
	s.trackDeadline(sess)

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("test_id", t.ID.String()).
		Int("student_id", studentID).
		Time("deadline", sess.Deadline).
		Msg("Session started")
	return sess, nil
}

func (s *SessionService) enterExisting(ctx context.Context, sess *model.TestSession, deviceID string, now time.Time) (*model.TestSession, error) {
	if sess.Status.Terminal() {
		return sess, ErrTestCompleted
	}

	// Deadline already passed but the timer never fired (restart, drift).
	// The deadline is an automatic finish; grade and complete before answering.
	if sess.Remaining(now) == 0 {
		final, err := s.FinishAtDeadline(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		return final, ErrTestCompleted
	}

	ttl := sess.Remaining(now) + s.grace
	if err := s.lock.Acquire(ctx, sess.TestID, sess.StudentID, deviceID, ttl); err != nil {
		return nil, err
	}

	switch sess.Status {
	case model.SessionStatusInProgress:
		// Same-device re-entry (reload). The lock acquire above rejected any
		// other device; nothing to change in the row but the fingerprint may
		// rotate within the device's stable identity.
		if sess.DeviceID != deviceID {
			if err := s.sessionRepo.UpdateDevice(ctx, sess.ID, deviceID); err != nil {
				s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Device refresh skipped")
			}
			sess.DeviceID = deviceID
		}
	case model.SessionStatusInactive:
		ok, err := s.sessionRepo.Reactivate(ctx, sess.ID, deviceID)
		if err != nil {
			return nil, fmt.Errorf("reactivate session: %w", err)
		}
		if !ok {
			// Raced with a finish or expiry. Read whatever won.
			latest, ferr := s.sessionRepo.GetByID(ctx, sess.ID)
			if ferr != nil {
				return nil, fmt.Errorf("refetch session: %w", ferr)
			}
			if latest.Status.Terminal() {
				return latest, ErrTestCompleted
			}
			sess = latest
		} else {
			sess.Status = model.SessionStatusInProgress
			sess.DeviceID = deviceID
		}
	}

	s.cacheDeadline(ctx, sess)
	s.trackDeadline(sess)

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Int("student_id", sess.StudentID).
		Msg("Session resumed")
	return sess, nil
}

// Exit pauses the attempt: IN_PROGRESS becomes INACTIVE, the device lock is
// released, and the clock keeps running against the original deadline.
func (s *SessionService) Exit(ctx context.Context, testID uuid.UUID, studentID int, deviceID string) (*model.TestSession, error) {
	sess, err := s.getOwnSession(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return sess, ErrTestCompleted
	}

	ok, err := s.sessionRepo.MarkInactive(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("mark inactive: %w", err)
	}
	if ok {
		sess.Status = model.SessionStatusInactive
	}

	s.engine.Cancel(sess.ID)
	if err := s.lock.Release(ctx, testID, studentID, deviceID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Lock release failed on exit")
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Int("student_id", studentID).
		Msg("Session paused")
	return sess, nil
}

// ReleaseDeviceLock drops a learner's device lock on a test regardless of
// holder. Teacher override for a device that can no longer present its own
// fingerprint. Only the test's author may release.
func (s *SessionService) ReleaseDeviceLock(ctx context.Context, testID uuid.UUID, teacherID, studentID int) error {
	t, err := s.testSvc.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}
	if t.TeacherID != teacherID {
		return ErrNotTestAuthor
	}

	if err := s.lock.ForceRelease(ctx, testID, studentID); err != nil {
		return fmt.Errorf("force release lock: %w", err)
	}
	s.log.Info().
		Str("test_id", testID.String()).
		Int("student_id", studentID).
		Int("teacher_id", teacherID).
		Msg("Device lock released by teacher")
	return nil
}

// Finish finalizes the attempt as COMPLETED, grading whatever answers are
// stored. Idempotent: repeats and concurrency losers get the stored result.
func (s *SessionService) Finish(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	sess, err := s.getOwnSession(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return sess, nil
	}
	return s.finalize(ctx, sess, model.SessionStatusCompleted)
}

// FinishAtDeadline finalizes a session whose clock ran out. The deadline
// counts as an automatic finish, so the session completes with its stored
// answers graded; EXPIRED is reserved for rows only the overdue sweep
// catches. A no-op when the session is already terminal.
func (s *SessionService) FinishAtDeadline(ctx context.Context, sessionID uuid.UUID) (*model.TestSession, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.Status.Terminal() {
		return sess, nil
	}
	return s.finalize(ctx, sess, model.SessionStatusCompleted)
}

// ExpireOverdue sweeps sessions whose deadline passed without the in-process
// timer firing. Correctness backstop after restarts.
func (s *SessionService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := s.sessionRepo.ListOverdue(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list overdue: %w", err)
	}

	expired := 0
	for i := range overdue {
		if _, err := s.finalize(ctx, &overdue[i], model.SessionStatusExpired); err != nil {
			s.log.Error().Err(err).
				Str("session_id", overdue[i].ID.String()).
				Msg("Failed to expire overdue session")
			continue
		}
		expired++
	}
	return expired, nil
}

// finalize grades the session and CASes it into the terminal status. Exactly
// one concurrent caller wins the update and writes the score; every other
// caller reads the winner's row.
func (s *SessionService) finalize(ctx context.Context, sess *model.TestSession, to model.SessionStatus) (*model.TestSession, error) {
	answerKey, err := s.testSvc.GetAnswerKey(ctx, sess.TestID)
	if err != nil {
		return nil, fmt.Errorf("answer key: %w", err)
	}

	answers, err := s.collectAnswers(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	score := Grade(answerKey, answers)
	finishedAt := s.now()

	won, err := s.sessionRepo.CompleteIf(ctx, sess.ID, to, score, finishedAt)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if !won {
		latest, ferr := s.sessionRepo.GetByID(ctx, sess.ID)
		if ferr != nil {
			return nil, fmt.Errorf("refetch session: %w", ferr)
		}
		return latest, nil
	}

	sess.Status = to
	sess.FinishedAt = &finishedAt
	sess.Score = &score

	s.engine.Cancel(sess.ID)
	if err := s.lock.ForceRelease(ctx, sess.TestID, sess.StudentID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Lock release failed on finalize")
	}
	if err := s.rdb.Del(ctx, config.CacheKey.SessionDeadlineKey(sess.ID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Deadline key cleanup failed")
	}
	s.queueFinalize(ctx, sess.ID)

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("status", string(to)).
		Int("correct", score.Correct).
		Float64("percentage", score.Percentage).
		Msg("Session finalized")
	return sess, nil
}

// SubmitAnswers ingests a batch of answer changes. Each change is applied to
// the Redis store under the newer-seq-wins rule, then queued for async
// persistence. Returns the stored value per question after the batch.
func (s *SessionService) SubmitAnswers(ctx context.Context, testID uuid.UUID, studentID int, subs []model.AnswerSubmission) (map[int]*string, error) {
	sess, err := s.getOwnSession(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.SessionStatusInProgress {
		if sess.Status.Terminal() {
			return nil, ErrTestCompleted
		}
		return nil, ErrSessionNotActive
	}
	if s.remainingFor(ctx, sess) == 0 {
		return nil, ErrDeadlineExceeded
	}

	stored := make(map[int]*string, len(subs))
	for _, sub := range subs {
		current, _, err := s.store.Get(ctx, sess.ID.String(), sub.QuestionNumber)
		if err != nil {
			return nil, err
		}
		resolved := answerstore.ResolveToggle(current.Answer, sub.Answer)

		entry, applied, err := s.store.Apply(ctx, sess.ID.String(), sub.QuestionNumber, resolved, sub.Seq)
		if err != nil {
			return nil, err
		}
		stored[sub.QuestionNumber] = entry.Answer

		if applied {
			s.queuePersist(ctx, model.PersistAnswerJob{
				SessionID:      sess.ID,
				QuestionNumber: sub.QuestionNumber,
				Answer:         resolved,
				Seq:            sub.Seq,
			})
		}
	}
	return stored, nil
}

// State returns the resync snapshot: status, authoritative remaining time,
// and the stored answers. This is what a reloading client renders from.
func (s *SessionService) State(ctx context.Context, testID uuid.UUID, studentID int) (*model.SessionState, error) {
	sess, err := s.getOwnSession(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}

	answers, err := s.collectAnswers(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	remaining := time.Duration(0)
	if !sess.Status.Terminal() {
		remaining = s.remainingFor(ctx, sess)
	}

	return &model.SessionState{
		SessionID:        sess.ID,
		TestID:           sess.TestID,
		Status:           sess.Status,
		RemainingSeconds: remaining.Seconds(),
		Answers:          answers,
	}, nil
}

// Result returns the finalized session. Before completion there is no result.
func (s *SessionService) Result(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	sess, err := s.getOwnSession(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.Terminal() {
		return nil, ErrSessionNotActive
	}
	return sess, nil
}

// GetSession exposes the raw row for handlers that need it.
func (s *SessionService) GetSession(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	return s.getOwnSession(ctx, testID, studentID)
}

func (s *SessionService) getOwnSession(ctx context.Context, testID uuid.UUID, studentID int) (*model.TestSession, error) {
	sess, err := s.sessionRepo.GetByTestAndStudent(ctx, testID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotActive
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// collectAnswers reads the session's answers from Redis, falling back to
// PostgreSQL when the buffer is gone (finalized, evicted, or Redis down).
func (s *SessionService) collectAnswers(ctx context.Context, sessionID uuid.UUID) (map[int]*string, error) {
	entries, err := s.store.All(ctx, sessionID.String())
	if err == nil && len(entries) > 0 {
		answers := make(map[int]*string, len(entries))
		for qn, e := range entries {
			answers[qn] = e.Answer
		}
		return answers, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Redis answer read failed, using PostgreSQL")
	}

	answers, dbErr := s.answerRepo.MapBySession(ctx, sessionID)
	if dbErr != nil {
		return nil, fmt.Errorf("load answers: %w", dbErr)
	}
	if answers == nil {
		answers = map[int]*string{}
	}
	return answers, nil
}

// remainingFor reads the cached deadline, self-healing the key from the row
// when Redis lost it. The row's deadline is always authoritative.
func (s *SessionService) remainingFor(ctx context.Context, sess *model.TestSession) time.Duration {
	now := s.now()

	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionDeadlineKey(sess.ID.String())).Result()
	if err == nil {
		if unix, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			return timer.Remaining(time.Unix(unix, 0), now)
		}
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Deadline cache read failed, using PostgreSQL")
	} else {
		s.cacheDeadline(ctx, sess)
	}
	return sess.Remaining(now)
}

func (s *SessionService) cacheDeadline(ctx context.Context, sess *model.TestSession) {
	ttl := sess.Remaining(s.now()) + s.grace
	if ttl <= 0 {
		return
	}
	err := s.rdb.Set(ctx,
		config.CacheKey.SessionDeadlineKey(sess.ID.String()),
		strconv.FormatInt(sess.Deadline.Unix(), 10), ttl).Err()
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Deadline cache write failed")
	}
}

// trackDeadline arms the in-process timer. The expiry callback runs on its
// own context: the request that armed it is long gone by then.
func (s *SessionService) trackDeadline(sess *model.TestSession) {
	s.engine.Track(sess.ID, sess.Deadline, func(sessionID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.FinishAtDeadline(ctx, sessionID); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Deadline finish failed, sweeper will retry")
		}
	})
}

func (s *SessionService) queuePersist(ctx context.Context, job model.PersistAnswerJob) {
	payload, err := json.Marshal(job)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal persist job")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).
			Str("session_id", job.SessionID.String()).
			Msg("Failed to queue answer persistence")
	}
}

func (s *SessionService) queueFinalize(ctx context.Context, sessionID uuid.UUID) {
	payload, err := json.Marshal(model.FinalizeSessionJob{SessionID: sessionID})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal finalize job")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.FinalizeSessionsQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Msg("Failed to queue session finalization")
	}
}
