package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates test session states. "Not started" is the absence
// of a session row, so it has no constant.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusInactive   SessionStatus = "INACTIVE"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusExpired    SessionStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusExpired
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Terminal states never transition; INACTIVE may only resume or end.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case SessionStatusInProgress:
		return next == SessionStatusInactive || next == SessionStatusCompleted || next == SessionStatusExpired
	case SessionStatusInactive:
		return next == SessionStatusInProgress || next == SessionStatusCompleted || next == SessionStatusExpired
	}
	return false
}

// Score is the immutable completion result of a session.
type Score struct {
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// TestSession represents one learner's single attempt at a test. The deadline
// is fixed at creation (started_at + duration) and never recomputed.
type TestSession struct {
	ID         uuid.UUID     `json:"id"`
	TestID     uuid.UUID     `json:"test_id"`
	StudentID  int           `json:"student_id"`
	DeviceID   string        `json:"device_id"`
	Status     SessionStatus `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	Deadline   time.Time     `json:"deadline"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Score      *Score        `json:"score,omitempty"`
}

// Remaining returns the time left until the deadline, clamped at zero.
// It can never exceed deadline − now.
func (s *TestSession) Remaining(now time.Time) time.Duration {
	d := s.Deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// EnterTestRequest is the payload for entering (or resuming) a test.
type EnterTestRequest struct {
	DeviceID string `json:"device_id" binding:"required,min=8,max=128"`
}

// ExitTestRequest is the payload for a temporary, learner-initiated exit.
type ExitTestRequest struct {
	DeviceID string `json:"device_id" binding:"required,min=8,max=128"`
}

// AnswerSubmission is one per-question answer change. Seq is the client's
// monotonically increasing write sequence for that question; the store only
// applies a submission whose Seq exceeds the stored one.
type AnswerSubmission struct {
	QuestionNumber int     `json:"question_number" binding:"required,min=1"`
	Answer         *string `json:"answer" binding:"omitempty,max=10"`
	Seq            uint64  `json:"seq" binding:"required,min=1"`
}

// SubmitAnswersRequest is the payload for the bulk answer endpoint.
type SubmitAnswersRequest struct {
	Answers []AnswerSubmission `json:"answers" binding:"required,min=1,dive"`
}

// SessionState is returned on reload/resync: the authoritative remaining
// time, the session status, and the stored answers.
type SessionState struct {
	SessionID        uuid.UUID       `json:"session_id"`
	TestID           uuid.UUID       `json:"test_id"`
	Status           SessionStatus   `json:"status"`
	RemainingSeconds float64         `json:"remaining_seconds"`
	Answers          map[int]*string `json:"answers"`
}
