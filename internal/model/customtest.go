package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CustomTestStatus enumerates learner-authored test instance states. The
// instance itself carries the attempt lifecycle: there is exactly one attempt
// per custom test, owned by its author.
type CustomTestStatus string

const (
	CustomTestStatusDraft      CustomTestStatus = "DRAFT"
	CustomTestStatusInProgress CustomTestStatus = "IN_PROGRESS"
	CustomTestStatusCompleted  CustomTestStatus = "COMPLETED"
	CustomTestStatusExpired    CustomTestStatus = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
func (s CustomTestStatus) Terminal() bool {
	return s == CustomTestStatusCompleted || s == CustomTestStatusExpired
}

// CustomTestQuestion is one self-authored question, stored inline as JSONB.
type CustomTestQuestion struct {
	Number        int             `json:"question_number"`
	PromptText    string          `json:"prompt_text"`
	Options       json.RawMessage `json:"options"`
	CorrectOption string          `json:"correct_option"`
}

// CustomTest is a learner-authored test instance with its own deadline and
// answer store, sharing the deadline engine and autosave pipeline with
// regular sessions. No device lock applies: only the owner can touch it.
type CustomTest struct {
	ID              uuid.UUID            `json:"id"`
	StudentID       int                  `json:"student_id"`
	Name            string               `json:"name"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []CustomTestQuestion `json:"questions,omitempty"`
	Status          CustomTestStatus     `json:"status"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	Deadline        *time.Time           `json:"deadline,omitempty"`
	FinishedAt      *time.Time           `json:"finished_at,omitempty"`
	Score           *Score               `json:"score,omitempty"`
}

// Remaining returns the time left until the deadline, clamped at zero.
// A custom test that has not started has no remaining time.
func (c *CustomTest) Remaining(now time.Time) time.Duration {
	if c.Deadline == nil {
		return 0
	}
	d := c.Deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// CreateCustomTestRequest is the payload for authoring a custom test.
type CreateCustomTestRequest struct {
	Name            string                      `json:"name" binding:"required,min=3,max=255"`
	DurationMinutes int                         `json:"duration_minutes" binding:"required,min=1,max=480"`
	Questions       []CreateCustomQuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// CreateCustomQuestionInput is one question in a custom test creation payload.
type CreateCustomQuestionInput struct {
	Number        int             `json:"question_number" binding:"required,min=1"`
	PromptText    string          `json:"prompt_text" binding:"required,min=1,max=4000"`
	Options       json.RawMessage `json:"options" binding:"required"`
	CorrectOption string          `json:"correct_option" binding:"required,max=10"`
}
