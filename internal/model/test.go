package model

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus enumerates the possible states of a test definition.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// ContentMode distinguishes tests whose questions render inline from tests
// that reference an external document the learner answers against.
type ContentMode string

const (
	ContentModeQuestion ContentMode = "QUESTION"
	ContentModeDocument ContentMode = "DOCUMENT"
)

// Test represents a test definition. It is immutable while any session is
// active: only DRAFT tests accept edits.
type Test struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	TeacherID       int         `json:"teacher_id"`
	DurationMinutes int         `json:"duration_minutes"`
	// Activity window. Nil bounds mean the side is unconstrained.
	StartsAt    *time.Time  `json:"starts_at,omitempty"`
	EndsAt      *time.Time  `json:"ends_at,omitempty"`
	ContentMode ContentMode `json:"content_mode"`
	DocumentURL *string     `json:"document_url,omitempty"`
	Status      TestStatus  `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Duration returns the test duration as a time.Duration.
func (t *Test) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// WindowOpen reports whether the activity window contains now.
func (t *Test) WindowOpen(now time.Time) bool {
	if t.StartsAt != nil && now.Before(*t.StartsAt) {
		return false
	}
	if t.EndsAt != nil && now.After(*t.EndsAt) {
		return false
	}
	return true
}

// CreateTestRequest is the payload for creating a new draft test.
type CreateTestRequest struct {
	Name            string     `json:"name" binding:"required,min=3,max=255"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	StartsAt        *time.Time `json:"starts_at" binding:"omitempty"`
	EndsAt          *time.Time `json:"ends_at" binding:"omitempty,gtfield=StartsAt"`
	ContentMode     string     `json:"content_mode" binding:"required,oneof=QUESTION DOCUMENT"`
	DocumentURL     *string    `json:"document_url" binding:"omitempty,url"`
}

// UpdateTestRequest is the payload for updating an existing draft test.
type UpdateTestRequest struct {
	Name            string     `json:"name" binding:"omitempty,min=3,max=255"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	StartsAt        *time.Time `json:"starts_at" binding:"omitempty"`
	EndsAt          *time.Time `json:"ends_at" binding:"omitempty,gtfield=StartsAt"`
	ContentMode     string     `json:"content_mode" binding:"omitempty,oneof=QUESTION DOCUMENT"`
	DocumentURL     *string    `json:"document_url" binding:"omitempty,url"`
}

// TestPayload is the Redis-cached payload sent to learners. It never carries
// correct options.
type TestPayload struct {
	TestID          uuid.UUID            `json:"test_id"`
	Name            string               `json:"name"`
	DurationMinutes int                  `json:"duration_minutes"`
	ContentMode     ContentMode          `json:"content_mode"`
	DocumentURL     *string              `json:"document_url,omitempty"`
	Questions       []QuestionForStudent `json:"questions"`
}
