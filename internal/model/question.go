package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question represents a single test question. PublicNumber is the per-test
// question_number learners address answers to; it is unique within a test.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	TestID        uuid.UUID       `json:"test_id"`
	PublicNumber  int             `json:"question_number"`
	PromptText    string          `json:"prompt_text"`
	Options       json.RawMessage `json:"options"`
	ImageURLs     json.RawMessage `json:"image_urls,omitempty"`
	CorrectOption string          `json:"correct_option"`
}

// QuestionForStudent is a question stripped of its correct option.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	PublicNumber int             `json:"question_number"`
	PromptText   string          `json:"prompt_text"`
	Options      json.RawMessage `json:"options"`
	ImageURLs    json.RawMessage `json:"image_urls,omitempty"`
}

// AddQuestionRequest is the payload for adding a question to a draft test.
type AddQuestionRequest struct {
	PublicNumber  int             `json:"question_number" binding:"required,min=1"`
	PromptText    string          `json:"prompt_text" binding:"required,min=1,max=4000"`
	Options       json.RawMessage `json:"options" binding:"required"`
	ImageURLs     json.RawMessage `json:"image_urls" binding:"omitempty"`
	CorrectOption string          `json:"correct_option" binding:"required,max=10"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing a test's questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"dive"`
}
