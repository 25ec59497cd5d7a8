package model

import "github.com/google/uuid"

// PersistAnswerJob is one queued answer write headed for PostgreSQL. The
// worker upserts it with the same newer-seq-wins rule as the Redis store.
type PersistAnswerJob struct {
	SessionID      uuid.UUID `json:"session_id"`
	QuestionNumber int       `json:"question_number"`
	Answer         *string   `json:"answer"`
	Seq            uint64    `json:"seq"`
}

// FinalizeSessionJob asks the finalize worker to snapshot a terminal
// session's Redis answer buffer into PostgreSQL and drop the buffer.
type FinalizeSessionJob struct {
	SessionID uuid.UUID `json:"session_id"`
}
