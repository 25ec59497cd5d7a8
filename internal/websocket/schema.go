package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionFinish   Action = "finish"
	ActionState    Action = "state"
	ActionPing     Action = "ping"
)

// Request is the single client message shape. Action selects which fields
// matter; autosave uses QuestionNumber, Answer, and Seq.
type Request struct {
	Action         Action  `json:"action"`
	QuestionNumber int     `json:"question_number,omitempty"`
	Answer         *string `json:"answer,omitempty"`
	Seq            uint64  `json:"seq,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventState  Event = "state"
	EventPong   Event = "pong"
)

// SavedResponse acknowledges an autosave and echoes what is actually stored,
// which may differ from the submitted value when a newer write already won
// or the submission toggled the answer off.
type SavedResponse struct {
	Event          Event   `json:"event"`
	QuestionNumber int     `json:"question_number"`
	Stored         *string `json:"stored"`
}

// GradedResponse reports the finalized result.
type GradedResponse struct {
	Event      Event   `json:"event"`
	Status     string  `json:"status"`
	Correct    int     `json:"correct"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// StateResponse carries the resync snapshot over the stream.
type StateResponse struct {
	Event            Event           `json:"event"`
	Status           string          `json:"status"`
	RemainingSeconds float64         `json:"remaining_seconds"`
	Answers          map[int]*string `json:"answers"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
