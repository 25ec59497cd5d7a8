package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/middleware"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/service"
	ws "github.com/Abulfadl-Ahmadi/Academia-sub002/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the live session stream: autosave, resync, and finish
// all ride the same socket so a test client needs one connection.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/tests/:test_id/stream
// Upgrades to WebSocket for versioned autosave and finish over one socket.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid test ID"})
		return
	}

	studentID := claims.UserID

	// The stream requires a live session; entering happens over HTTP first.
	sess, err := h.sessionService.GetSession(c.Request.Context(), testID, studentID)
	if err != nil || sess.Status != model.SessionStatusInProgress {
		c.JSON(http.StatusForbidden, gin.H{"error": "no active session for this test"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("test_id", testID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.Request
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, wsLog, testID, studentID, &msg)
		case ws.ActionFinish:
			h.handleFinish(conn, wsLog, testID, studentID)
			return
		case ws.ActionState:
			h.handleState(conn, wsLog, testID, studentID)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, wsLog zerolog.Logger, testID uuid.UUID, studentID int, msg *ws.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if msg.QuestionNumber < 1 || msg.Seq < 1 {
		ws.WriteError(conn, "question_number and seq are required")
		return
	}

	stored, err := h.sessionService.SubmitAnswers(ctx, testID, studentID, []model.AnswerSubmission{{
		QuestionNumber: msg.QuestionNumber,
		Answer:         msg.Answer,
		Seq:            msg.Seq,
	}})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDeadlineExceeded), errors.Is(err, service.ErrTestCompleted):
			ws.WriteError(conn, "session is no longer accepting answers")
		default:
			wsLog.Error().Err(err).Msg("Autosave error")
			ws.WriteError(conn, "save failed")
		}
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{
		Event:          ws.EventSaved,
		QuestionNumber: msg.QuestionNumber,
		Stored:         stored[msg.QuestionNumber],
	})
}

func (h *WSHandler) handleFinish(conn *websocket.Conn, wsLog zerolog.Logger, testID uuid.UUID, studentID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := h.sessionService.Finish(ctx, testID, studentID)
	if err != nil {
		wsLog.Error().Err(err).Msg("Finish error")
		ws.WriteError(conn, "finish failed")
		return
	}

	resp := ws.GradedResponse{
		Event:  ws.EventGraded,
		Status: string(sess.Status),
	}
	if sess.Score != nil {
		resp.Correct = sess.Score.Correct
		resp.Total = sess.Score.Total
		resp.Percentage = sess.Score.Percentage
	}

	wsLog.Info().
		Str("status", string(sess.Status)).
		Float64("percentage", resp.Percentage).
		Msg("Session finished over stream")
	ws.WriteTyped(conn, resp)
}

func (h *WSHandler) handleState(conn *websocket.Conn, wsLog zerolog.Logger, testID uuid.UUID, studentID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	state, err := h.sessionService.State(ctx, testID, studentID)
	if err != nil {
		wsLog.Error().Err(err).Msg("State error")
		ws.WriteError(conn, "state failed")
		return
	}

	ws.WriteTyped(conn, ws.StateResponse{
		Event:            ws.EventState,
		Status:           string(state.Status),
		RemainingSeconds: state.RemainingSeconds,
		Answers:          state.Answers,
	})
}
