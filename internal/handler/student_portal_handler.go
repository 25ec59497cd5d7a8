package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/middleware"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/response"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/service"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/validator"
)

// StudentPortalHandler handles the learner-facing test-taking endpoints.
type StudentPortalHandler struct {
	sessionService *service.SessionService
	testService    *service.TestService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.SessionService,
	testService *service.TestService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		testService:    testService,
	}
}

// EnterTest godoc
// POST /api/v1/student/tests/:test_id/enter
// Starts or resumes the learner's single attempt. Re-entry on the same
// device continues; a completed attempt returns the result for redirect.
func (h *StudentPortalHandler) EnterTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.EnterTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Enter(c.Request.Context(), testID, claims.UserID, req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestCompleted):
			// Completed attempts are not an error for the client: it renders
			// the result instead of the paper.
			response.Success(c, http.StatusOK, gin.H{
				"session":  session,
				"redirect": "result",
			})
		case errors.Is(err, service.ErrActiveElsewhere):
			response.Fail(c, http.StatusConflict, response.ErrSessionActiveElsewhere)
		case errors.Is(err, service.ErrTestNotAvailable):
			response.Fail(c, http.StatusForbidden, response.ErrTestNotAvailable)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// ExitTest godoc
// POST /api/v1/student/tests/:test_id/exit
// Pauses the attempt. The clock keeps running against the fixed deadline.
func (h *StudentPortalHandler) ExitTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ExitTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.Exit(c.Request.Context(), testID, claims.UserID, req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestCompleted):
			response.Fail(c, http.StatusConflict, response.ErrTestCompleted)
		case errors.Is(err, service.ErrSessionNotActive):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// FinishTest godoc
// POST /api/v1/student/tests/:test_id/finish
// Finalizes the attempt and returns the graded result. Idempotent: repeats
// get the stored result.
func (h *StudentPortalHandler) FinishTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Finish(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotActive) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// SubmitAnswers godoc
// POST /api/v1/student/tests/:test_id/answers
// Ingests a batch of answer changes. Each change is versioned; stale writes
// are discarded and the response echoes what is actually stored.
func (h *StudentPortalHandler) SubmitAnswers(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	stored, err := h.sessionService.SubmitAnswers(c.Request.Context(), testID, claims.UserID, req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestCompleted):
			response.Fail(c, http.StatusConflict, response.ErrTestCompleted)
		case errors.Is(err, service.ErrDeadlineExceeded):
			response.Fail(c, http.StatusConflict, response.ErrDeadlineExceeded)
		case errors.Is(err, service.ErrSessionNotActive):
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answers": stored})
}

// GetTestState godoc
// GET /api/v1/student/tests/:test_id/state
// Resync endpoint for reloads: status, remaining time, and stored answers.
func (h *StudentPortalHandler) GetTestState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.sessionService.State(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotActive) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetTestPaper godoc
// GET /api/v1/student/tests/:test_id/paper
// Returns the test payload from Redis. Requires a live session for this
// test so a learner cannot pull papers they never entered.
func (h *StudentPortalHandler) GetTestPaper(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), testID, claims.UserID)
	if err != nil || session.Status.Terminal() {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	payload, err := h.testService.GetTestPayload(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrTestNotPublished)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// MyResult godoc
// GET /api/v1/student/tests/:test_id/my-result
// Returns the finalized session with its score.
func (h *StudentPortalHandler) MyResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	session, err := h.sessionService.Result(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotActive) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": session})
}
