package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/middleware"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/response"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/service"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/validator"
)

// TestHandler handles teacher-facing test authoring endpoints.
type TestHandler struct {
	testService    *service.TestService
	sessionService *service.SessionService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService, sessionService *service.SessionService) *TestHandler {
	return &TestHandler{testService: testService, sessionService: sessionService}
}

// ListTests godoc
// GET /api/v1/teacher/tests
func (h *TestHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	tests, pagination, err := h.testService.ListByTeacher(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, pagination)
}

// CreateTest godoc
// POST /api/v1/teacher/tests
func (h *TestHandler) CreateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	t := &model.Test{
		TeacherID:       claims.UserID,
		Name:            req.Name,
		ContentMode:     model.ContentMode(req.ContentMode),
		DocumentURL:     req.DocumentURL,
		DurationMinutes: req.DurationMinutes,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
	}
	if err := h.testService.Create(c.Request.Context(), t); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": t})
}

// GetTest godoc
// GET /api/v1/teacher/tests/:test_id
func (h *TestHandler) GetTest(c *gin.Context) {
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

	t, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if t.TeacherID != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrNotTestAuthor)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": t})
}

// UpdateTest godoc
// PUT /api/v1/teacher/tests/:test_id
func (h *TestHandler) UpdateTest(c *gin.Context) {
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

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	t := &model.Test{
		ID:              testID,
		Name:            req.Name,
		ContentMode:     model.ContentMode(req.ContentMode),
		DocumentURL:     req.DocumentURL,
		DurationMinutes: req.DurationMinutes,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
	}
	if err := h.testService.Update(c.Request.Context(), claims.UserID, t); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": t})
}

// DeleteTest godoc
// DELETE /api/v1/teacher/tests/:test_id
func (h *TestHandler) DeleteTest(c *gin.Context) {
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

	if err := h.testService.Delete(c.Request.Context(), testID, claims.UserID); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ListQuestions godoc
// GET /api/v1/teacher/tests/:test_id/questions
func (h *TestHandler) ListQuestions(c *gin.Context) {
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

	questions, err := h.testService.ListQuestions(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/teacher/tests/:test_id/questions
func (h *TestHandler) AddQuestion(c *gin.Context) {
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

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.testService.AddQuestion(c.Request.Context(), testID, claims.UserID, &req)
	if err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// ReplaceQuestions godoc
// PUT /api/v1/teacher/tests/:test_id/questions
// Swaps the full question list in one transaction.
func (h *TestHandler) ReplaceQuestions(c *gin.Context) {
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

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.testService.ReplaceQuestions(c.Request.Context(), testID, claims.UserID, &req); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// PublishTest godoc
// POST /api/v1/teacher/tests/:test_id/publish
// Warms the Redis payload and answer key, then flips the test to PUBLISHED.
func (h *TestHandler) PublishTest(c *gin.Context) {
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

	if err := h.testService.Publish(c.Request.Context(), testID, claims.UserID); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": model.TestStatusPublished})
}

// RefreshCache godoc
// POST /api/v1/teacher/tests/:test_id/refresh-cache
func (h *TestHandler) RefreshCache(c *gin.Context) {
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

	if err := h.testService.RefreshCache(c.Request.Context(), testID, claims.UserID); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ReleaseDeviceLock godoc
// POST /api/v1/teacher/tests/:test_id/students/:student_id/release-device
// Manual override for a learner whose device lost its fingerprint.
func (h *TestHandler) ReleaseDeviceLock(c *gin.Context) {
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
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil || studentID < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.ReleaseDeviceLock(c.Request.Context(), testID, claims.UserID, studentID); err != nil {
		h.failAuthoring(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

func (h *TestHandler) failAuthoring(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotTestAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotTestAuthor)
	case errors.Is(err, service.ErrTestNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrTestNotDraft)
	case errors.Is(err, service.ErrTestNotPublished):
		response.Fail(c, http.StatusConflict, response.ErrTestNotPublished)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
