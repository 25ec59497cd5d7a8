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

// CustomTestHandler handles learner-authored test endpoints.
type CustomTestHandler struct {
	customService *service.CustomTestService
}

// NewCustomTestHandler creates a new CustomTestHandler.
func NewCustomTestHandler(customService *service.CustomTestService) *CustomTestHandler {
	return &CustomTestHandler{customService: customService}
}

// Create godoc
// POST /api/v1/student/custom-tests
func (h *CustomTestHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateCustomTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ct, err := h.customService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"custom_test": ct})
}

// List godoc
// GET /api/v1/student/custom-tests
func (h *CustomTestHandler) List(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tests, err := h.customService.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"custom_tests": tests})
}

// Get godoc
// GET /api/v1/student/custom-tests/:custom_test_id
func (h *CustomTestHandler) Get(c *gin.Context) {
	h.withOwned(c, func(c *gin.Context, id uuid.UUID, studentID int) (any, error) {
		ct, err := h.customService.Get(c.Request.Context(), id, studentID)
		return gin.H{"custom_test": ct}, err
	})
}

// Start godoc
// POST /api/v1/student/custom-tests/:custom_test_id/start
func (h *CustomTestHandler) Start(c *gin.Context) {
	h.withOwned(c, func(c *gin.Context, id uuid.UUID, studentID int) (any, error) {
		ct, err := h.customService.Start(c.Request.Context(), id, studentID)
		return gin.H{"custom_test": ct}, err
	})
}

// SubmitAnswers godoc
// POST /api/v1/student/custom-tests/:custom_test_id/answers
func (h *CustomTestHandler) SubmitAnswers(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("custom_test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.SubmitAnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	stored, err := h.customService.SubmitAnswers(c.Request.Context(), id, claims.UserID, req.Answers)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answers": stored})
}

// State godoc
// GET /api/v1/student/custom-tests/:custom_test_id/state
func (h *CustomTestHandler) State(c *gin.Context) {
	h.withOwned(c, func(c *gin.Context, id uuid.UUID, studentID int) (any, error) {
		state, err := h.customService.State(c.Request.Context(), id, studentID)
		return state, err
	})
}

// Finish godoc
// POST /api/v1/student/custom-tests/:custom_test_id/finish
func (h *CustomTestHandler) Finish(c *gin.Context) {
	h.withOwned(c, func(c *gin.Context, id uuid.UUID, studentID int) (any, error) {
		ct, err := h.customService.Finish(c.Request.Context(), id, studentID)
		return gin.H{"custom_test": ct}, err
	})
}

// withOwned factors the claims + id parsing common to single-resource routes.
func (h *CustomTestHandler) withOwned(c *gin.Context, fn func(*gin.Context, uuid.UUID, int) (any, error)) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("custom_test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	data, err := fn(c, id, claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, data)
}

func (h *CustomTestHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCustomTestNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotCustomTestOwner):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrCustomTestNotDraft):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrCustomTestNotLive):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotActive)
	case errors.Is(err, service.ErrDeadlineExceeded):
		response.Fail(c, http.StatusConflict, response.ErrDeadlineExceeded)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
