package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/middleware"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/response"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/service"
)

// ReportHandler handles result aggregation endpoints.
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// TestReport godoc
// GET /api/v1/teacher/tests/report/:test_id
// Per-learner sessions with answers and scores, author only. Supports
// ?status= and ?search= filters plus pagination.
func (h *ReportHandler) TestReport(c *gin.Context) {
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

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	var status, search *string
	if v := c.Query("status"); v != "" {
		status = &v
	}
	if v := c.Query("search"); v != "" {
		search = &v
	}

	rows, pagination, err := h.reportService.TestReport(c.Request.Context(), testID, claims.UserID, page, perPage, status, search)
	if err != nil {
		if errors.Is(err, service.ErrNotTestAuthor) {
			response.Fail(c, http.StatusForbidden, response.ErrNotTestAuthor)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": rows}, pagination)
}

// Statistics godoc
// GET /api/v1/tests/:test_id/statistics
// Completed-session leaderboard, visible to any authenticated user.
func (h *ReportHandler) Statistics(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	board, err := h.reportService.Statistics(c.Request.Context(), testID, limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"leaderboard": board})
}
