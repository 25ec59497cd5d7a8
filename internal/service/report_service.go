package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/repository"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/response"
)

// ReportService produces the teacher-facing report and the public
// leaderboard for a test.
type ReportService struct {
	sessionRepo *repository.SessionRepository
	answerRepo  *repository.AnswerRepository
	testSvc     *TestService
	log         zerolog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(
	sessionRepo *repository.SessionRepository,
	answerRepo *repository.AnswerRepository,
	testSvc *TestService,
	log zerolog.Logger,
) *ReportService {
	return &ReportService{
		sessionRepo: sessionRepo,
		answerRepo:  answerRepo,
		testSvc:     testSvc,
		log:         log.With().Str("component", "report_service").Logger(),
	}
}

// TestReport returns per-learner session rows for a test, answers included.
// Only the test's author may read it.
func (s *ReportService) TestReport(ctx context.Context, testID uuid.UUID, teacherID, page, perPage int, status, search *string) ([]repository.SessionReportRow, *response.Pagination, error) {
	t, err := s.testSvc.GetByID(ctx, testID)
	if err != nil {
		return nil, nil, fmt.Errorf("get test: %w", err)
	}
	if teacherID != 0 && t.TeacherID != teacherID {
		return nil, nil, ErrNotTestAuthor
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 200 {
		perPage = 200
	}

	rows, total, err := s.sessionRepo.ListByTest(ctx, testID, page, perPage, status, search)
	if err != nil {
		return nil, nil, fmt.Errorf("list sessions: %w", err)
	}

	if len(rows) > 0 {
		ids := make([]uuid.UUID, len(rows))
		for i, r := range rows {
			ids[i] = r.SessionID
		}
		answers, err := s.answerRepo.MapBySessions(ctx, ids)
		if err != nil {
			return nil, nil, fmt.Errorf("load answers: %w", err)
		}
		for i := range rows {
			if m, ok := answers[rows[i].SessionID]; ok {
				rows[i].Answers = m
			} else {
				rows[i].Answers = map[int]*string{}
			}
		}
	}
	if rows == nil {
		rows = []repository.SessionReportRow{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
	}
	return rows, pagination, nil
}

// Statistics returns the completed-session leaderboard. Readable by any
// authenticated user once the test is published.
func (s *ReportService) Statistics(ctx context.Context, testID uuid.UUID, limit int) ([]repository.LeaderboardRow, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	board, err := s.sessionRepo.Leaderboard(ctx, testID, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	if board == nil {
		board = []repository.LeaderboardRow{}
	}
	return board, nil
}
