package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/config"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/handler"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/middleware"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/response"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Test          *handler.TestHandler
	Report        *handler.ReportHandler
	CustomTest    *handler.CustomTestHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/teacher/login", handlers.Auth.TeacherLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/me", middleware.RequireStudentJWT(authService), handlers.Auth.Me)
		auth.GET("/teacher/me", middleware.RequireTeacherJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Student Group (JWT + Single Device Login) ──────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceLogin(authService),
	)
	{
		studentAPI.POST("/tests/:test_id/enter", handlers.StudentPortal.EnterTest)
		studentAPI.POST("/tests/:test_id/exit", handlers.StudentPortal.ExitTest)
		studentAPI.POST("/tests/:test_id/finish", handlers.StudentPortal.FinishTest)
		studentAPI.POST("/tests/:test_id/answers", handlers.StudentPortal.SubmitAnswers)
		studentAPI.GET("/tests/:test_id/state", handlers.StudentPortal.GetTestState)
		studentAPI.GET("/tests/:test_id/paper", handlers.StudentPortal.GetTestPaper)
		studentAPI.GET("/tests/:test_id/my-result", handlers.StudentPortal.MyResult)

		studentAPI.POST("/custom-tests", handlers.CustomTest.Create)
		studentAPI.GET("/custom-tests", handlers.CustomTest.List)
		studentAPI.GET("/custom-tests/:custom_test_id", handlers.CustomTest.Get)
		studentAPI.POST("/custom-tests/:custom_test_id/start", handlers.CustomTest.Start)
		studentAPI.POST("/custom-tests/:custom_test_id/answers", handlers.CustomTest.SubmitAnswers)
		studentAPI.GET("/custom-tests/:custom_test_id/state", handlers.CustomTest.State)
		studentAPI.POST("/custom-tests/:custom_test_id/finish", handlers.CustomTest.Finish)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/tests/:test_id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Teacher Group (JWT) ────────────────────────────────────────
	teacherAPI := router.Group("/api/v1/teacher")
	teacherAPI.Use(middleware.RequireTeacherJWT(authService))
	{
		teacherAPI.GET("/tests", handlers.Test.ListTests)
		teacherAPI.POST("/tests", handlers.Test.CreateTest)
		teacherAPI.GET("/tests/:test_id", handlers.Test.GetTest)
		teacherAPI.PUT("/tests/:test_id", handlers.Test.UpdateTest)
		teacherAPI.DELETE("/tests/:test_id", handlers.Test.DeleteTest)
		teacherAPI.GET("/tests/:test_id/questions", handlers.Test.ListQuestions)
		teacherAPI.POST("/tests/:test_id/questions", handlers.Test.AddQuestion)
		teacherAPI.PUT("/tests/:test_id/questions", handlers.Test.ReplaceQuestions)
		teacherAPI.POST("/tests/:test_id/publish", handlers.Test.PublishTest)
		teacherAPI.POST("/tests/:test_id/refresh-cache", handlers.Test.RefreshCache)
		teacherAPI.POST("/tests/:test_id/students/:student_id/release-device", handlers.Test.ReleaseDeviceLock)
		teacherAPI.GET("/tests/report/:test_id", handlers.Report.TestReport)
	}

	// ─── 5. Shared (any authenticated user) ────────────────────────────
	// Leaderboards change only when someone finishes; short-lived client
	// caching takes the edge off reload storms.
	statsAPI := router.Group("/api/v1/tests")
	statsAPI.Use(middleware.RequireAnyJWT(authService), middleware.CacheControl(30))
	{
		statsAPI.GET("/:test_id/statistics", handlers.Report.Statistics)
	}

	return router
}
