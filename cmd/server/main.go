package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/answerstore"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/config"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/database"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/handler"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/logger"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/repository"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/router"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/service"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/timer"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/validator"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Academia Session Engine")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	customTestRepo := repository.NewCustomTestRepository(pool)

	// ─── Initialize Shared Engines ────────────────────────────────────
	store := answerstore.NewStore(rdb)
	engine := timer.NewEngine(log)
	defer engine.Stop()

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	userService := service.NewUserService(userRepo, authService, log)
	testService := service.NewTestService(testRepo, questionRepo, rdb, log)
	lockGuard := service.NewDeviceLockGuard(rdb)
	sessionService := service.NewSessionService(
		sessionRepo, answerRepo, testService, lockGuard, store, engine,
		rdb, cfg.DeviceLockGrace, log,
	)
	customTestService := service.NewCustomTestService(customTestRepo, store, engine, log)
	reportService := service.NewReportService(sessionRepo, answerRepo, testService, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, userService),
		StudentPortal: handler.NewStudentPortalHandler(sessionService, testService),
		Test:          handler.NewTestHandler(testService, sessionService),
		Report:        handler.NewReportHandler(reportService),
		CustomTest:    handler.NewCustomTestHandler(customTestService),
		WS:            handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	autosaveWorker := worker.NewAutosaveWorker(answerRepo, rdb, log)
	finalizeWorker := worker.NewFinalizeWorker(answerRepo, store, rdb, log)
	expiryWorker := worker.NewExpiryWorker(sessionService, customTestService, cfg.ExpirySweepInterval, log)

	go autosaveWorker.Start(workerCtx)
	go finalizeWorker.Start(workerCtx)
	go expiryWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published tests into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := testService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
