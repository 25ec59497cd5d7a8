package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/service"
)

const expirySweepLimit = 200

// ExpiryWorker periodically finalizes sessions and custom tests whose
// deadline passed without an in-process timer firing. In-process timers
// handle the common case; this sweeper covers restarts and clock drift.
type ExpiryWorker struct {
	sessions *service.SessionService
	custom   *service.CustomTestService
	interval time.Duration
	log      zerolog.Logger
}

// NewExpiryWorker creates a new ExpiryWorker.
func NewExpiryWorker(sessions *service.SessionService, custom *service.CustomTestService, interval time.Duration, log zerolog.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		sessions: sessions,
		custom:   custom,
		interval: interval,
		log:      log.With().Str("component", "expiry_worker").Logger(),
	}
}

// Start begins the sweep loop. Call in a goroutine. The first sweep runs
// immediately so a restarted process catches up without waiting a tick.
func (w *ExpiryWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Sweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	expired, err := w.sessions.ExpireOverdue(ctx, expirySweepLimit)
	if err != nil {
		w.log.Error().Err(err).Msg("Session sweep failed")
	} else if expired > 0 {
		w.log.Info().Int("expired", expired).Msg("Expired overdue sessions")
	}

	expired, err = w.custom.ExpireOverdue(ctx, expirySweepLimit)
	if err != nil {
		w.log.Error().Err(err).Msg("Custom test sweep failed")
	} else if expired > 0 {
		w.log.Info().Int("expired", expired).Msg("Expired overdue custom tests")
	}
}
