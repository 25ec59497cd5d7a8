// Package timer owns one deadline timer per active session. The server-issued
// absolute deadline is the single source of truth; client ticking is advisory
// and resynchronizes against Remaining.
package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExpireFunc is invoked exactly once when a tracked deadline passes without
// the session being cancelled first.
type ExpireFunc func(sessionID uuid.UUID)

// Engine tracks at most one timer per session. Cancel guarantees the expire
// callback will not fire afterwards, so any transition into a terminal state
// can safely tear the timer down.
type Engine struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	log    zerolog.Logger
}

// NewEngine creates an empty engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		timers: make(map[uuid.UUID]*time.Timer),
		log:    log.With().Str("component", "timer_engine").Logger(),
	}
}

// Track arms (or re-arms) the timer for a session. A deadline already in the
// past fires expire on the timer goroutine almost immediately. Re-tracking an
// existing session replaces its timer, so resume never stacks timers.
func (e *Engine) Track(sessionID uuid.UUID, deadline time.Time, expire ExpireFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.timers[sessionID]; ok {
		old.Stop()
	}

	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}

	// The callback compares timer identity under the lock, so neither Cancel
	// nor a replacing Track can race a stale firing into expire.
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		e.mu.Lock()
		live := e.timers[sessionID] == t
		if live {
			delete(e.timers, sessionID)
		}
		e.mu.Unlock()

		if live {
			e.log.Debug().Str("session_id", sessionID.String()).Msg("Deadline reached")
			expire(sessionID)
		}
	})
	e.timers[sessionID] = t
}

// Cancel disarms a session's timer. After Cancel returns, the expire callback
// for that session will not be invoked. Cancelling an untracked session is a
// no-op.
func (e *Engine) Cancel(sessionID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.timers[sessionID]; ok {
		t.Stop()
		delete(e.timers, sessionID)
	}
}

// Tracked reports whether a session currently has an armed timer.
func (e *Engine) Tracked(sessionID uuid.UUID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.timers[sessionID]
	return ok
}

// Stop disarms every timer. Used on shutdown.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

// Remaining clamps deadline − now at zero. All remaining-time reads go
// through here so the value can never exceed the authoritative bound.
func Remaining(deadline, now time.Time) time.Duration {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
