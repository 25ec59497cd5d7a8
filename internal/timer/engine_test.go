package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestEngine() *Engine {
	return NewEngine(zerolog.Nop())
}

func TestTrackFiresOnDeadline(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	fired := make(chan uuid.UUID, 1)
	id := uuid.New()
	e.Track(id, time.Now().Add(30*time.Millisecond), func(sessionID uuid.UUID) {
		fired <- sessionID
	})

	select {
	case got := <-fired:
		if got != id {
			t.Errorf("expected %s, got %s", id, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expire callback never fired")
	}

	if e.Tracked(id) {
		t.Error("session still tracked after expiry")
	}
}

func TestTrackPastDeadlineFiresImmediately(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	fired := make(chan struct{}, 1)
	e.Track(uuid.New(), time.Now().Add(-time.Minute), func(uuid.UUID) {
		fired <- struct{}{}
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("past deadline did not fire")
	}
}

func TestCancelPreventsExpire(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	var fires int64
	id := uuid.New()
	e.Track(id, time.Now().Add(50*time.Millisecond), func(uuid.UUID) {
		atomic.AddInt64(&fires, 1)
	})
	e.Cancel(id)

	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt64(&fires); n != 0 {
		t.Errorf("expire fired %d times after Cancel", n)
	}
	if e.Tracked(id) {
		t.Error("session still tracked after Cancel")
	}
}

func TestRetrackReplacesTimer(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()

	var firstFires, secondFires int64
	id := uuid.New()

	e.Track(id, time.Now().Add(50*time.Millisecond), func(uuid.UUID) {
		atomic.AddInt64(&firstFires, 1)
	})
	// Re-track before the first deadline passes; only the second may fire.
	e.Track(id, time.Now().Add(120*time.Millisecond), func(uuid.UUID) {
		atomic.AddInt64(&secondFires, 1)
	})

	time.Sleep(300 * time.Millisecond)
	if n := atomic.LoadInt64(&firstFires); n != 0 {
		t.Errorf("replaced timer fired %d times", n)
	}
	if n := atomic.LoadInt64(&secondFires); n != 1 {
		t.Errorf("expected exactly one fire, got %d", n)
	}
}

func TestCancelUntrackedIsNoop(t *testing.T) {
	e := newTestEngine()
	defer e.Stop()
	e.Cancel(uuid.New())
}

func TestStopDisarmsAll(t *testing.T) {
	e := newTestEngine()

	var fires int64
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		e.Track(ids[i], time.Now().Add(50*time.Millisecond), func(uuid.UUID) {
			atomic.AddInt64(&fires, 1)
		})
	}
	e.Stop()

	time.Sleep(150 * time.Millisecond)
	if n := atomic.LoadInt64(&fires); n != 0 {
		t.Errorf("%d timers fired after Stop", n)
	}
	for _, id := range ids {
		if e.Tracked(id) {
			t.Errorf("session %s still tracked after Stop", id)
		}
	}
}

func TestRemainingClampsAtZero(t *testing.T) {
	now := time.Now()

	if got := Remaining(now.Add(time.Minute), now); got != time.Minute {
		t.Errorf("expected 1m, got %s", got)
	}
	if got := Remaining(now.Add(-time.Minute), now); got != 0 {
		t.Errorf("expected 0, got %s", got)
	}
	if got := Remaining(now, now); got != 0 {
		t.Errorf("expected 0 at exact deadline, got %s", got)
	}
}
