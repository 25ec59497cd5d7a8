package model

import (
	"testing"
	"time"
)

func TestSessionStatusTerminal(t *testing.T) {
	tests := []struct {
		status SessionStatus
		want   bool
	}{
		{SessionStatusInProgress, false},
		{SessionStatusInactive, false},
		{SessionStatusCompleted, true},
		{SessionStatusExpired, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestSessionStatusCanTransition(t *testing.T) {
	tests := []struct {
		from SessionStatus
		to   SessionStatus
		want bool
	}{
		{SessionStatusInProgress, SessionStatusInactive, true},
		{SessionStatusInProgress, SessionStatusCompleted, true},
		{SessionStatusInProgress, SessionStatusExpired, true},
		{SessionStatusInProgress, SessionStatusInProgress, false},
		{SessionStatusInactive, SessionStatusInProgress, true},
		{SessionStatusInactive, SessionStatusCompleted, true},
		{SessionStatusInactive, SessionStatusExpired, true},
		{SessionStatusInactive, SessionStatusInactive, false},
		{SessionStatusCompleted, SessionStatusInProgress, false},
		{SessionStatusCompleted, SessionStatusExpired, false},
		{SessionStatusExpired, SessionStatusInProgress, false},
		{SessionStatusExpired, SessionStatusCompleted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSessionRemaining(t *testing.T) {
	now := time.Now()
	s := &TestSession{Deadline: now.Add(10 * time.Minute)}

	if got := s.Remaining(now); got != 10*time.Minute {
		t.Errorf("remaining = %s, want 10m", got)
	}
	if got := s.Remaining(now.Add(15 * time.Minute)); got != 0 {
		t.Errorf("overdue remaining = %s, want 0", got)
	}
	if got := s.Remaining(s.Deadline); got != 0 {
		t.Errorf("remaining at deadline = %s, want 0", got)
	}
}

func TestCustomTestStatusTerminal(t *testing.T) {
	tests := []struct {
		status CustomTestStatus
		want   bool
	}{
		{CustomTestStatusDraft, false},
		{CustomTestStatusInProgress, false},
		{CustomTestStatusCompleted, true},
		{CustomTestStatusExpired, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
