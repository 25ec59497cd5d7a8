package model

import (
	"testing"
	"time"
)

func TestWindowOpen(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		startsAt *time.Time
		endsAt   *time.Time
		want     bool
	}{
		{name: "unbounded", want: true},
		{name: "inside window", startsAt: &past, endsAt: &future, want: true},
		{name: "before start", startsAt: &future, want: false},
		{name: "after end", endsAt: &past, want: false},
		{name: "open start only", endsAt: &future, want: true},
		{name: "open end only", startsAt: &past, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			test := &Test{StartsAt: tt.startsAt, EndsAt: tt.endsAt}
			if got := test.WindowOpen(now); got != tt.want {
				t.Errorf("WindowOpen = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	test := &Test{DurationMinutes: 90}
	if got := test.Duration(); got != 90*time.Minute {
		t.Errorf("Duration = %s, want 90m", got)
	}
}
