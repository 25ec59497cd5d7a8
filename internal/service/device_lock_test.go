package service

import "testing"

func TestHolderConflicts(t *testing.T) {
	tests := []struct {
		name     string
		holder   string
		deviceID string
		want     bool
	}{
		{name: "same device", holder: "dev-1", deviceID: "dev-1", want: false},
		{name: "different device", holder: "dev-1", deviceID: "dev-2", want: true},
		{name: "no holder", holder: "", deviceID: "dev-1", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := holderConflicts(tt.holder, tt.deviceID); got != tt.want {
				t.Errorf("holderConflicts(%q, %q) = %v, want %v", tt.holder, tt.deviceID, got, tt.want)
			}
		})
	}
}
