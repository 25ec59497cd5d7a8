package answerstore

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func TestDecodeEntry(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantSeq uint64
		wantAns *string
		wantErr bool
	}{
		{name: "answer", raw: "3|B", wantSeq: 3, wantAns: strPtr("B")},
		{name: "cleared", raw: "7|", wantSeq: 7, wantAns: nil},
		{name: "large seq", raw: "18446744073709551615|D", wantSeq: 18446744073709551615, wantAns: strPtr("D")},
		{name: "no separator", raw: "42", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "leading separator", raw: "|B", wantErr: true},
		{name: "non numeric seq", raw: "abc|B", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := decodeEntry(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeEntry(%q): %v", tt.raw, err)
			}
			if entry.Seq != tt.wantSeq {
				t.Errorf("seq = %d, want %d", entry.Seq, tt.wantSeq)
			}
			if (entry.Answer == nil) != (tt.wantAns == nil) {
				t.Fatalf("answer nil-ness mismatch: got %v, want %v", entry.Answer, tt.wantAns)
			}
			if entry.Answer != nil && *entry.Answer != *tt.wantAns {
				t.Errorf("answer = %q, want %q", *entry.Answer, *tt.wantAns)
			}
		})
	}
}

func TestResolveToggle(t *testing.T) {
	tests := []struct {
		name      string
		current   *string
		submitted *string
		want      *string
	}{
		{name: "fresh selection", current: nil, submitted: strPtr("A"), want: strPtr("A")},
		{name: "change selection", current: strPtr("A"), submitted: strPtr("C"), want: strPtr("C")},
		{name: "same option toggles off", current: strPtr("B"), submitted: strPtr("B"), want: nil},
		{name: "explicit clear", current: strPtr("B"), submitted: nil, want: nil},
		{name: "clear when already empty", current: nil, submitted: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveToggle(tt.current, tt.submitted)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("got %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestNewer(t *testing.T) {
	if !Newer(1, 2) {
		t.Error("seq 2 should supplant seq 1")
	}
	if Newer(5, 5) {
		t.Error("equal seq must not supplant")
	}
	if Newer(9, 3) {
		t.Error("older seq must not supplant")
	}
}

func TestDeref(t *testing.T) {
	if deref(nil) != "" {
		t.Error("nil should deref to empty string")
	}
	if deref(strPtr("D")) != "D" {
		t.Error("deref lost value")
	}
}
