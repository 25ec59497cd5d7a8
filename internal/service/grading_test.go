package service

import (
	"math"
	"testing"
)

func opt(s string) *string { return &s }

func TestGrade(t *testing.T) {
	key := map[int]string{
		1: "A", 2: "B", 3: "C", 4: "D", 5: "A",
		6: "B", 7: "C", 8: "D", 9: "A", 10: "B",
	}
	answers := map[int]*string{
		1:  opt("A"), // correct
		2:  opt("B"), // correct
		3:  opt("A"), // wrong
		4:  opt("D"), // correct
		5:  nil,      // cleared, counts wrong
		6:  opt("B"), // correct
		7:  opt("C"), // correct
		8:  opt("A"), // wrong
		10: opt("B"), // correct
		// 9 never answered
	}

	score := Grade(key, answers)
	if score.Correct != 6 {
		t.Errorf("correct = %d, want 6", score.Correct)
	}
	if score.Total != 10 {
		t.Errorf("total = %d, want 10", score.Total)
	}
	if math.Abs(score.Percentage-60.0) > 1e-9 {
		t.Errorf("percentage = %f, want 60", score.Percentage)
	}
}

func TestGradeNoAnswers(t *testing.T) {
	key := map[int]string{1: "A", 2: "B"}

	score := Grade(key, nil)
	if score.Correct != 0 || score.Total != 2 || score.Percentage != 0 {
		t.Errorf("unexpected score: %+v", score)
	}
}

func TestGradeEmptyKey(t *testing.T) {
	score := Grade(nil, map[int]*string{1: opt("A")})
	if score.Correct != 0 || score.Total != 0 || score.Percentage != 0 {
		t.Errorf("empty key must score zero, got %+v", score)
	}
}

func TestGradeIgnoresExtraAnswers(t *testing.T) {
	key := map[int]string{1: "A"}
	answers := map[int]*string{1: opt("A"), 99: opt("D")}

	score := Grade(key, answers)
	if score.Correct != 1 || score.Total != 1 {
		t.Errorf("answers outside the key must not count: %+v", score)
	}
}
