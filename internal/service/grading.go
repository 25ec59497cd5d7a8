package service

import (
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
)

// Grade compares recorded answers against the answer key. Every key question
// counts toward the total; an absent or cleared answer is simply incorrect.
// percentage = correct / total × 100.
func Grade(answerKey map[int]string, answers map[int]*string) model.Score {
	correct := 0
	total := len(answerKey)

	for qn, want := range answerKey {
		got, ok := answers[qn]
		if ok && got != nil && *got == want {
			correct++
		}
	}

	score := model.Score{Correct: correct, Total: total}
	if total > 0 {
		score.Percentage = float64(correct) / float64(total) * 100
	}
	return score
}
