package domain

import (
	"sort"
	"time"
)

// SortAttempts returns a copy of attempts ordered newest first.
func SortAttempts(attempts []Attempt) []Attempt {
	out := append([]Attempt(nil), attempts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AttemptDate.After(out[j].AttemptDate)
	})
	return out
}

// Grade scores chosen options (question id -> option text) against the answer
// key. Every question is worth one point; unanswered questions score zero.
func Grade(questions []Question, answers map[string]string) Attempt {
	a := Attempt{TotalScore: len(questions)}
	for _, q := range questions {
		if chosen, ok := answers[q.ID]; ok && chosen == q.Answer {
			a.Score++
		}
	}
	return a
}

// Summarize builds the creator view of one quiz. A student counts as late when
// their first attempt came after the deadline.
func Summarize(quiz Quiz, stats []QuizStat) QuizSummary {
	summary := QuizSummary{
		QuizID:   quiz.ID,
		QuizName: quiz.QuizName,
		Deadline: quiz.Deadline,
		Students: make([]StudentResult, 0, len(stats)),
	}

	var pctSum float64
	for _, st := range stats {
		if len(st.Attempts) == 0 {
			continue
		}
		row := StudentResult{
			UserID:      st.UserID,
			Name:        st.Name,
			Email:       st.Email,
			Attempts:    len(st.Attempts),
			LastAttempt: st.LastAttemptDate,
		}
		first := time.Time{}
		bestPct := -1.0
		for _, a := range st.Attempts {
			if first.IsZero() || a.AttemptDate.Before(first) {
				first = a.AttemptDate
			}
			if a.TotalScore <= 0 {
				continue
			}
			if pct := float64(a.Score) / float64(a.TotalScore); pct > bestPct {
				bestPct = pct
				row.BestScore, row.TotalScore = a.Score, a.TotalScore
			}
		}
		row.Late = first.After(quiz.Deadline)
		if row.Late {
			summary.Late++
		}
		if bestPct >= 0 {
			pctSum += bestPct * 100
		}
		summary.Attempted++
		summary.Students = append(summary.Students, row)
	}
	if summary.Attempted > 0 {
		summary.AverageBestScore = pctSum / float64(summary.Attempted)
	}

	sort.Slice(summary.Students, func(i, j int) bool {
		a, b := summary.Students[i], summary.Students[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UserID < b.UserID
	})
	return summary
}
