package domain

// GradeQuestion reports whether selected is exactly the set of correct options.
// There is no partial credit: a missing or an extra option makes the answer wrong.
func GradeQuestion(q Question, selected []string) bool {
	chosen := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		chosen[id] = struct{}{}
	}
	correct := q.CorrectOptionIDs()
	if len(chosen) != len(correct) {
		return false
	}
	for _, id := range correct {
		if _, ok := chosen[id]; !ok {
			return false
		}
	}
	return true
}

// Grade scores answers against questions. Answers for unknown questions are
// ignored and unanswered questions count as wrong. Callers must not pass an
// empty question list.
func Grade(questions []Question, answers Answers) (score, correctCount int) {
	for _, q := range questions {
		if GradeQuestion(q, answers[q.ID]) {
			correctCount++
		}
	}
	return Percent(correctCount, len(questions)), correctCount
}

// Percent returns round(100*correct/total) with halves rounded up.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}
