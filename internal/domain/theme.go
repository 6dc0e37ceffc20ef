package domain

// ThemeCompletion reports how far a user is through a theme.
type ThemeCompletion struct {
	ThemeID       string `json:"themeId"`
	ThemeName     string `json:"themeName"`
	Completed     bool   `json:"completed"`
	PassedQuizzes int    `json:"passedQuizzes"`
	TotalQuizzes  int    `json:"totalQuizzes"`
}

// EvaluateTheme decides completion from the active quizzes of a theme and the
// user's best score per quiz ID. A theme with no active quizzes is never completed.
func EvaluateTheme(theme Theme, quizzes []Quiz, bestScores map[string]int) ThemeCompletion {
	out := ThemeCompletion{ThemeID: theme.ID, ThemeName: theme.Name}
	for _, q := range quizzes {
		if !q.IsActive {
			continue
		}
		out.TotalQuizzes++
		if best, ok := bestScores[q.ID]; ok && best >= q.PassingScore {
			out.PassedQuizzes++
		}
	}
	out.Completed = out.TotalQuizzes > 0 && out.PassedQuizzes == out.TotalQuizzes
	return out
}
