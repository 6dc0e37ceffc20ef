package domain

import "time"

// Difficulty is the tier a quiz is authored at; it scales the star reward.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Valid reports whether d is one of the known tiers.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QuestionType tells clients how many options may be chosen. Grading treats both the same way.
type QuestionType string

const (
	SingleChoice QuestionType = "SINGLE_CHOICE"
	MultiChoice  QuestionType = "MULTI_CHOICE"
)

func (t QuestionType) Valid() bool {
	return t == SingleChoice || t == MultiChoice
}

// User is the subset of the account the engine reads and mutates.
type User struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	StarBalance          int    `json:"starBalance"`
	VisibleOnLeaderboard bool   `json:"visibleOnLeaderboard"`
}

// Theme groups quizzes into a chapter.
type Theme struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Correct     bool   `json:"isCorrect"`
	Explanation string `json:"explanation,omitempty"`
}

// Question belongs to one quiz and owns its options.
type Question struct {
	ID       string       `json:"id"`
	QuizID   string       `json:"quizId"`
	Prompt   string       `json:"prompt"`
	Type     QuestionType `json:"type"`
	Position int          `json:"position"`
	Options  []Option     `json:"options"`
}

// CorrectOptionIDs returns the IDs of the options flagged correct, in option order.
func (q Question) CorrectOptionIDs() []string {
	ids := make([]string, 0, 1)
	for _, opt := range q.Options {
		if opt.Correct {
			ids = append(ids, opt.ID)
		}
	}
	return ids
}

// Quiz is a collection of questions with the rules the economy applies to it.
type Quiz struct {
	ID               string     `json:"id"`
	ThemeID          string     `json:"themeId"`
	Title            string     `json:"title"`
	Position         int        `json:"position"`
	PassingScore     int        `json:"passingScore"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	Difficulty       Difficulty `json:"difficulty"`
	RequiredStars    int        `json:"requiredStars"`
	IsFree           bool       `json:"isFree"`
	IsActive         bool       `json:"isActive"`
	Questions        []Question `json:"questions,omitempty"`
}

// Attempt is the immutable record of one graded submission.
type Attempt struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	QuizID      string    `json:"quizId"`
	Score       int       `json:"score"`
	StarsEarned int       `json:"starsEarned"`
	CompletedAt time.Time `json:"completedAt"`
}

// ExtraAttemptPurchase grants one more attempt on a quiz.
type ExtraAttemptPurchase struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	QuizID      string    `json:"quizId"`
	StarsCost   int       `json:"starsCost"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

// Answers maps a question ID to the option IDs the user selected.
type Answers map[string][]string
