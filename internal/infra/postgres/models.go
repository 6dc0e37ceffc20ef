package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quiz-mastery-service/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID                   string `bun:"id,pk"`
	Name                 string `bun:"name"`
	StarBalance          int    `bun:"star_balance"`
	VisibleOnLeaderboard bool   `bun:"visible_on_leaderboard"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{ID: r.ID, Name: r.Name, StarBalance: r.StarBalance, VisibleOnLeaderboard: r.VisibleOnLeaderboard}
}

type themeRow struct {
	bun.BaseModel `bun:"table:themes"`

	ID       string `bun:"id,pk"`
	Name     string `bun:"name"`
	Position int    `bun:"position"`
}

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes,alias:qz"`

	ID               string `bun:"id,pk"`
	ThemeID          string `bun:"theme_id"`
	Title            string `bun:"title"`
	Position         int    `bun:"position"`
	PassingScore     int    `bun:"passing_score"`
	TimeLimitMinutes int    `bun:"time_limit_minutes"`
	Difficulty       string `bun:"difficulty"`
	RequiredStars    int    `bun:"required_stars"`
	IsFree           bool   `bun:"is_free"`
	IsActive         bool   `bun:"is_active"`
}

func (r quizRow) toDomain() domain.Quiz {
	return domain.Quiz{
		ID:               r.ID,
		ThemeID:          r.ThemeID,
		Title:            r.Title,
		Position:         r.Position,
		PassingScore:     r.PassingScore,
		TimeLimitMinutes: r.TimeLimitMinutes,
		Difficulty:       domain.Difficulty(r.Difficulty),
		RequiredStars:    r.RequiredStars,
		IsFree:           r.IsFree,
		IsActive:         r.IsActive,
	}
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:question"`

	ID       string `bun:"id,pk"`
	QuizID   string `bun:"quiz_id"`
	Prompt   string `bun:"prompt"`
	Type     string `bun:"type"`
	Position int    `bun:"position"`
}

type optionRow struct {
	bun.BaseModel `bun:"table:options"`

	ID          string `bun:"id,pk"`
	QuestionID  string `bun:"question_id"`
	Text        string `bun:"text"`
	IsCorrect   bool   `bun:"is_correct"`
	Explanation string `bun:"explanation"`
	Position    int    `bun:"position"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id"`
	QuizID      string    `bun:"quiz_id"`
	Score       int       `bun:"score"`
	StarsEarned int       `bun:"stars_earned"`
	CompletedAt time.Time `bun:"completed_at"`
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{ID: r.ID, UserID: r.UserID, QuizID: r.QuizID, Score: r.Score, StarsEarned: r.StarsEarned, CompletedAt: r.CompletedAt}
}

type purchaseRow struct {
	bun.BaseModel `bun:"table:extra_attempt_purchases"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id"`
	QuizID      string    `bun:"quiz_id"`
	StarsCost   int       `bun:"stars_cost"`
	PurchasedAt time.Time `bun:"purchased_at"`
}
