package postgres

import (
	"context"
	"fmt"
	"log"

	"github.com/uptrace/bun"

	"quiz-mastery-service/internal/catalog"
)

// Seed upserts the catalog content. Existing users keep their balance.
func Seed(ctx context.Context, db *bun.DB, c catalog.Catalog) error {
	var (
		themes    []themeRow
		quizRows  []quizRow
		questions []questionRow
		options   []optionRow
		users     []userRow
	)
	for _, t := range c.Themes {
		themes = append(themes, themeRow{ID: t.ID, Name: t.Name, Position: t.Position})
	}
	for _, q := range c.Quizzes {
		quizRows = append(quizRows, quizRow{
			ID:               q.ID,
			ThemeID:          q.ThemeID,
			Title:            q.Title,
			Position:         q.Position,
			PassingScore:     q.PassingScore,
			TimeLimitMinutes: q.TimeLimitMinutes,
			Difficulty:       string(q.Difficulty),
			RequiredStars:    q.RequiredStars,
			IsFree:           q.IsFree,
			IsActive:         q.IsActive,
		})
		for _, qu := range q.Questions {
			questions = append(questions, questionRow{ID: qu.ID, QuizID: q.ID, Prompt: qu.Prompt, Type: string(qu.Type), Position: qu.Position})
			for i, o := range qu.Options {
				options = append(options, optionRow{ID: o.ID, QuestionID: qu.ID, Text: o.Text, IsCorrect: o.Correct, Explanation: o.Explanation, Position: i})
			}
		}
	}
	for _, u := range c.Users {
		users = append(users, userRow{ID: u.ID, Name: u.Name, StarBalance: u.StarBalance, VisibleOnLeaderboard: u.VisibleOnLeaderboard})
	}

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(themes) > 0 {
			if _, err := tx.NewInsert().Model(&themes).
				On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name").
				Set("position = EXCLUDED.position").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert themes: %w", err)
			}
		}
		if len(quizRows) > 0 {
			if _, err := tx.NewInsert().Model(&quizRows).
				On("CONFLICT (id) DO UPDATE").
				Set("theme_id = EXCLUDED.theme_id").
				Set("title = EXCLUDED.title").
				Set("position = EXCLUDED.position").
				Set("passing_score = EXCLUDED.passing_score").
				Set("time_limit_minutes = EXCLUDED.time_limit_minutes").
				Set("difficulty = EXCLUDED.difficulty").
				Set("required_stars = EXCLUDED.required_stars").
				Set("is_free = EXCLUDED.is_free").
				Set("is_active = EXCLUDED.is_active").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert quizzes: %w", err)
			}
		}
		if len(questions) > 0 {
			if _, err := tx.NewInsert().Model(&questions).
				On("CONFLICT (id) DO UPDATE").
				Set("quiz_id = EXCLUDED.quiz_id").
				Set("prompt = EXCLUDED.prompt").
				Set("type = EXCLUDED.type").
				Set("position = EXCLUDED.position").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert questions: %w", err)
			}
		}
		if len(options) > 0 {
			if _, err := tx.NewInsert().Model(&options).
				On("CONFLICT (id) DO UPDATE").
				Set("question_id = EXCLUDED.question_id").
				Set("text = EXCLUDED.text").
				Set("is_correct = EXCLUDED.is_correct").
				Set("explanation = EXCLUDED.explanation").
				Set("position = EXCLUDED.position").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert options: %w", err)
			}
		}
		if len(users) > 0 {
			if _, err := tx.NewInsert().Model(&users).
				On("CONFLICT (id) DO NOTHING").
				Exec(ctx); err != nil {
				return fmt.Errorf("insert users: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Printf("seeded %d themes, %d quizzes, %d questions, %d users", len(themes), len(quizRows), len(questions), len(users))
	return nil
}
