package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-mastery-service/internal/domain"
)

const (
	selectQuizSQL = `SELECT id, theme_id, title, position, passing_score, time_limit_minutes,
       difficulty, required_stars, is_free, is_active
FROM quizzes WHERE id = $1`

	selectQuizContentSQL = `SELECT q.id, q.prompt, q.type, q.position,
       o.id, o.text, o.is_correct, o.explanation
FROM questions q
LEFT JOIN options o ON o.question_id = q.id
WHERE q.quiz_id = $1
ORDER BY q.position, q.id, o.position, o.id`
)

// QuizLoader loads a quiz with its questions and options from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		quiz       domain.Quiz
		difficulty string
	)
	err := l.pool.QueryRow(ctx, selectQuizSQL, quizID).Scan(
		&quiz.ID, &quiz.ThemeID, &quiz.Title, &quiz.Position, &quiz.PassingScore, &quiz.TimeLimitMinutes,
		&difficulty, &quiz.RequiredStars, &quiz.IsFree, &quiz.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.NotFound("quiz", quizID)
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	quiz.Difficulty = domain.Difficulty(difficulty)

	rows, err := l.pool.Query(ctx, selectQuizContentSQL, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz content: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var (
			q           domain.Question
			qType       string
			optID, text *string
			correct     *bool
			explanation *string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &qType, &q.Position, &optID, &text, &correct, &explanation); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan quiz content: %w", err)
		}
		i, ok := index[q.ID]
		if !ok {
			q.QuizID = quizID
			q.Type = domain.QuestionType(qType)
			quiz.Questions = append(quiz.Questions, q)
			i = len(quiz.Questions) - 1
			index[q.ID] = i
		}
		if optID == nil {
			continue
		}
		opt := domain.Option{ID: *optID}
		if text != nil {
			opt.Text = *text
		}
		if correct != nil {
			opt.Correct = *correct
		}
		if explanation != nil {
			opt.Explanation = *explanation
		}
		quiz.Questions[i].Options = append(quiz.Questions[i].Options, opt)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("read quiz content: %w", err)
	}
	return quiz, nil
}
