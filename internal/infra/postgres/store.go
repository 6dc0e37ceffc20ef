package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"quiz-mastery-service/internal/domain"
)

// Store implements app.CatalogStore and app.LedgerStore on Postgres through bun.
// Commits run in one transaction and lock the user row.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	var rows []quizRow
	err := s.db.NewSelect().
		Model(&rows).
		Join("JOIN themes AS t ON t.id = qz.theme_id").
		Where("qz.is_active").
		OrderExpr("t.position, qz.position, qz.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	return quizzes(rows), nil
}

func (s *Store) ListThemeQuizzes(ctx context.Context, themeID string) ([]domain.Quiz, error) {
	var rows []quizRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("qz.theme_id = ?", themeID).
		Where("qz.is_active").
		OrderExpr("qz.position, qz.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list theme quizzes: %w", err)
	}
	return quizzes(rows), nil
}

func (s *Store) GetTheme(ctx context.Context, themeID string) (domain.Theme, error) {
	var row themeRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", themeID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Theme{}, domain.NotFound("theme", themeID)
	}
	if err != nil {
		return domain.Theme{}, fmt.Errorf("get theme: %w", err)
	}
	return domain.Theme{ID: row.ID, Name: row.Name, Position: row.Position}, nil
}

func (s *Store) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	var rows []questionRow
	err := s.db.NewSelect().
		Model(&rows).
		Join("JOIN quizzes AS qz ON qz.id = question.quiz_id").
		Where("qz.is_active").
		OrderExpr("question.quiz_id, question.position, question.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return s.withOptions(ctx, rows)
}

func (s *Store) GetQuestions(ctx context.Context, ids []string) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []questionRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("id IN (?)", bun.In(ids)).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return s.withOptions(ctx, rows)
}

func (s *Store) withOptions(ctx context.Context, rows []questionRow) ([]domain.Question, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var opts []optionRow
	err := s.db.NewSelect().
		Model(&opts).
		Where("question_id IN (?)", bun.In(ids)).
		Order("question_id", "position", "id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	byQuestion := make(map[string][]domain.Option, len(rows))
	for _, o := range opts {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], domain.Option{
			ID: o.ID, Text: o.Text, Correct: o.IsCorrect, Explanation: o.Explanation,
		})
	}
	out := make([]domain.Question, len(rows))
	for i, r := range rows {
		out[i] = domain.Question{
			ID:       r.ID,
			QuizID:   r.QuizID,
			Prompt:   r.Prompt,
			Type:     domain.QuestionType(r.Type),
			Position: r.Position,
			Options:  byQuestion[r.ID],
		}
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	return getUser(ctx, s.db, userID, false)
}

func getUser(ctx context.Context, db bun.IDB, userID string, forUpdate bool) (domain.User, error) {
	var row userRow
	q := db.NewSelect().Model(&row).Where("id = ?", userID)
	if forUpdate {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.NotFound("user", userID)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListAttempts(ctx context.Context, userID, quizID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Order("completed_at", "id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts(rows), nil
}

func (s *Store) ListUserAttempts(ctx context.Context, userID string) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("completed_at", "id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user attempts: %w", err)
	}
	return attempts(rows), nil
}

func (s *Store) CountExtraAttempts(ctx context.Context, userID, quizID string) (int, error) {
	n, err := s.db.NewSelect().
		Model((*purchaseRow)(nil)).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count extra attempts: %w", err)
	}
	return n, nil
}

func (s *Store) CountUserExtraAttempts(ctx context.Context, userID string) (map[string]int, error) {
	var rows []struct {
		QuizID string `bun:"quiz_id"`
		N      int    `bun:"n"`
	}
	err := s.db.NewSelect().
		Model((*purchaseRow)(nil)).
		Column("quiz_id").
		ColumnExpr("COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("quiz_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("count user extra attempts: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.QuizID] = r.N
	}
	return out, nil
}

func (s *Store) BestScores(ctx context.Context, userID string, quizIDs []string) (map[string]int, error) {
	out := make(map[string]int)
	if len(quizIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		QuizID string `bun:"quiz_id"`
		Best   int    `bun:"best"`
	}
	err := s.db.NewSelect().
		Model((*attemptRow)(nil)).
		Column("quiz_id").
		ColumnExpr("MAX(score) AS best").
		Where("user_id = ?", userID).
		Where("quiz_id IN (?)", bun.In(quizIDs)).
		Group("quiz_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("best scores: %w", err)
	}
	for _, r := range rows {
		out[r.QuizID] = r.Best
	}
	return out, nil
}

func (s *Store) CommitAttempt(ctx context.Context, attempt domain.Attempt, seen domain.LedgerVersion) (domain.User, error) {
	var user domain.User
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		u, err := getUser(ctx, tx, attempt.UserID, true)
		if err != nil {
			return err
		}
		if err := checkVersion(ctx, tx, attempt.UserID, attempt.QuizID, seen); err != nil {
			return err
		}
		row := attemptRow{
			ID:          attempt.ID,
			UserID:      attempt.UserID,
			QuizID:      attempt.QuizID,
			Score:       attempt.Score,
			StarsEarned: attempt.StarsEarned,
			CompletedAt: attempt.CompletedAt,
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if attempt.StarsEarned != 0 {
			_, err := tx.NewUpdate().
				Model((*userRow)(nil)).
				Set("star_balance = star_balance + ?", attempt.StarsEarned).
				Where("id = ?", attempt.UserID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("credit stars: %w", err)
			}
			u.StarBalance += attempt.StarsEarned
		}
		user = u
		return nil
	})
	if err != nil {
		return domain.User{}, commitError("commit attempt", err)
	}
	return user, nil
}

func (s *Store) CommitPurchase(ctx context.Context, purchase domain.ExtraAttemptPurchase, seen domain.LedgerVersion) (domain.User, error) {
	var user domain.User
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		u, err := getUser(ctx, tx, purchase.UserID, true)
		if err != nil {
			return err
		}
		if err := checkVersion(ctx, tx, purchase.UserID, purchase.QuizID, seen); err != nil {
			return err
		}
		if u.StarBalance < purchase.StarsCost {
			return domain.InsufficientFunds(u.StarBalance, purchase.StarsCost)
		}
		res, err := tx.NewUpdate().
			Model((*userRow)(nil)).
			Set("star_balance = star_balance - ?", purchase.StarsCost).
			Where("id = ?", purchase.UserID).
			Where("star_balance >= ?", purchase.StarsCost).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("debit stars: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return domain.InsufficientFunds(u.StarBalance, purchase.StarsCost)
		}
		row := purchaseRow{
			ID:          purchase.ID,
			UserID:      purchase.UserID,
			QuizID:      purchase.QuizID,
			StarsCost:   purchase.StarsCost,
			PurchasedAt: purchase.PurchasedAt,
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		u.StarBalance -= purchase.StarsCost
		user = u
		return nil
	})
	if err != nil {
		return domain.User{}, commitError("commit purchase", err)
	}
	return user, nil
}

// checkVersion re-counts the pair's history once the user row is locked. Every
// writer of the pair holds that lock, so the counts cannot move before commit
// even when the distributed lock expired or was never shared.
func checkVersion(ctx context.Context, tx bun.Tx, userID, quizID string, seen domain.LedgerVersion) error {
	attempts, err := tx.NewSelect().
		Model((*attemptRow)(nil)).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	purchases, err := tx.NewSelect().
		Model((*purchaseRow)(nil)).
		Where("user_id = ?", userID).
		Where("quiz_id = ?", quizID).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("count purchases: %w", err)
	}
	current := domain.LedgerVersion{Attempts: attempts, Purchases: purchases}
	if current != seen {
		return domain.StaleLedger(seen, current)
	}
	return nil
}

// commitError keeps domain errors intact and marks storage failures retryable.
func commitError(op string, err error) error {
	if domain.Kind(err) != nil {
		return err
	}
	return domain.NewError(domain.ErrRetryable, fmt.Sprintf("%s: %v", op, err), nil)
}

func quizzes(rows []quizRow) []domain.Quiz {
	out := make([]domain.Quiz, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}

func attempts(rows []attemptRow) []domain.Attempt {
	out := make([]domain.Attempt, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}
