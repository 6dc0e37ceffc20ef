package app

import (
	"context"

	"quiz-mastery-service/internal/domain"
)

// QuizRepository loads quiz content with questions and options (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// CatalogStore answers read-only questions about themes, quizzes and questions.
type CatalogStore interface {
	// ListQuizzes returns every active quiz ordered by theme then position. Questions may be omitted.
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	// ListThemeQuizzes returns the active quizzes of a theme.
	ListThemeQuizzes(ctx context.Context, themeID string) ([]domain.Quiz, error)
	GetTheme(ctx context.Context, themeID string) (domain.Theme, error)
	// ListQuestions returns the whole question pool with options.
	ListQuestions(ctx context.Context) ([]domain.Question, error)
	// GetQuestions returns the questions that exist among ids.
	GetQuestions(ctx context.Context, ids []string) ([]domain.Question, error)
}

// LedgerStore owns users, attempts and extra attempt purchases.
// Attempts and purchases are append-only.
type LedgerStore interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	// ListAttempts returns the attempts of a pair, oldest first.
	ListAttempts(ctx context.Context, userID, quizID string) ([]domain.Attempt, error)
	// ListUserAttempts returns all attempts of a user, oldest first.
	ListUserAttempts(ctx context.Context, userID string) ([]domain.Attempt, error)
	CountExtraAttempts(ctx context.Context, userID, quizID string) (int, error)
	// CountUserExtraAttempts returns purchase counts keyed by quiz ID.
	CountUserExtraAttempts(ctx context.Context, userID string) (map[string]int, error)
	// BestScores returns the highest score per quiz among quizIDs; quizzes without attempts are absent.
	BestScores(ctx context.Context, userID string, quizIDs []string) (map[string]int, error)

	// CommitAttempt inserts the attempt and credits StarsEarned in one transaction.
	// seen is the history the attempt was evaluated on; if the pair's history no
	// longer matches it, nothing is written and a domain.ErrInvalidState is returned.
	CommitAttempt(ctx context.Context, attempt domain.Attempt, seen domain.LedgerVersion) (domain.User, error)
	// CommitPurchase debits StarsCost and inserts the purchase in one transaction.
	// It fails with domain.ErrInsufficientFunds without writing if the balance is too low,
	// and checks seen the same way CommitAttempt does.
	CommitPurchase(ctx context.Context, purchase domain.ExtraAttemptPurchase, seen domain.LedgerVersion) (domain.User, error)
}

// Locker serializes work on a key, possibly across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

func ledgerLockKey(userID, quizID string) string {
	return "ledger:" + userID + ":" + quizID
}
