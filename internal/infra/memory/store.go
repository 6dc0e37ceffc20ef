package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-mastery-service/internal/catalog"
	"quiz-mastery-service/internal/domain"
)

// Store is an in-memory implementation of app.CatalogStore and app.LedgerStore.
// A single mutex makes every commit atomic.
type Store struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	themes    map[string]domain.Theme
	quizzes   map[string]domain.Quiz
	attempts  []domain.Attempt
	purchases []domain.ExtraAttemptPurchase
}

func NewStore(c catalog.Catalog) *Store {
	s := &Store{
		users:   make(map[string]domain.User),
		themes:  make(map[string]domain.Theme),
		quizzes: make(map[string]domain.Quiz),
	}
	for _, t := range c.Themes {
		s.themes[t.ID] = t
	}
	for _, q := range c.Quizzes {
		s.quizzes[q.ID] = q
	}
	for _, u := range c.Users {
		s.users[u.ID] = u
	}
	return s
}

// PutUser creates or replaces a user.
func (s *Store) PutUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// LoadQuiz implements QuizLoader.
func (s *Store) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.NotFound("quiz", quizID)
	}
	return q, nil
}

func (s *Store) ListQuizzes(_ context.Context) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		if q.IsActive {
			out = append(out, q)
		}
	}
	s.sortQuizzesLocked(out)
	return out, nil
}

func (s *Store) ListThemeQuizzes(_ context.Context, themeID string) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Quiz
	for _, q := range s.quizzes {
		if q.IsActive && q.ThemeID == themeID {
			out = append(out, q)
		}
	}
	s.sortQuizzesLocked(out)
	return out, nil
}

func (s *Store) GetTheme(_ context.Context, themeID string) (domain.Theme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.themes[themeID]
	if !ok {
		return domain.Theme{}, domain.NotFound("theme", themeID)
	}
	return t, nil
}

func (s *Store) ListQuestions(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quizzes := make([]domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		if q.IsActive {
			quizzes = append(quizzes, q)
		}
	}
	s.sortQuizzesLocked(quizzes)
	var out []domain.Question
	for _, q := range quizzes {
		out = append(out, q.Questions...)
	}
	return out, nil
}

func (s *Store) GetQuestions(_ context.Context, ids []string) ([]domain.Question, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Question
	for _, q := range s.quizzes {
		for _, question := range q.Questions {
			if want[question.ID] {
				out = append(out, question)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.NotFound("user", userID)
	}
	return u, nil
}

func (s *Store) ListAttempts(_ context.Context, userID, quizID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, a := range s.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListUserAttempts(_ context.Context, userID string) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Attempt
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CountExtraAttempts(_ context.Context, userID, quizID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.purchases {
		if p.UserID == userID && p.QuizID == quizID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountUserExtraAttempts(_ context.Context, userID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, p := range s.purchases {
		if p.UserID == userID {
			out[p.QuizID]++
		}
	}
	return out, nil
}

func (s *Store) BestScores(_ context.Context, userID string, quizIDs []string) (map[string]int, error) {
	want := make(map[string]bool, len(quizIDs))
	for _, id := range quizIDs {
		want[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for _, a := range s.attempts {
		if a.UserID != userID || !want[a.QuizID] {
			continue
		}
		if best, ok := out[a.QuizID]; !ok || a.Score > best {
			out[a.QuizID] = a.Score
		}
	}
	return out, nil
}

func (s *Store) CommitAttempt(_ context.Context, attempt domain.Attempt, seen domain.LedgerVersion) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[attempt.UserID]
	if !ok {
		return domain.User{}, domain.NotFound("user", attempt.UserID)
	}
	if current := s.versionLocked(attempt.UserID, attempt.QuizID); current != seen {
		return domain.User{}, domain.StaleLedger(seen, current)
	}
	u.StarBalance += attempt.StarsEarned
	s.users[u.ID] = u
	s.attempts = append(s.attempts, attempt)
	return u, nil
}

func (s *Store) CommitPurchase(_ context.Context, purchase domain.ExtraAttemptPurchase, seen domain.LedgerVersion) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[purchase.UserID]
	if !ok {
		return domain.User{}, domain.NotFound("user", purchase.UserID)
	}
	if current := s.versionLocked(purchase.UserID, purchase.QuizID); current != seen {
		return domain.User{}, domain.StaleLedger(seen, current)
	}
	if u.StarBalance < purchase.StarsCost {
		return domain.User{}, domain.InsufficientFunds(u.StarBalance, purchase.StarsCost)
	}
	u.StarBalance -= purchase.StarsCost
	s.users[u.ID] = u
	s.purchases = append(s.purchases, purchase)
	return u, nil
}

func (s *Store) versionLocked(userID, quizID string) domain.LedgerVersion {
	var v domain.LedgerVersion
	for _, a := range s.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			v.Attempts++
		}
	}
	for _, p := range s.purchases {
		if p.UserID == userID && p.QuizID == quizID {
			v.Purchases++
		}
	}
	return v
}

func (s *Store) sortQuizzesLocked(quizzes []domain.Quiz) {
	sort.Slice(quizzes, func(i, j int) bool {
		ti, tj := s.themes[quizzes[i].ThemeID].Position, s.themes[quizzes[j].ThemeID].Position
		if ti != tj {
			return ti < tj
		}
		if quizzes[i].Position != quizzes[j].Position {
			return quizzes[i].Position < quizzes[j].Position
		}
		return quizzes[i].ID < quizzes[j].ID
	})
}
