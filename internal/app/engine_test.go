package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-mastery-service/internal/app"
	"quiz-mastery-service/internal/catalog"
	"quiz-mastery-service/internal/domain"
	"quiz-mastery-service/internal/infra/memory"
)

var (
	allCorrectAddition = domain.Answers{
		"add-1": {"add-1-b"},
		"add-2": {"add-2-a"},
		"add-3": {"add-3-a", "add-3-b"},
	}
	allCorrectMultiplication = domain.Answers{
		"mul-1": {"mul-1-a"},
		"mul-2": {"mul-2-a"},
	}
)

func TestFailPurchasePassFlow(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1", StarBalance: 20})

	for i := 0; i < 3; i++ {
		res, err := engine.SubmitAttempt(ctx, "u1", "addition", domain.Answers{})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if res.Passed || res.StarsEarned != 1 {
			t.Fatalf("expected participation star, got %+v", res)
		}
	}

	status, err := engine.GetAttemptStatus(ctx, "u1", "addition")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.IsCompleted || !status.CanViewCorrection || !status.CanPurchaseExtraAttempt || status.RemainingAttempts != 0 {
		t.Fatalf("expected exhausted ledger, got %+v", status)
	}

	_, err = engine.SubmitAttempt(ctx, "u1", "addition", allCorrectAddition)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on 4th attempt, got %v", err)
	}
	if domain.ErrorContext(err)["remainingAttempts"] != 0 {
		t.Fatalf("expected remainingAttempts in context, got %v", domain.ErrorContext(err))
	}

	purchase, err := engine.PurchaseExtraAttempt(ctx, "u1", "addition")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !purchase.Success || purchase.StarsCost != 10 || purchase.RemainingStars != 13 || purchase.RemainingAttempts != 1 {
		t.Fatalf("unexpected purchase result %+v", purchase)
	}

	res, err := engine.SubmitAttempt(ctx, "u1", "addition", allCorrectAddition)
	if err != nil {
		t.Fatalf("passing submit: %v", err)
	}
	if !res.Passed || res.Score != 100 || res.StarsEarned != 8 || res.TotalStars != 21 {
		t.Fatalf("unexpected pass result %+v", res)
	}
	if !res.Ledger.HasPassed || res.RemainingAttempts != domain.UnlimitedAttempts {
		t.Fatalf("expected unlimited replay after pass, got %+v", res.Ledger)
	}
	if res.ThemeCompleted || res.ThemeName != "Arithmetic" {
		t.Fatalf("theme must not be complete yet, got %+v", res)
	}

	res, err = engine.SubmitAttempt(ctx, "u1", "multiplication", allCorrectMultiplication)
	if err != nil {
		t.Fatalf("multiplication submit: %v", err)
	}
	if res.StarsEarned != 12 || !res.ThemeCompleted {
		t.Fatalf("expected 12 stars and theme completed, got %+v", res)
	}
}

func TestReplayEarnsNothing(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1"})

	if _, err := engine.SubmitAttempt(ctx, "u1", "addition", allCorrectAddition); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	for i := 0; i < 5; i++ {
		res, err := engine.SubmitAttempt(ctx, "u1", "addition", domain.Answers{})
		if err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		if res.StarsEarned != 0 || res.TotalStars != 8 {
			t.Fatalf("replay must not pay, got %+v", res)
		}
	}
	status, _ := engine.GetAttemptStatus(ctx, "u1", "addition")
	if status.FailedAttempts != 5 || status.RemainingAttempts != domain.UnlimitedAttempts || status.CanPurchaseExtraAttempt {
		t.Fatalf("failed replays must not consume attempts, got %+v", status)
	}
}

func TestSubmitRejectsLockedAndMissing(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1", StarBalance: 4})

	_, err := engine.SubmitAttempt(ctx, "u1", "multiplication", allCorrectMultiplication)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if domain.ErrorContext(err)["starsNeeded"] != 1 {
		t.Fatalf("expected starsNeeded=1, got %v", domain.ErrorContext(err))
	}
	attempts, _ := store.ListAttempts(ctx, "u1", "multiplication")
	if len(attempts) != 0 {
		t.Fatalf("rejected submission must not be recorded")
	}

	if _, err := engine.SubmitAttempt(ctx, "u1", "nope", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if _, err := engine.SubmitAttempt(ctx, "ghost", "addition", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestConcurrentSubmissionsRespectLastSlot(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1"})

	for i := 0; i < 2; i++ {
		if _, err := engine.SubmitAttempt(ctx, "u1", "addition", domain.Answers{}); err != nil {
			t.Fatalf("setup submit: %v", err)
		}
	}

	const n = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.SubmitAttempt(ctx, "u1", "addition", domain.Answers{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domain.ErrInvalidState):
				rejected++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 1 || rejected != n-1 {
		t.Fatalf("expected 1 accepted and %d rejected, got %d and %d", n-1, accepted, rejected)
	}
	attempts, _ := store.ListAttempts(ctx, "u1", "addition")
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", len(attempts))
	}
}

func TestPurchaseRequiresEligibilityAndFunds(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1", StarBalance: 100})
	store.PutUser(domain.User{ID: "poor"})

	if _, err := engine.PurchaseExtraAttempt(ctx, "u1", "addition"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state with attempts left, got %v", err)
	}

	for i := 0; i < 3; i++ {
		_, _ = engine.SubmitAttempt(ctx, "poor", "addition", domain.Answers{})
	}
	_, err := engine.PurchaseExtraAttempt(ctx, "poor", "addition")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if domain.ErrorContext(err)["cost"] != 10 {
		t.Fatalf("expected cost in context, got %v", domain.ErrorContext(err))
	}
	u, _ := store.GetUser(ctx, "poor")
	if u.StarBalance != 3 {
		t.Fatalf("failed purchase must not debit, got %d", u.StarBalance)
	}
}

func TestCheckQuizAccessAndListing(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1", StarBalance: 7})

	access, err := engine.CheckQuizAccess(ctx, "u1", "capitals")
	if err != nil {
		t.Fatalf("access: %v", err)
	}
	if access.IsUnlocked || access.StarsNeeded != 3 || access.RequiredStars != 10 || access.UserStars != 7 {
		t.Fatalf("unexpected access %+v", access)
	}

	_, _ = engine.SubmitAttempt(ctx, "u1", "addition", domain.Answers{})
	statuses, err := engine.GetQuizzesWithUserStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 quizzes, got %d", len(statuses))
	}
	if statuses[0].Quiz.ID != "addition" || statuses[0].Ledger.FailedAttempts != 1 || statuses[0].Ledger.RemainingAttempts != 2 {
		t.Fatalf("unexpected addition status %+v", statuses[0])
	}
	if statuses[0].Quiz.Questions != nil {
		t.Fatalf("listing must not leak questions")
	}
	if !statuses[1].Access.IsUnlocked || statuses[2].Access.IsUnlocked {
		t.Fatalf("unexpected access flags %+v %+v", statuses[1].Access, statuses[2].Access)
	}
}

func TestCorrectionGate(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1"})

	_, err := engine.GetCorrection(ctx, "u1", "addition")
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden before attempts, got %v", err)
	}
	for i := 0; i < 3; i++ {
		_, _ = engine.SubmitAttempt(ctx, "u1", "addition", domain.Answers{})
	}
	correction, err := engine.GetCorrection(ctx, "u1", "addition")
	if err != nil {
		t.Fatalf("correction: %v", err)
	}
	if len(correction.Questions) != 3 || correction.Questions[0].CorrectOptionIDs()[0] != "add-1-b" {
		t.Fatalf("unexpected correction %+v", correction)
	}
}

func TestThemeCompletionAndHistory(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1", StarBalance: 50})

	_, _ = engine.SubmitAttempt(ctx, "u1", "addition", allCorrectAddition)
	_, _ = engine.SubmitAttempt(ctx, "u1", "multiplication", domain.Answers{})

	theme, err := engine.GetThemeCompletion(ctx, "u1", "arithmetic")
	if err != nil {
		t.Fatalf("theme: %v", err)
	}
	if theme.Completed || theme.PassedQuizzes != 1 || theme.TotalQuizzes != 2 {
		t.Fatalf("unexpected theme %+v", theme)
	}

	res, err := engine.SubmitAttempt(ctx, "u1", "multiplication", allCorrectMultiplication)
	if err != nil || !res.ThemeCompleted {
		t.Fatalf("expected theme completed, got %+v %v", res, err)
	}

	history, err := engine.GetAttemptHistory(ctx, "u1", "multiplication")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Score != 100 {
		t.Fatalf("expected newest first, got %+v", history)
	}
}

func TestRevisionDoesNotTouchLedger(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1", StarBalance: 2})

	quiz, err := engine.GetRandomRevisionQuiz(ctx)
	if err != nil {
		t.Fatalf("revision: %v", err)
	}
	if len(quiz.Questions) != 10 || quiz.TimeLimitMinutes != 15 || quiz.PassingScore != 70 {
		t.Fatalf("unexpected revision quiz %+v", quiz)
	}

	answers := domain.Answers{}
	for _, q := range quiz.Questions {
		answers[q.ID] = []string{q.Options[0].ID}
	}
	res, err := engine.SubmitRevisionQuiz(ctx, "u1", answers)
	if err != nil {
		t.Fatalf("submit revision: %v", err)
	}
	if res.TotalQuestions != 10 || len(res.Corrections) != 10 {
		t.Fatalf("unexpected revision result %+v", res)
	}

	u, _ := store.GetUser(ctx, "u1")
	attempts, _ := store.ListUserAttempts(ctx, "u1")
	if u.StarBalance != 2 || len(attempts) != 0 {
		t.Fatalf("revision must not persist anything, balance=%d attempts=%d", u.StarBalance, len(attempts))
	}

	if _, err := engine.SubmitRevisionQuiz(ctx, "u1", domain.Answers{"ghost": {"x"}}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected unknown question rejected, got %v", err)
	}
	if _, err := engine.SubmitRevisionQuiz(ctx, "u1", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRevisionNeedsPool(t *testing.T) {
	settings := app.DefaultSettings()
	settings.RevisionSize = 50
	store := memory.NewStore(catalog.Sample())
	engine := app.NewEngine(memory.NewQuizRepository(store, time.Minute), store, store, memory.NewKeyLocker(), nil, settings)

	if _, err := engine.GetRandomRevisionQuiz(context.Background()); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}

func TestFeedReceivesLedgerEvents(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	store.PutUser(domain.User{ID: "u1"})

	events, cancel := engine.Feed().Subscribe("u1")
	defer cancel()

	if _, err := engine.SubmitAttempt(ctx, "u1", "addition", domain.Answers{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Type != app.EventLedger || ev.QuizID != "addition" || ev.StarBalance != 1 || ev.Ledger.FailedAttempts != 1 {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected ledger event")
	}
}

// readsFailAfterCommit serves reads until the first successful commit, then
// fails them as a dropped connection would.
type readsFailAfterCommit struct {
	*memory.Store
	committed atomic.Bool
}

var errConnReset = errors.New("connection reset")

func (s *readsFailAfterCommit) ListAttempts(ctx context.Context, userID, quizID string) ([]domain.Attempt, error) {
	if s.committed.Load() {
		return nil, errConnReset
	}
	return s.Store.ListAttempts(ctx, userID, quizID)
}

func (s *readsFailAfterCommit) CountExtraAttempts(ctx context.Context, userID, quizID string) (int, error) {
	if s.committed.Load() {
		return 0, errConnReset
	}
	return s.Store.CountExtraAttempts(ctx, userID, quizID)
}

func (s *readsFailAfterCommit) CommitAttempt(ctx context.Context, attempt domain.Attempt, seen domain.LedgerVersion) (domain.User, error) {
	u, err := s.Store.CommitAttempt(ctx, attempt, seen)
	if err == nil {
		s.committed.Store(true)
	}
	return u, err
}

func (s *readsFailAfterCommit) CommitPurchase(ctx context.Context, purchase domain.ExtraAttemptPurchase, seen domain.LedgerVersion) (domain.User, error) {
	u, err := s.Store.CommitPurchase(ctx, purchase, seen)
	if err == nil {
		s.committed.Store(true)
	}
	return u, err
}

func TestCommittedWritesReportSuccessWithoutRereading(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(catalog.Sample())
	store.PutUser(domain.User{ID: "u1", StarBalance: 20})
	for i, score := range []int{0, 10, 20} {
		a := domain.Attempt{ID: fmt.Sprintf("a%d", i), UserID: "u1", QuizID: "addition", Score: score}
		if _, err := store.CommitAttempt(ctx, a, domain.LedgerVersion{Attempts: i}); err != nil {
			t.Fatalf("seed attempt %d: %v", i, err)
		}
	}

	ledger := &readsFailAfterCommit{Store: store}
	engine := app.NewEngine(memory.NewQuizRepository(store, time.Minute), store, ledger, memory.NewKeyLocker(), nil, app.DefaultSettings())

	purchase, err := engine.PurchaseExtraAttempt(ctx, "u1", "addition")
	if err != nil {
		t.Fatalf("purchase reported failure after commit: %v", err)
	}
	if purchase.RemainingStars != 10 || purchase.RemainingAttempts != 1 || purchase.Ledger.ExtraAttempts != 1 || !purchase.Ledger.CanRetry {
		t.Fatalf("unexpected purchase result %+v", purchase)
	}

	ledger.committed.Store(false)
	res, err := engine.SubmitAttempt(ctx, "u1", "addition", allCorrectAddition)
	if err != nil {
		t.Fatalf("submit reported failure after commit: %v", err)
	}
	if !res.Passed || res.StarsEarned != 8 || res.TotalStars != 18 {
		t.Fatalf("unexpected submit result %+v", res)
	}
	if res.Ledger.AttemptCount != 4 || !res.Ledger.HasPassed || res.RemainingAttempts != domain.UnlimitedAttempts || !res.CanViewCorrection {
		t.Fatalf("expected ledger to include the new attempt, got %+v", res.Ledger)
	}

	attempts, _ := store.ListAttempts(ctx, "u1", "addition")
	u, _ := store.GetUser(ctx, "u1")
	if len(attempts) != 4 || u.StarBalance != 18 {
		t.Fatalf("expected one write each, got %d attempts and balance %d", len(attempts), u.StarBalance)
	}
}

func newTestEngine() (*app.Engine, *memory.Store) {
	store := memory.NewStore(catalog.Sample())
	quizzes := memory.NewQuizRepository(store, 5*time.Minute)
	now := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
	engine := app.NewEngineWithClock(quizzes, store, store, memory.NewKeyLocker(), app.NewFeed(), app.DefaultSettings(), clock, 42)
	return engine, store
}
