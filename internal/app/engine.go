package app

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"quiz-mastery-service/internal/domain"
)

// Settings are the deployment-wide knobs of the engine.
type Settings struct {
	Rules                    domain.Rules
	RevisionSize             int
	RevisionTimeLimitMinutes int
	RevisionPassingScore     int
}

// DefaultSettings returns 3 free attempts, a 10 star extra attempt and 10 question revisions.
func DefaultSettings() Settings {
	return Settings{
		Rules:                    domain.DefaultRules(),
		RevisionSize:             domain.DefaultRevisionSize,
		RevisionTimeLimitMinutes: domain.DefaultRevisionTimeLimitMinutes,
		RevisionPassingScore:     domain.DefaultRevisionPassingScore,
	}
}

// Engine runs the attempt, scoring and star economy use cases.
type Engine struct {
	quizzes  QuizRepository
	catalog  CatalogStore
	ledger   LedgerStore
	locker   Locker
	feed     *Feed
	settings Settings
	now      func() time.Time
	newID    func() string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewEngine(quizzes QuizRepository, catalog CatalogStore, ledger LedgerStore, locker Locker, feed *Feed, settings Settings) *Engine {
	if feed == nil {
		feed = NewFeed()
	}
	return &Engine{
		quizzes:  quizzes,
		catalog:  catalog,
		ledger:   ledger,
		locker:   locker,
		feed:     feed,
		settings: settings,
		now:      time.Now,
		newID:    uuid.NewString,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewEngineWithClock is test-only for deterministic timestamps and sampling.
func NewEngineWithClock(quizzes QuizRepository, catalog CatalogStore, ledger LedgerStore, locker Locker, feed *Feed, settings Settings, now func() time.Time, seed int64) *Engine {
	e := NewEngine(quizzes, catalog, ledger, locker, feed, settings)
	e.now = now
	e.rnd = rand.New(rand.NewSource(seed))
	return e
}

// Feed exposes the event feed for transports.
func (e *Engine) Feed() *Feed {
	return e.feed
}

// SubmitResult is returned by SubmitAttempt.
type SubmitResult struct {
	AttemptID         string        `json:"attemptId"`
	Score             int           `json:"score"`
	CorrectCount      int           `json:"correctCount"`
	TotalQuestions    int           `json:"totalQuestions"`
	Passed            bool          `json:"passed"`
	StarsEarned       int           `json:"starsEarned"`
	TotalStars        int           `json:"totalStars"`
	RemainingAttempts int           `json:"remainingAttempts"`
	CanViewCorrection bool          `json:"canViewCorrection"`
	ThemeCompleted    bool          `json:"themeCompleted"`
	ThemeName         string        `json:"themeName,omitempty"`
	Ledger            domain.Ledger `json:"ledger"`
}

// SubmitAttempt grades answers, records the attempt and credits stars atomically.
func (e *Engine) SubmitAttempt(ctx context.Context, userID, quizID string, answers domain.Answers) (SubmitResult, error) {
	quiz, err := e.activeQuiz(ctx, quizID)
	if err != nil {
		return SubmitResult{}, err
	}

	release, err := e.locker.Acquire(ctx, ledgerLockKey(userID, quizID))
	if err != nil {
		return SubmitResult{}, err
	}
	defer release()

	user, err := e.ledger.GetUser(ctx, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	history, extra, err := e.loadHistory(ctx, userID, quiz.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	before := e.settings.Rules.Ledger(history, extra, quiz.PassingScore)
	decision, err := domain.EvaluateSubmission(quiz, user, before)
	if err != nil {
		return SubmitResult{}, err
	}

	score, correct := domain.Grade(quiz.Questions, answers)
	attempt := domain.Attempt{
		ID:          e.newID(),
		UserID:      userID,
		QuizID:      quizID,
		Score:       score,
		StarsEarned: domain.Reward(score, quiz.PassingScore, quiz.Difficulty, decision.Replay),
		CompletedAt: e.now(),
	}
	updated, err := e.ledger.CommitAttempt(ctx, attempt, before.Version())
	if err != nil {
		return SubmitResult{}, err
	}
	log.Printf("attempt committed user=%s quiz=%s score=%d stars=%d replay=%v", userID, quizID, score, attempt.StarsEarned, decision.Replay)

	// The attempt is committed; the new ledger is derived without another read.
	committed := make([]domain.Attempt, len(history), len(history)+1)
	copy(committed, history)
	after := e.settings.Rules.Ledger(append(committed, attempt), extra, quiz.PassingScore)

	result := SubmitResult{
		AttemptID:         attempt.ID,
		Score:             score,
		CorrectCount:      correct,
		TotalQuestions:    len(quiz.Questions),
		Passed:            score >= quiz.PassingScore,
		StarsEarned:       attempt.StarsEarned,
		TotalStars:        updated.StarBalance,
		RemainingAttempts: after.RemainingAttempts,
		CanViewCorrection: after.CanViewCorrection,
		Ledger:            after,
	}
	e.publishLedger(userID, quizID, updated.StarBalance, after)

	// The attempt is already committed, so a failed theme lookup is reported as "not completed".
	if !before.HasPassed && after.HasPassed && quiz.ThemeID != "" {
		theme, err := e.themeCompletion(ctx, userID, quiz.ThemeID)
		if err != nil {
			log.Printf("theme completion user=%s theme=%s: %v", userID, quiz.ThemeID, err)
			return result, nil
		}
		result.ThemeCompleted = theme.Completed
		result.ThemeName = theme.ThemeName
		if theme.Completed {
			e.feed.Publish(Event{Type: EventThemeCompleted, UserID: userID, QuizID: quizID, StarBalance: updated.StarBalance, Theme: &theme, At: e.now()})
		}
	}
	return result, nil
}

// GetAttemptStatus returns the ledger of a (user, quiz) pair.
func (e *Engine) GetAttemptStatus(ctx context.Context, userID, quizID string) (domain.Ledger, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Ledger{}, err
	}
	if _, err := e.ledger.GetUser(ctx, userID); err != nil {
		return domain.Ledger{}, err
	}
	return e.loadLedger(ctx, userID, quiz)
}

// GetAttemptHistory returns the attempts of a pair, newest first.
func (e *Engine) GetAttemptHistory(ctx context.Context, userID, quizID string) ([]domain.Attempt, error) {
	if _, err := e.quizzes.GetQuiz(ctx, quizID); err != nil {
		return nil, err
	}
	attempts, err := e.ledger.ListAttempts(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].CompletedAt.After(attempts[j].CompletedAt)
	})
	return attempts, nil
}

// PurchaseResult is returned by PurchaseExtraAttempt.
type PurchaseResult struct {
	Success           bool          `json:"success"`
	StarsCost         int           `json:"starsCost"`
	RemainingStars    int           `json:"remainingStars"`
	RemainingAttempts int           `json:"remainingAttempts"`
	Ledger            domain.Ledger `json:"ledger"`
}

// PurchaseExtraAttempt debits the extra attempt cost and records the purchase atomically.
func (e *Engine) PurchaseExtraAttempt(ctx context.Context, userID, quizID string) (PurchaseResult, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return PurchaseResult{}, err
	}

	release, err := e.locker.Acquire(ctx, ledgerLockKey(userID, quizID))
	if err != nil {
		return PurchaseResult{}, err
	}
	defer release()

	user, err := e.ledger.GetUser(ctx, userID)
	if err != nil {
		return PurchaseResult{}, err
	}
	history, extra, err := e.loadHistory(ctx, userID, quiz.ID)
	if err != nil {
		return PurchaseResult{}, err
	}
	before := e.settings.Rules.Ledger(history, extra, quiz.PassingScore)
	cost := e.settings.Rules.ExtraAttemptCost
	if err := domain.EvaluatePurchase(before, user.StarBalance, cost); err != nil {
		return PurchaseResult{}, err
	}

	updated, err := e.ledger.CommitPurchase(ctx, domain.ExtraAttemptPurchase{
		ID:          e.newID(),
		UserID:      userID,
		QuizID:      quizID,
		StarsCost:   cost,
		PurchasedAt: e.now(),
	}, before.Version())
	if err != nil {
		return PurchaseResult{}, err
	}
	log.Printf("extra attempt purchased user=%s quiz=%s cost=%d balance=%d", userID, quizID, cost, updated.StarBalance)

	after := e.settings.Rules.Ledger(history, extra+1, quiz.PassingScore)
	e.publishLedger(userID, quizID, updated.StarBalance, after)
	return PurchaseResult{
		Success:           true,
		StarsCost:         cost,
		RemainingStars:    updated.StarBalance,
		RemainingAttempts: after.RemainingAttempts,
		Ledger:            after,
	}, nil
}

// CheckQuizAccess evaluates the star gate of a quiz for a user.
func (e *Engine) CheckQuizAccess(ctx context.Context, userID, quizID string) (domain.Access, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Access{}, err
	}
	user, err := e.ledger.GetUser(ctx, userID)
	if err != nil {
		return domain.Access{}, err
	}
	return domain.CheckAccess(quiz.RequiredStars, user.StarBalance), nil
}

// QuizStatus is a quiz annotated with the caller's ledger and access.
type QuizStatus struct {
	Quiz   domain.Quiz   `json:"quiz"`
	Ledger domain.Ledger `json:"ledger"`
	Access domain.Access `json:"access"`
}

// GetQuizzesWithUserStatus lists active quizzes with the user's ledger and access for each.
func (e *Engine) GetQuizzesWithUserStatus(ctx context.Context, userID string) ([]QuizStatus, error) {
	var (
		user      domain.User
		quizzes   []domain.Quiz
		attempts  []domain.Attempt
		purchases map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = e.ledger.GetUser(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		quizzes, err = e.catalog.ListQuizzes(gctx)
		return err
	})
	g.Go(func() (err error) {
		attempts, err = e.ledger.ListUserAttempts(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		purchases, err = e.ledger.CountUserExtraAttempts(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byQuiz := make(map[string][]domain.Attempt)
	for _, a := range attempts {
		byQuiz[a.QuizID] = append(byQuiz[a.QuizID], a)
	}

	out := make([]QuizStatus, 0, len(quizzes))
	for _, q := range quizzes {
		q.Questions = nil
		out = append(out, QuizStatus{
			Quiz:   q,
			Ledger: e.settings.Rules.Ledger(byQuiz[q.ID], purchases[q.ID], q.PassingScore),
			Access: domain.CheckAccess(q.RequiredStars, user.StarBalance),
		})
	}
	return out, nil
}

// GetThemeCompletion reports whether every active quiz of a theme has a passing best attempt.
func (e *Engine) GetThemeCompletion(ctx context.Context, userID, themeID string) (domain.ThemeCompletion, error) {
	if _, err := e.ledger.GetUser(ctx, userID); err != nil {
		return domain.ThemeCompletion{}, err
	}
	return e.themeCompletion(ctx, userID, themeID)
}

// Correction is the answer key of a quiz.
type Correction struct {
	QuizID    string            `json:"quizId"`
	Title     string            `json:"title"`
	Questions []domain.Question `json:"questions"`
}

// GetCorrection reveals the answer key once the ledger allows it.
func (e *Engine) GetCorrection(ctx context.Context, userID, quizID string) (Correction, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Correction{}, err
	}
	if _, err := e.ledger.GetUser(ctx, userID); err != nil {
		return Correction{}, err
	}
	l, err := e.loadLedger(ctx, userID, quiz)
	if err != nil {
		return Correction{}, err
	}
	if !l.CanViewCorrection {
		return Correction{}, domain.NewError(domain.ErrForbidden, "correction not available yet", map[string]any{
			"failedAttempts":    l.FailedAttempts,
			"requiredFailures":  e.settings.Rules.BaseAttempts,
			"remainingAttempts": l.RemainingAttempts,
		})
	}
	return Correction{QuizID: quiz.ID, Title: quiz.Title, Questions: quiz.Questions}, nil
}

// GetRandomRevisionQuiz draws an unpersisted quiz from the whole question pool.
func (e *Engine) GetRandomRevisionQuiz(ctx context.Context) (domain.RevisionQuiz, error) {
	pool, err := e.catalog.ListQuestions(ctx)
	if err != nil {
		return domain.RevisionQuiz{}, err
	}

	e.rndMu.Lock()
	sample, err := domain.SampleRevision(pool, e.settings.RevisionSize, e.rnd)
	e.rndMu.Unlock()
	if err != nil {
		return domain.RevisionQuiz{}, err
	}

	out := domain.RevisionQuiz{
		Title:            "Revision",
		TimeLimitMinutes: e.settings.RevisionTimeLimitMinutes,
		PassingScore:     e.settings.RevisionPassingScore,
		Questions:        make([]domain.PublicQuestion, len(sample)),
	}
	for i, q := range sample {
		out.Questions[i] = q.Public()
	}
	return out, nil
}

// SubmitRevisionQuiz grades a revision without touching the ledger or the star balance.
func (e *Engine) SubmitRevisionQuiz(ctx context.Context, userID string, answers domain.Answers) (domain.RevisionResult, error) {
	if len(answers) == 0 {
		return domain.RevisionResult{}, domain.NewError(domain.ErrValidation, "answers are required", nil)
	}
	if _, err := e.ledger.GetUser(ctx, userID); err != nil {
		return domain.RevisionResult{}, err
	}

	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	questions, err := e.catalog.GetQuestions(ctx, ids)
	if err != nil {
		return domain.RevisionResult{}, err
	}
	if len(questions) != len(ids) {
		found := make(map[string]bool, len(questions))
		for _, q := range questions {
			found[q.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return domain.RevisionResult{}, domain.NotFound("question", id)
			}
		}
	}
	return domain.GradeRevision(questions, answers, e.settings.RevisionPassingScore), nil
}

func (e *Engine) activeQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := e.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !quiz.IsActive {
		return domain.Quiz{}, domain.NotFound("quiz", quizID)
	}
	return quiz, nil
}

func (e *Engine) loadLedger(ctx context.Context, userID string, quiz domain.Quiz) (domain.Ledger, error) {
	attempts, extra, err := e.loadHistory(ctx, userID, quiz.ID)
	if err != nil {
		return domain.Ledger{}, err
	}
	return e.settings.Rules.Ledger(attempts, extra, quiz.PassingScore), nil
}

// loadHistory returns the attempts and the extra attempt purchase count of a pair.
func (e *Engine) loadHistory(ctx context.Context, userID, quizID string) ([]domain.Attempt, int, error) {
	attempts, err := e.ledger.ListAttempts(ctx, userID, quizID)
	if err != nil {
		return nil, 0, err
	}
	extra, err := e.ledger.CountExtraAttempts(ctx, userID, quizID)
	if err != nil {
		return nil, 0, err
	}
	return attempts, extra, nil
}

func (e *Engine) themeCompletion(ctx context.Context, userID, themeID string) (domain.ThemeCompletion, error) {
	theme, err := e.catalog.GetTheme(ctx, themeID)
	if err != nil {
		return domain.ThemeCompletion{}, err
	}
	quizzes, err := e.catalog.ListThemeQuizzes(ctx, themeID)
	if err != nil {
		return domain.ThemeCompletion{}, err
	}
	ids := make([]string, len(quizzes))
	for i, q := range quizzes {
		ids[i] = q.ID
	}
	best, err := e.ledger.BestScores(ctx, userID, ids)
	if err != nil {
		return domain.ThemeCompletion{}, err
	}
	return domain.EvaluateTheme(theme, quizzes, best), nil
}

func (e *Engine) publishLedger(userID, quizID string, balance int, l domain.Ledger) {
	e.feed.Publish(Event{Type: EventLedger, UserID: userID, QuizID: quizID, StarBalance: balance, Ledger: &l, At: e.now()})
}
