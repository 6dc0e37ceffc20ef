package domain

const (
	// DefaultBaseAttempts is the number of free failed attempts per quiz.
	DefaultBaseAttempts = 3
	// DefaultExtraAttemptCost is the star price of one extra attempt.
	DefaultExtraAttemptCost = 10
	// UnlimitedAttempts is reported as remainingAttempts once a quiz is passed.
	UnlimitedAttempts = 999
)

// Rules holds the deployment-wide economy settings.
type Rules struct {
	BaseAttempts     int
	ExtraAttemptCost int
}

// DefaultRules returns 3 free attempts and a 10 star extra attempt.
func DefaultRules() Rules {
	return Rules{BaseAttempts: DefaultBaseAttempts, ExtraAttemptCost: DefaultExtraAttemptCost}
}

// Ledger is the attempt state of one (user, quiz) pair, derived from history.
type Ledger struct {
	AttemptCount            int  `json:"attemptCount"`
	FailedAttempts          int  `json:"failedAttempts"`
	PassedAttempts          int  `json:"passedAttempts"`
	ExtraAttempts           int  `json:"extraAttempts"`
	BestScore               int  `json:"bestScore"`
	HasPassed               bool `json:"hasPassed"`
	TotalAllowed            int  `json:"totalAllowed"`
	RemainingAttempts       int  `json:"remainingAttempts"`
	IsCompleted             bool `json:"isCompleted"`
	CanRetry                bool `json:"canRetry"`
	CanViewCorrection       bool `json:"canViewCorrection"`
	CanPurchaseExtraAttempt bool `json:"canPurchaseExtraAttempt"`
}

// Ledger projects attempts and the number of purchased extra attempts into a
// Ledger. It is a pure function of its inputs and is never stored.
func (r Rules) Ledger(attempts []Attempt, extraPurchases, passingScore int) Ledger {
	l := Ledger{
		AttemptCount:  len(attempts),
		ExtraAttempts: extraPurchases,
		TotalAllowed:  r.BaseAttempts + extraPurchases,
	}
	for _, a := range attempts {
		if a.Score >= passingScore {
			l.PassedAttempts++
		} else {
			l.FailedAttempts++
		}
		if a.Score > l.BestScore {
			l.BestScore = a.Score
		}
	}
	l.HasPassed = l.PassedAttempts > 0

	if l.HasPassed {
		l.RemainingAttempts = UnlimitedAttempts
	} else {
		l.RemainingAttempts = max(0, l.TotalAllowed-l.FailedAttempts)
	}
	l.IsCompleted = l.HasPassed || l.FailedAttempts >= l.TotalAllowed
	l.CanRetry = l.HasPassed || (!l.IsCompleted && l.RemainingAttempts > 0)
	l.CanViewCorrection = l.HasPassed || l.FailedAttempts >= r.BaseAttempts
	l.CanPurchaseExtraAttempt = l.IsCompleted && !l.HasPassed
	return l
}

// LedgerVersion identifies the history a Ledger was projected from.
// Attempts and purchases are append-only, so the two counts change on every write.
type LedgerVersion struct {
	Attempts  int
	Purchases int
}

// Version returns the history counts behind l.
func (l Ledger) Version() LedgerVersion {
	return LedgerVersion{Attempts: l.AttemptCount, Purchases: l.ExtraAttempts}
}

// StaleLedger reports that the history moved between evaluation and commit.
func StaleLedger(seen, current LedgerVersion) *Error {
	return NewError(ErrInvalidState, "attempt history changed, re-check the ledger", map[string]any{
		"seenAttempts":     seen.Attempts,
		"seenPurchases":    seen.Purchases,
		"currentAttempts":  current.Attempts,
		"currentPurchases": current.Purchases,
	})
}
