package domain

// Access is the star gate verdict for one user and quiz.
type Access struct {
	IsUnlocked    bool `json:"isUnlocked"`
	RequiredStars int  `json:"requiredStars"`
	UserStars     int  `json:"userStars"`
	StarsNeeded   int  `json:"starsNeeded"`
}

// CheckAccess compares a balance with a quiz's star requirement.
func CheckAccess(requiredStars, starBalance int) Access {
	return Access{
		IsUnlocked:    starBalance >= requiredStars,
		RequiredStars: requiredStars,
		UserStars:     starBalance,
		StarsNeeded:   max(0, requiredStars-starBalance),
	}
}

// SubmissionDecision is the outcome of evaluating a submission before commit.
type SubmissionDecision struct {
	Replay bool
	Access Access
	Ledger Ledger
}

// EvaluateSubmission applies the admission rules in order: the quiz must be
// active and non-empty, the star gate open, and the ledger must allow a retry.
// The user is expected to have been loaded already.
func EvaluateSubmission(quiz Quiz, user User, ledger Ledger) (SubmissionDecision, error) {
	if !quiz.IsActive {
		return SubmissionDecision{}, NotFound("quiz", quiz.ID)
	}
	if len(quiz.Questions) == 0 {
		return SubmissionDecision{}, NewError(ErrInvalidState, "quiz has no questions", map[string]any{"quizId": quiz.ID})
	}

	access := CheckAccess(quiz.RequiredStars, user.StarBalance)
	if quiz.RequiredStars > 0 && !access.IsUnlocked {
		return SubmissionDecision{}, NewError(ErrForbidden, "quiz is locked", map[string]any{
			"requiredStars": access.RequiredStars,
			"userStars":     access.UserStars,
			"starsNeeded":   access.StarsNeeded,
		})
	}

	if !ledger.HasPassed && !ledger.CanRetry {
		return SubmissionDecision{}, NewError(ErrInvalidState, "no attempts remaining", map[string]any{
			"remainingAttempts":       ledger.RemainingAttempts,
			"failedAttempts":          ledger.FailedAttempts,
			"totalAllowed":            ledger.TotalAllowed,
			"canPurchaseExtraAttempt": ledger.CanPurchaseExtraAttempt,
		})
	}

	return SubmissionDecision{Replay: ledger.HasPassed, Access: access, Ledger: ledger}, nil
}

// EvaluatePurchase checks that an extra attempt may be bought for cost stars.
func EvaluatePurchase(ledger Ledger, starBalance, cost int) error {
	if !ledger.CanPurchaseExtraAttempt {
		msg := "attempts still remaining"
		if ledger.HasPassed {
			msg = "quiz already passed"
		}
		return NewError(ErrInvalidState, msg, map[string]any{
			"remainingAttempts": ledger.RemainingAttempts,
			"hasPassed":         ledger.HasPassed,
		})
	}
	if starBalance < cost {
		return InsufficientFunds(starBalance, cost)
	}
	return nil
}

// InsufficientFunds reports a balance below cost.
func InsufficientFunds(balance, cost int) *Error {
	return NewError(ErrInsufficientFunds, "not enough stars", map[string]any{
		"cost":        cost,
		"balance":     balance,
		"starsNeeded": max(0, cost-balance),
	})
}
