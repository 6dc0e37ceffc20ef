package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"quiz-mastery-service/internal/app"
	"quiz-mastery-service/internal/domain"
)

func TestRouterRequiresUserHeader(t *testing.T) {
	server := newTestServer(t)

	var body errorBody
	status := doJSON(t, http.MethodGet, server.URL+"/api/quizzes", "", nil, &body)
	if status != http.StatusBadRequest || body.Error != "VALIDATION" {
		t.Fatalf("expected 400 VALIDATION, got %d %+v", status, body)
	}
}

func TestRouterHealth(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(raw) != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, raw)
	}
}

func TestRouterSubmitAndInspect(t *testing.T) {
	server := newTestServer(t, domain.User{ID: "u1", Name: "Ada"})
	base := server.URL + "/api/quizzes"

	var statuses []app.QuizStatus
	if status := doJSON(t, http.MethodGet, base, "u1", nil, &statuses); status != http.StatusOK {
		t.Fatalf("list quizzes: %d", status)
	}
	if len(statuses) != 3 || statuses[1].Access.IsUnlocked {
		t.Fatalf("unexpected statuses %+v", statuses)
	}

	var locked errorBody
	status := doJSON(t, http.MethodPost, base+"/multiplication/attempts", "u1", answersRequest{Answers: domain.Answers{}}, &locked)
	if status != http.StatusForbidden || locked.Error != "FORBIDDEN" {
		t.Fatalf("expected 403, got %d %+v", status, locked)
	}
	if locked.Context["starsNeeded"] != float64(5) {
		t.Fatalf("expected starsNeeded 5 in context, got %v", locked.Context)
	}

	var result app.SubmitResult
	status = doJSON(t, http.MethodPost, base+"/addition/attempts", "u1", answersRequest{Answers: perfectAddition()}, &result)
	if status != http.StatusCreated {
		t.Fatalf("submit: %d", status)
	}
	if result.Score != 100 || !result.Passed || result.StarsEarned != 8 || result.TotalStars != 8 {
		t.Fatalf("unexpected result %+v", result)
	}

	var ledger domain.Ledger
	if status := doJSON(t, http.MethodGet, base+"/addition/attempts/status", "u1", nil, &ledger); status != http.StatusOK {
		t.Fatalf("status: %d", status)
	}
	if !ledger.HasPassed || ledger.RemainingAttempts != domain.UnlimitedAttempts {
		t.Fatalf("unexpected ledger %+v", ledger)
	}

	var history []domain.Attempt
	doJSON(t, http.MethodGet, base+"/addition/attempts", "u1", nil, &history)
	if len(history) != 1 || history[0].Score != 100 {
		t.Fatalf("unexpected history %+v", history)
	}

	var access domain.Access
	doJSON(t, http.MethodGet, base+"/multiplication/access", "u1", nil, &access)
	if !access.IsUnlocked || access.UserStars != 8 {
		t.Fatalf("expected multiplication unlocked, got %+v", access)
	}

	var correction app.Correction
	if status := doJSON(t, http.MethodGet, base+"/addition/correction", "u1", nil, &correction); status != http.StatusOK {
		t.Fatalf("correction: %d", status)
	}
	if len(correction.Questions) != 3 {
		t.Fatalf("expected full answer key, got %+v", correction)
	}

	var theme domain.ThemeCompletion
	doJSON(t, http.MethodGet, server.URL+"/api/themes/arithmetic/completion", "u1", nil, &theme)
	if theme.Completed || theme.PassedQuizzes != 1 || theme.TotalQuizzes != 2 {
		t.Fatalf("unexpected theme %+v", theme)
	}
}

func TestRouterErrorStatuses(t *testing.T) {
	server := newTestServer(t, domain.User{ID: "u1", StarBalance: 100})
	base := server.URL + "/api/quizzes"

	var body errorBody
	if status := doJSON(t, http.MethodPost, base+"/addition/extra-attempts", "u1", nil, &body); status != http.StatusConflict {
		t.Fatalf("expected 409 for premature purchase, got %d %+v", status, body)
	}
	if status := doJSON(t, http.MethodGet, base+"/nope/access", "u1", nil, &body); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if status := doJSON(t, http.MethodGet, base+"/addition/correction", "u1", nil, &body); status != http.StatusForbidden {
		t.Fatalf("expected 403 for early correction, got %d", status)
	}

	req, _ := http.NewRequest(http.MethodPost, base+"/addition/attempts", strings.NewReader("{not json"))
	req.Header.Set(userHeader, "u1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestRouterPurchaseAfterExhaustingAttempts(t *testing.T) {
	server := newTestServer(t, domain.User{ID: "u1", StarBalance: 20})
	base := server.URL + "/api/quizzes/addition"

	for i := 0; i < 3; i++ {
		if status := doJSON(t, http.MethodPost, base+"/attempts", "u1", answersRequest{Answers: domain.Answers{}}, nil); status != http.StatusCreated {
			t.Fatalf("attempt %d: %d", i, status)
		}
	}
	var exhausted errorBody
	if status := doJSON(t, http.MethodPost, base+"/attempts", "u1", answersRequest{Answers: domain.Answers{}}, &exhausted); status != http.StatusConflict {
		t.Fatalf("expected 409 once exhausted, got %d", status)
	}
	if exhausted.Context["canPurchaseExtraAttempt"] != true {
		t.Fatalf("expected purchase hint, got %+v", exhausted.Context)
	}

	var purchase app.PurchaseResult
	if status := doJSON(t, http.MethodPost, base+"/extra-attempts", "u1", nil, &purchase); status != http.StatusCreated {
		t.Fatalf("purchase: %d", status)
	}
	if purchase.RemainingStars != 13 || purchase.RemainingAttempts != 1 {
		t.Fatalf("unexpected purchase %+v", purchase)
	}
}

func TestRouterRevisionHidesAnswers(t *testing.T) {
	server := newTestServer(t, domain.User{ID: "u1"})

	resp, err := func() (*http.Response, error) {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/revision", nil)
		req.Header.Set(userHeader, "u1")
		return http.DefaultClient.Do(req)
	}()
	if err != nil {
		t.Fatalf("get revision: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revision: %d %s", resp.StatusCode, raw)
	}
	if strings.Contains(string(raw), "isCorrect") || strings.Contains(string(raw), "explanation") {
		t.Fatalf("revision payload leaks answers: %s", raw)
	}

	var result domain.RevisionResult
	status := doJSON(t, http.MethodPost, server.URL+"/api/revision", "u1", answersRequest{Answers: perfectAddition()}, &result)
	if status != http.StatusOK {
		t.Fatalf("submit revision: %d", status)
	}
	if result.TotalQuestions != 3 || result.Score != 100 || !result.Passed {
		t.Fatalf("unexpected revision result %+v", result)
	}
}

func TestToErrorBody(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NotFound("quiz", "q1"), http.StatusNotFound, "NOT_FOUND"},
		{domain.NewError(domain.ErrForbidden, "locked", nil), http.StatusForbidden, "FORBIDDEN"},
		{domain.NewError(domain.ErrInvalidState, "exhausted", nil), http.StatusConflict, "INVALID_STATE"},
		{domain.InsufficientFunds(3, 10), http.StatusPaymentRequired, "INSUFFICIENT_FUNDS"},
		{domain.NewError(domain.ErrValidation, "bad", nil), http.StatusBadRequest, "VALIDATION"},
		{fmt.Errorf("wrapped: %w", domain.ErrRetryable), http.StatusServiceUnavailable, "RETRYABLE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, c := range cases {
		body, status := toErrorBody(c.err)
		if status != c.status || body.Error != c.code {
			t.Fatalf("%v: got %d %s, want %d %s", c.err, status, body.Error, c.status, c.code)
		}
	}
	body, _ := toErrorBody(domain.InsufficientFunds(3, 10))
	if body.Context["starsNeeded"] != 7 {
		t.Fatalf("expected context carried, got %+v", body.Context)
	}
}
