package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-mastery-service/internal/app"
	"quiz-mastery-service/internal/catalog"
	"quiz-mastery-service/internal/domain"
	"quiz-mastery-service/internal/infra/memory"
)

func newTestServer(t *testing.T, users ...domain.User) *httptest.Server {
	t.Helper()
	store := memory.NewStore(catalog.Sample())
	for _, u := range users {
		store.PutUser(u)
	}
	engine := app.NewEngine(
		memory.NewQuizRepository(store, time.Minute),
		store,
		store,
		memory.NewKeyLocker(),
		app.NewFeed(),
		app.DefaultSettings(),
	)
	server := httptest.NewServer(NewRouter(engine))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, userID string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set(userHeader, userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func perfectAddition() domain.Answers {
	return domain.Answers{
		"add-1": {"add-1-b"},
		"add-2": {"add-2-a"},
		"add-3": {"add-3-a", "add-3-b"},
	}
}
