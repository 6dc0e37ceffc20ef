package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"quiz-mastery-service/internal/app"
	"quiz-mastery-service/internal/domain"
)

const userHeader = "X-User-ID"

type ctxKey struct{}

// API exposes the engine over REST.
type API struct {
	engine *app.Engine
}

func NewAPI(engine *app.Engine) *API {
	return &API{engine: engine}
}

type answersRequest struct {
	Answers domain.Answers `json:"answers"`
}

// NewRouter wires the REST API, the websocket endpoint and the health probe.
func NewRouter(engine *app.Engine) *mux.Router {
	api := NewAPI(engine)
	ws := NewWSHandler(engine)

	router := mux.NewRouter()
	router.Use(logRequests)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ws", ws.ServeWS)

	r := router.PathPrefix("/api").Subrouter()
	r.Use(requireUser)
	r.HandleFunc("/quizzes", api.listQuizzes).Methods(http.MethodGet)
	r.HandleFunc("/quizzes/{quizId}/access", api.checkAccess).Methods(http.MethodGet)
	r.HandleFunc("/quizzes/{quizId}/attempts/status", api.attemptStatus).Methods(http.MethodGet)
	r.HandleFunc("/quizzes/{quizId}/attempts", api.attemptHistory).Methods(http.MethodGet)
	r.HandleFunc("/quizzes/{quizId}/attempts", api.submitAttempt).Methods(http.MethodPost)
	r.HandleFunc("/quizzes/{quizId}/extra-attempts", api.purchaseExtraAttempt).Methods(http.MethodPost)
	r.HandleFunc("/quizzes/{quizId}/correction", api.correction).Methods(http.MethodGet)
	r.HandleFunc("/themes/{themeId}/completion", api.themeCompletion).Methods(http.MethodGet)
	r.HandleFunc("/revision", api.revisionQuiz).Methods(http.MethodGet)
	r.HandleFunc("/revision", api.submitRevision).Methods(http.MethodPost)
	return router
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s %s", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		if userID == "" {
			writeError(w, domain.NewError(domain.ErrValidation, "missing "+userHeader+" header", nil))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func decodeAnswers(r *http.Request) (domain.Answers, error) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, domain.NewError(domain.ErrValidation, "invalid request body", nil)
	}
	return req.Answers, nil
}

func (a *API) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.engine.GetQuizzesWithUserStatus(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (a *API) checkAccess(w http.ResponseWriter, r *http.Request) {
	access, err := a.engine.CheckQuizAccess(r.Context(), userID(r), mux.Vars(r)["quizId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, access)
}

func (a *API) attemptStatus(w http.ResponseWriter, r *http.Request) {
	ledger, err := a.engine.GetAttemptStatus(r.Context(), userID(r), mux.Vars(r)["quizId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (a *API) attemptHistory(w http.ResponseWriter, r *http.Request) {
	attempts, err := a.engine.GetAttemptHistory(r.Context(), userID(r), mux.Vars(r)["quizId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (a *API) submitAttempt(w http.ResponseWriter, r *http.Request) {
	answers, err := decodeAnswers(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := a.engine.SubmitAttempt(r.Context(), userID(r), mux.Vars(r)["quizId"], answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) purchaseExtraAttempt(w http.ResponseWriter, r *http.Request) {
	result, err := a.engine.PurchaseExtraAttempt(r.Context(), userID(r), mux.Vars(r)["quizId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) correction(w http.ResponseWriter, r *http.Request) {
	correction, err := a.engine.GetCorrection(r.Context(), userID(r), mux.Vars(r)["quizId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, correction)
}

func (a *API) themeCompletion(w http.ResponseWriter, r *http.Request) {
	completion, err := a.engine.GetThemeCompletion(r.Context(), userID(r), mux.Vars(r)["themeId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completion)
}

func (a *API) revisionQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.engine.GetRandomRevisionQuiz(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) submitRevision(w http.ResponseWriter, r *http.Request) {
	answers, err := decodeAnswers(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := a.engine.SubmitRevisionQuiz(r.Context(), userID(r), answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
