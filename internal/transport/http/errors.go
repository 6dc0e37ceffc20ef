package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiz-mastery-service/internal/domain"
)

type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

var errorStatus = []struct {
	kind   error
	code   string
	status int
}{
	{domain.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{domain.ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{domain.ErrInvalidState, "INVALID_STATE", http.StatusConflict},
	{domain.ErrInsufficientFunds, "INSUFFICIENT_FUNDS", http.StatusPaymentRequired},
	{domain.ErrValidation, "VALIDATION", http.StatusBadRequest},
	{domain.ErrRetryable, "RETRYABLE", http.StatusServiceUnavailable},
}

// toErrorBody maps err to a client payload and HTTP status. Unknown errors become opaque 500s.
func toErrorBody(err error) (errorBody, int) {
	for _, e := range errorStatus {
		if errors.Is(err, e.kind) {
			body := errorBody{Error: e.code, Message: err.Error(), Context: domain.ErrorContext(err)}
			var de *domain.Error
			if errors.As(err, &de) {
				body.Message = de.Message
			}
			return body, e.status
		}
	}
	log.Printf("internal error: %v", err)
	return errorBody{Error: "INTERNAL", Message: "internal error"}, http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	body, status := toErrorBody(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}
