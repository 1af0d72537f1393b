package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bgwastu/parsley"
)

// errorResponse is the envelope the web client switches on.
type errorResponse struct {
	Success bool        `json:"success"`
	Error   errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to HTTP statuses: client-fixable
// failures are 400s, throttling is 429, and blocked traffic is 403.
// Anything unclassified still answers 400 with an api_error body so clients
// always get the same envelope.
func writeError(w http.ResponseWriter, err error) {
	kind := parsley.KindOf(err)

	status := http.StatusBadRequest
	switch kind {
	case parsley.KindRateLimit:
		status = http.StatusTooManyRequests
	case parsley.KindBotDetection, parsley.KindSecurity:
		status = http.StatusForbidden
	}

	message := err.Error()
	var tagged *parsley.Error
	if errors.As(err, &tagged) {
		message = tagged.Message
	}

	writeJSON(w, status, errorResponse{
		Success: false,
		Error:   errorDetail{Message: message, Type: string(kind)},
	})
}
