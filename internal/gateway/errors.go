package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/flemzord/hlbroker/internal/approval"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeValidation       = "VALIDATION_ERROR"
	codeUnauthorized     = "UNAUTHORIZED"
	codeInvalidAPIKey    = "INVALID_API_KEY"
	codeNotFound         = "NOT_FOUND"
	codeAlreadyDecided   = "ALREADY_DECIDED"
	codeAlreadyResponded = "ALREADY_RESPONDED"
	codeRateLimited      = "RATE_LIMITED"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeInternal         = "INTERNAL_ERROR"
)

// FieldError describes one invalid field of a request body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details []FieldError) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg, Details: details}})
}

// writeServiceError maps a service error onto the HTTP error taxonomy.
// Anything unrecognised is logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, approval.ErrInvalid):
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request", []FieldError{{Message: err.Error()}})
	case errors.Is(err, approval.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, "not found", nil)
	case errors.Is(err, approval.ErrAlreadyDecided):
		writeError(w, http.StatusConflict, codeAlreadyDecided, "function call already decided", nil)
	case errors.Is(err, approval.ErrAlreadyResponded):
		writeError(w, http.StatusConflict, codeAlreadyResponded, "human contact already responded", nil)
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error", nil)
	}
}
