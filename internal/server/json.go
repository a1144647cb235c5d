package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/playperu/tabletop/internal/tabletop"
)

// Error codes carried in the envelope.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidBody      = "INVALID_BODY"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeConflict         = "CONFLICT"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeInternal         = "INTERNAL_ERROR"
)

// ErrorBody describes one failure.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error     ErrorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// apiError is an error that already knows its HTTP rendering.
type apiError struct {
	status  int
	code    string
	message string
	details any
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.status, e.code, e.message)
}

func newAPIError(status int, code, message string) *apiError {
	return &apiError{status: status, code: code, message: message}
}

// toAPIError classifies err. Unknown errors become INTERNAL_ERROR and are
// reported through the second result so the caller can log them.
func toAPIError(err error) (*apiError, bool) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		return ae, false
	case errors.Is(err, tabletop.ErrInvalid):
		return newAPIError(http.StatusBadRequest, CodeValidation, err.Error()), false
	case errors.Is(err, tabletop.ErrUnauthenticated):
		return newAPIError(http.StatusUnauthorized, CodeUnauthenticated, err.Error()), false
	case errors.Is(err, tabletop.ErrForbidden):
		return newAPIError(http.StatusForbidden, CodeForbidden, err.Error()), false
	case errors.Is(err, tabletop.ErrNotFound):
		return newAPIError(http.StatusNotFound, CodeNotFound, err.Error()), false
	case errors.Is(err, tabletop.ErrConflict):
		return newAPIError(http.StatusConflict, CodeConflict, err.Error()), false
	default:
		return newAPIError(http.StatusInternalServerError, CodeInternal, "internal server error"), true
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, e *apiError) {
	writeJSON(w, e.status, ErrorResponse{
		Error:     ErrorBody{Code: e.code, Message: e.message, Details: e.details},
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}
