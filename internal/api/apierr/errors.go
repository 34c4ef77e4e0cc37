package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/estimategame/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeInvalidNickname   = "INVALID_NICKNAME"
	CodeInvalidLocale     = "INVALID_LOCALE"
	CodeUnknownStrategy   = "UNKNOWN_STRATEGY"
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodePlayerNotFound    = "PLAYER_NOT_FOUND"
	CodeItemNotFound      = "ITEM_NOT_FOUND"
	CodeSessionFinished   = "SESSION_FINISHED"
	CodeRoundClosed       = "ROUND_CLOSED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConcurrentUpdate  = "CONCURRENT_UPDATE"
	CodeInternalError     = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Session not found"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrItemNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeItemNotFound, "Item not found"}}
	case errors.Is(err, model.ErrInvalidInput):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidInput, "Estimation must be a finite, non-negative number"}}
	case errors.Is(err, model.ErrInvalidNickname):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidNickname, "Nickname must be between 1 and 32 characters"}}
	case errors.Is(err, model.ErrInvalidLocale):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidLocale, "Unsupported language"}}
	case errors.Is(err, model.ErrUnknownStrategy):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownStrategy, "Unknown bot strategy"}}
	case errors.Is(err, model.ErrInvalidToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthenticated, "Invalid or expired token"}}
	case errors.Is(err, model.ErrUnauthorized):
		return &httpError{http.StatusForbidden, APIError{CodeUnauthorized, "Not allowed to perform this action"}}
	case errors.Is(err, model.ErrSessionFinished):
		return &httpError{http.StatusConflict, APIError{CodeSessionFinished, "Session is finished"}}
	case errors.Is(err, model.ErrRoundClosed):
		return &httpError{http.StatusConflict, APIError{CodeRoundClosed, "Round is closed"}}
	case errors.Is(err, model.ErrInvalidTransition):
		return &httpError{http.StatusConflict, APIError{CodeInvalidTransition, "Action is not legal in the current session status"}}
	case errors.Is(err, model.ErrConcurrentUpdate):
		return &httpError{http.StatusConflict, APIError{CodeConcurrentUpdate, "Session was modified concurrently, retry"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthenticatedError creates an error for a missing token
func NewUnauthenticatedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthenticated, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
