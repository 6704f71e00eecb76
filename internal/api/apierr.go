package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/obstaclehub/records-api/internal/auth"
	"github.com/obstaclehub/records-api/internal/model"
	"github.com/obstaclehub/records-api/internal/ranking"
)

// Error types returned in the JSON envelope. The gamemode client dispatches on
// these numbers, so they are part of the wire contract: 1xx internal, 2xx
// authentication, 3xx logical.
const (
	typeDB       = 102
	typeRedis    = 103
	typeInternal = 105

	typeUnauthorized     = 201
	typeStateNotReceived = 203
	typeInvalidAuthState = 204
	typeAccessTokenErr   = 206
	typeInvalidCode      = 207
	typeTimeout          = 208
	typeTooManyAttempts  = 209

	typeEndpointNotFound     = 301
	typePlayerNotFound       = 302
	typeMapNotFound          = 304
	typeEventEditionNotFound = 311
	typeInvalidTimes         = 313
	typeInvalidRequest       = 314
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

// httpError combines an HTTP status code with an error envelope
type httpError struct {
	status   int
	response ErrorResponse
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.response.Message
}

// writeError writes an error response to the response writer
func writeError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(he.response)
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var tokenCheckErr *auth.AccessTokenCheckError
	var dbErr *ranking.DBError
	var indexErr *ranking.IndexError

	switch {
	// Auth flow errors
	case errors.Is(err, auth.ErrStateNotReceived):
		return &httpError{http.StatusBadRequest, ErrorResponse{typeStateNotReceived, "State not received by the server"}}
	case errors.Is(err, auth.ErrInvalidAuthState):
		return &httpError{http.StatusBadRequest, ErrorResponse{typeInvalidAuthState, "Operation not allowed in the current authentication state"}}
	case errors.Is(err, auth.ErrTimeout):
		return &httpError{http.StatusRequestTimeout, ErrorResponse{typeTimeout, "Opposite endpoint took too much time to respond"}}
	case errors.Is(err, auth.ErrTooManyRequests):
		return &httpError{http.StatusTooManyRequests, ErrorResponse{typeTooManyAttempts, "Too many concurrent authentication attempts"}}
	case errors.Is(err, auth.ErrInvalidAccessToken):
		return &httpError{http.StatusUnauthorized, ErrorResponse{typeUnauthorized, "Invalid access token"}}
	case errors.Is(err, auth.ErrInvalidCode):
		return &httpError{http.StatusBadRequest, ErrorResponse{typeInvalidCode, "Invalid code"}}
	case errors.Is(err, auth.ErrCodeFailed):
		return &httpError{http.StatusUnauthorized, ErrorResponse{typeUnauthorized, "Code validation failed"}}
	case errors.As(err, &tokenCheckErr):
		return &httpError{http.StatusBadRequest, ErrorResponse{typeAccessTokenErr, "Error when checking the access token"}}
	case errors.Is(err, auth.ErrChannelClosed):
		return &httpError{http.StatusInternalServerError, ErrorResponse{typeInternal, "Opposite endpoint left the flow"}}

	// Store lookups
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusBadRequest, ErrorResponse{typePlayerNotFound, "Player not found"}}
	case errors.Is(err, model.ErrMapNotFound):
		return &httpError{http.StatusBadRequest, ErrorResponse{typeMapNotFound, "Map not found"}}
	case errors.Is(err, model.ErrEventEditionNotFound):
		return &httpError{http.StatusBadRequest, ErrorResponse{typeEventEditionNotFound, "Event edition not found"}}
	case errors.Is(err, model.ErrInvalidTimes):
		return &httpError{http.StatusBadRequest, ErrorResponse{typeInvalidTimes, "Invalid times"}}

	// Ranking errors
	case errors.As(err, &dbErr):
		return &httpError{http.StatusInternalServerError, ErrorResponse{typeDB, "Database error"}}
	case errors.As(err, &indexErr):
		return &httpError{http.StatusInternalServerError, ErrorResponse{typeRedis, "Redis error"}}
	case errors.Is(err, ranking.ErrInconsistent):
		return &httpError{http.StatusInternalServerError, ErrorResponse{typeInternal, "Leaderboard is inconsistent"}}

	default:
		return &httpError{http.StatusInternalServerError, ErrorResponse{typeInternal, "Internal server error"}}
	}
}

// newInvalidRequestError creates an invalid request error
func newInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, ErrorResponse{typeInvalidRequest, message}}
}

// newUnauthorizedError creates an unauthorized error
func newUnauthorizedError(message string) error {
	return &httpError{http.StatusUnauthorized, ErrorResponse{typeUnauthorized, message}}
}
