package auth

import (
	"errors"
	"fmt"
)

// Errors
var (
	// ErrStateNotReceived means the state ID is unknown or its entry expired.
	ErrStateNotReceived = errors.New("state not received")
	// ErrInvalidAuthState means an operation was called at the wrong point of the flow.
	ErrInvalidAuthState = errors.New("invalid auth state")
	// ErrTimeout means the opposite endpoint took too much time to respond.
	ErrTimeout = errors.New("opposite endpoint took too much time to respond")
	// ErrChannelClosed means the opposite endpoint dropped mid-flow.
	ErrChannelClosed = errors.New("channel closed unexpectedly")
	// ErrTooManyRequests means too many authentication attempts are live.
	ErrTooManyRequests = errors.New("too many authentication requests")

	// ErrInvalidAccessToken means the browser presented an access token that
	// does not belong to the player logged into the game.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrInvalidCode means the code entered in game did not match. The game can retry.
	ErrInvalidCode = errors.New("invalid code")
	// ErrCodeFailed means too many wrong codes were entered; the attempt is dead.
	ErrCodeFailed = errors.New("code validation failed")
)

// AccessTokenCheckError wraps an error returned by the external access token
// verifier, as opposed to the token simply being invalid.
type AccessTokenCheckError struct {
	Err error
}

func (e *AccessTokenCheckError) Error() string {
	return fmt.Sprintf("error when checking the access token: %v", e.Err)
}

func (e *AccessTokenCheckError) Unwrap() error {
	return e.Err
}
