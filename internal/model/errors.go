package model

import "errors"

// Common errors used across the application
var (
	// Store errors
	ErrPlayerNotFound       = errors.New("player not found")
	ErrMapNotFound          = errors.New("map not found")
	ErrEventEditionNotFound = errors.New("event edition not found")
	ErrRecordNotFound       = errors.New("record not found")

	// Record submission errors
	ErrInvalidTimes = errors.New("checkpoint times are not coherent with the final time")
)
