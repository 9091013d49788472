package services

import "errors"

// Service errors
var (
	// ErrRunInProgress is returned when a scheduled run fires while the
	// previous one is still working
	ErrRunInProgress = errors.New("forecast run already in progress")

	// ErrInvalidInput is returned for malformed query parameters
	ErrInvalidInput = errors.New("invalid input")
)
