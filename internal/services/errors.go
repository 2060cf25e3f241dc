package services

import (
	"context"
	"errors"
)

// Standard service errors by kind
var (
	// Stream errors
	ErrCancelled        = errors.New("operation cancelled")
	ErrStreamInProgress = errors.New("a stream is already in progress")
	ErrGeneration       = errors.New("draft generation failed")

	// Input errors
	ErrValidation      = errors.New("invalid input provided")
	ErrMissingEmailKey = errors.New("contact has no email key")

	// Store errors
	ErrStoreMiss  = errors.New("user document does not exist")
	ErrPermission = errors.New("store write not permitted")

	// Connectivity errors
	ErrNetworkUnavailable = errors.New("network unavailable")
)

// IsCancelled reports whether an error represents a cancelled stream or
// request. Cancellation is swallowed at controller boundaries and never
// surfaces to the UI as an error.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsValidation reports whether an error was a synchronous input rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrMissingEmailKey)
}
