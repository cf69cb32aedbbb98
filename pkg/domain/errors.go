package domain

import "errors"

// ErrActionCancelled is returned when a pending confirmation is rejected.
// It propagates to the caller and aborts any remaining steps in a chain.
var ErrActionCancelled = errors.New("action cancelled")

// ErrSessionNotFound is returned when a session id cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrConfirmationNotFound is returned when confirming or cancelling a
// pending-confirmation id that does not exist (already resolved or never
// posted).
var ErrConfirmationNotFound = errors.New("pending confirmation not found")

// ErrRetriesExhausted is returned when the shared repair budget runs out
// with validation errors still outstanding. The partial document is still
// delivered alongside it.
var ErrRetriesExhausted = errors.New("repair retries exhausted")
