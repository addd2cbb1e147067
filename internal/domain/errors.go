package domain

import (
	"errors"
	"fmt"
)

var (
	ErrClientNotFound          = errors.New("client not found")
	ErrClientAlreadyExists     = errors.New("client already exists")
	ErrHoldNotFound            = errors.New("hold not found")
	ErrInvalidHoldType         = errors.New("invalid hold type")
	ErrInvalidExpiry           = errors.New("expires_at must be in the future")
	ErrIdempotencyKeyRequired  = errors.New("idempotency key required")
	ErrIdempotencyConflict     = errors.New("idempotency key reused for a different request")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already exists")
	ErrStaleTransition         = errors.New("hold status changed concurrently")
	ErrAlreadyTerminal         = errors.New("hold already terminal")
	ErrActorRequired           = errors.New("actor identity required")
	ErrInvalidID               = errors.New("invalid id")
)

// TerminalStateError reports a transition attempt against a hold that has
// already reached RELEASED or EXPIRED, carrying the status the hold
// currently has. Matches ErrAlreadyTerminal under errors.Is.
type TerminalStateError struct {
	Status HoldStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("hold already terminal (%s)", e.Status)
}

func (e *TerminalStateError) Is(target error) bool {
	return target == ErrAlreadyTerminal
}
