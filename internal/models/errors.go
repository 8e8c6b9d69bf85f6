package models

import (
	"errors"
	"fmt"
)

// Storage-level sentinels. The fallback adapter and the services translate
// these into caller-facing results; they never reach the request layer raw.
var (
	ErrPollNotFound     = errors.New("poll not found")
	ErrNoActivePoll     = errors.New("no active poll")
	ErrPollNotActive    = errors.New("poll is no longer active")
	ErrDuplicateVote    = errors.New("duplicate vote")
	ErrOptionNotFound   = errors.New("option not found")
	ErrStoreUnavailable = errors.New("durable store unavailable")
)

// ValidationError reports malformed input on poll creation. It is returned
// as a value, rendered directly to the caller, and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConflictError reports a request that is well-formed but not allowed in the
// current state, e.g. creating a poll while connected voters are still
// answering the active one.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
