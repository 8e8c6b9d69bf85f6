// Package storage owns poll persistence. One PollStore interface, two
// implementations: a durable Postgres adapter and an in-process fallback.
// The Fallback type composes the two so callers never see storage outages.
package storage

import (
	"context"

	"github.com/saty-git24/live-polling-system/internal/models"
)

// PollStore is the storage contract shared by the durable and in-memory
// adapters.
//
// RecordVote is the critical operation: admission check and count increment
// are a single atomic unit, so no observer can see a vote accepted without
// the matching option and total increments, and two votes racing for the
// same (pollID, participantID) key resolve to exactly one winner.
type PollStore interface {
	// CreatePoll stores a freshly created poll as the current active poll.
	CreatePoll(ctx context.Context, poll *models.Poll) error

	// GetCurrentPoll returns the active poll, or models.ErrNoActivePoll.
	GetCurrentPoll(ctx context.Context) (*models.Poll, error)

	// GetPollByID returns the poll, active or ended, or models.ErrPollNotFound.
	GetPollByID(ctx context.Context, pollID string) (*models.Poll, error)

	// EndPoll marks the poll inactive and returns its terminal state.
	// Ending an already-ended poll returns the same terminal state.
	EndPoll(ctx context.Context, pollID string) (*models.Poll, error)

	// PollHistory returns ended polls, most recently ended first.
	PollHistory(ctx context.Context) ([]*models.Poll, error)

	// RecordVote atomically admits the vote and applies the count
	// increments, returning the updated poll. Failure modes, checked in
	// order: models.ErrPollNotFound, models.ErrPollNotActive,
	// models.ErrDuplicateVote, models.ErrOptionNotFound.
	RecordVote(ctx context.Context, vote *models.Vote) (*models.Poll, error)

	// HasVoted reports whether the participant already voted on the poll.
	HasVoted(ctx context.Context, pollID, participantID string) (bool, error)

	// GetVote returns the participant's selected option ID, if any.
	GetVote(ctx context.Context, pollID, participantID string) (string, bool, error)
}
