package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/models"
	"github.com/saty-git24/live-polling-system/internal/storage"
)

// User-facing vote outcomes. The exact strings are part of the client
// contract.
const (
	MsgVoteRecorded   = "Vote recorded"
	MsgPollNotFound   = "Poll not found"
	MsgPollNotActive  = "Poll is no longer active"
	MsgAlreadyVoted   = "You have already voted"
	MsgOptionNotFound = "Option not found"
	MsgVoteFailed     = "Failed to submit vote"
)

// VoteResult is the structured outcome of a vote submission. Rejections are
// ordinary results, not errors.
type VoteResult struct {
	Accepted bool         `json:"success"`
	Message  string       `json:"message"`
	Poll     *models.Poll `json:"poll,omitempty"`
}

// VoteLedger enforces at-most-one vote per (poll, participant) and is the
// only writer of vote-count increments. Atomicity lives in the storage
// adapter; the ledger translates outcomes for callers.
type VoteLedger struct {
	store   storage.PollStore
	metrics *Metrics
	log     *zap.Logger
}

func NewVoteLedger(store storage.PollStore, metrics *Metrics, log *zap.Logger) *VoteLedger {
	return &VoteLedger{
		store:   store,
		metrics: metrics,
		log:     log,
	}
}

// SubmitVote admits one vote. On success the returned poll is the fully
// applied state the caller may broadcast as-is.
func (l *VoteLedger) SubmitVote(ctx context.Context, pollID, participantID, optionID string) VoteResult {
	vote := &models.Vote{
		PollID:        pollID,
		ParticipantID: participantID,
		OptionID:      optionID,
		Timestamp:     time.Now().UnixMilli(),
	}

	poll, err := l.store.RecordVote(ctx, vote)
	if err != nil {
		l.metrics.IncrementVotesRejected()
		return VoteResult{Accepted: false, Message: l.rejectionMessage(pollID, err)}
	}

	l.metrics.IncrementVotesAccepted()
	l.log.Info("vote recorded",
		zap.String("poll_id", pollID),
		zap.String("participant_id", participantID),
		zap.String("option_id", optionID))
	return VoteResult{Accepted: true, Message: MsgVoteRecorded, Poll: poll}
}

func (l *VoteLedger) rejectionMessage(pollID string, err error) string {
	switch {
	case errors.Is(err, models.ErrPollNotFound):
		return MsgPollNotFound
	case errors.Is(err, models.ErrPollNotActive):
		return MsgPollNotActive
	case errors.Is(err, models.ErrDuplicateVote):
		return MsgAlreadyVoted
	case errors.Is(err, models.ErrOptionNotFound):
		return MsgOptionNotFound
	default:
		l.log.Error("vote submission failed", zap.String("poll_id", pollID), zap.Error(err))
		return MsgVoteFailed
	}
}

// HasVoted reports whether the participant has voted on the poll. Storage
// failures read as "not voted"; the durable unique key still prevents
// double admission.
func (l *VoteLedger) HasVoted(ctx context.Context, pollID, participantID string) bool {
	voted, err := l.store.HasVoted(ctx, pollID, participantID)
	if err != nil {
		l.log.Warn("vote status lookup failed", zap.String("poll_id", pollID), zap.Error(err))
		return false
	}
	return voted
}

// GetVote returns the participant's selected option, if any.
func (l *VoteLedger) GetVote(ctx context.Context, pollID, participantID string) (string, bool) {
	optionID, ok, err := l.store.GetVote(ctx, pollID, participantID)
	if err != nil {
		l.log.Warn("vote lookup failed", zap.String("poll_id", pollID), zap.Error(err))
		return "", false
	}
	return optionID, ok
}
