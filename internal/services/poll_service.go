package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/config"
	"github.com/saty-git24/live-polling-system/internal/models"
	"github.com/saty-git24/live-polling-system/internal/security"
	"github.com/saty-git24/live-polling-system/internal/storage"
)

// VoterLister supplies the currently connected voters for the new-poll
// gate. The Hub satisfies it.
type VoterLister interface {
	Voters() []*models.Participant
}

// PollService is the poll state store: it exclusively owns poll mutation
// and mediates between durable storage and the in-memory fallback through
// the storage adapter.
type PollService struct {
	store   storage.PollStore
	voters  VoterLister
	metrics *Metrics
	log     *zap.Logger
}

func NewPollService(store storage.PollStore, voters VoterLister, metrics *Metrics, log *zap.Logger) *PollService {
	return &PollService{
		store:   store,
		voters:  voters,
		metrics: metrics,
		log:     log,
	}
}

// CreatePoll validates input, enforces the single-active-poll rule, and
// persists the new poll. When the previous poll is still active but every
// connected voter has answered it, that poll is ended first (closure
// implied by full participation) and returned as endedPrev so the caller
// can cancel its timer and announce the closure.
func (s *PollService) CreatePoll(ctx context.Context, question string, options []string, duration int) (poll *models.Poll, endedPrev *models.Poll, err error) {
	question, verr := security.ValidateText(question, config.MaxQuestionLength)
	if verr != nil {
		return nil, nil, &models.ValidationError{Field: "question", Message: verr.Error()}
	}
	if len(options) < config.MinPollOptions || len(options) > config.MaxPollOptions {
		return nil, nil, &models.ValidationError{
			Field:   "options",
			Message: fmt.Sprintf("must be between %d and %d", config.MinPollOptions, config.MaxPollOptions),
		}
	}
	cleaned := make([]string, len(options))
	for i, text := range options {
		cleaned[i], verr = security.ValidateText(text, config.MaxOptionTextLength)
		if verr != nil {
			return nil, nil, &models.ValidationError{
				Field:   "options",
				Message: fmt.Sprintf("option %d: %v", i, verr),
			}
		}
	}
	if duration < config.MinPollDuration || duration > config.MaxPollDuration {
		return nil, nil, &models.ValidationError{
			Field:   "duration",
			Message: fmt.Sprintf("must be between %d and %d seconds", config.MinPollDuration, config.MaxPollDuration),
		}
	}

	current, err := s.GetCurrentPoll(ctx)
	if err != nil {
		return nil, nil, err
	}
	if current != nil && current.IsActive {
		if err := s.checkAllVotersAnswered(ctx, current); err != nil {
			return nil, nil, err
		}
		// Full participation closes the previous poll.
		endedPrev, err = s.EndPoll(ctx, current.ID)
		if err != nil {
			return nil, nil, err
		}
	}

	poll = models.NewPoll(question, cleaned, duration)
	if err := s.store.CreatePoll(ctx, poll); err != nil {
		// The fallback adapter absorbs storage outages, so this is a
		// genuine failure.
		return nil, nil, fmt.Errorf("failed to create poll: %w", err)
	}

	s.metrics.IncrementPollsCreated()
	s.log.Info("poll created",
		zap.String("poll_id", poll.ID),
		zap.Int("options", len(poll.Options)),
		zap.Int("duration_seconds", poll.Duration))
	return poll, endedPrev, nil
}

// checkAllVotersAnswered applies the gate: a new poll is allowed while one
// is active only if every currently connected voter has voted on it. With
// no voters connected the gate opens, which keeps an abandoned session from
// deadlocking the moderator.
func (s *PollService) checkAllVotersAnswered(ctx context.Context, current *models.Poll) error {
	if s.voters == nil {
		return &models.ConflictError{Message: "Cannot create new poll: a poll is already active"}
	}
	for _, voter := range s.voters.Voters() {
		voted, err := s.store.HasVoted(ctx, current.ID, voter.ID)
		if err != nil {
			s.log.Warn("vote status check failed during create gate", zap.Error(err))
			voted = false
		}
		if !voted {
			return &models.ConflictError{
				Message: "Cannot create new poll: some voters have not answered the current poll",
			}
		}
	}
	return nil
}

// GetCurrentPoll returns the active poll, or nil when none exists.
func (s *PollService) GetCurrentPoll(ctx context.Context) (*models.Poll, error) {
	poll, err := s.store.GetCurrentPoll(ctx)
	if errors.Is(err, models.ErrNoActivePoll) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to fetch current poll", zap.Error(err))
		return nil, nil
	}
	return poll, nil
}

// GetPollByID returns the poll, or nil when unknown.
func (s *PollService) GetPollByID(ctx context.Context, pollID string) (*models.Poll, error) {
	poll, err := s.store.GetPollByID(ctx, pollID)
	if errors.Is(err, models.ErrPollNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to fetch poll", zap.String("poll_id", pollID), zap.Error(err))
		return nil, nil
	}
	return poll, nil
}

// EndPoll marks the poll inactive and returns its terminal state. Ending an
// already-ended poll returns the same terminal state; an unknown ID returns
// nil.
func (s *PollService) EndPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	poll, err := s.store.EndPoll(ctx, pollID)
	if errors.Is(err, models.ErrPollNotFound) {
		return nil, nil
	}
	if err != nil {
		s.log.Error("failed to end poll", zap.String("poll_id", pollID), zap.Error(err))
		return nil, err
	}

	s.metrics.IncrementPollsEnded()
	s.log.Info("poll ended", zap.String("poll_id", pollID), zap.Int("total_votes", poll.TotalVotes))
	return poll, nil
}

// GetPollHistory returns ended polls, most recently ended first. Storage
// failures yield an empty list rather than an error.
func (s *PollService) GetPollHistory(ctx context.Context) []*models.Poll {
	history, err := s.store.PollHistory(ctx)
	if err != nil {
		s.log.Error("failed to fetch poll history", zap.Error(err))
		return nil
	}
	return history
}
