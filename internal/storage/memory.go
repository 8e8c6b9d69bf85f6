package storage

import (
	"context"
	"sync"
	"time"

	"github.com/saty-git24/live-polling-system/internal/models"
)

// MemoryStore holds the current poll, its vote ledger, and ended-poll
// history entirely in process memory. It backs the server when the durable
// store is absent or failing. The history list is unbounded, unlike the
// durable query which caps at the most recent 50 entries.
//
// Every method takes the single mutex for the pure state transition only;
// nothing here blocks, so the lock is never held across I/O.
type MemoryStore struct {
	mu      sync.Mutex
	current *models.Poll
	// consumed vote keys for the current poll: participantID -> vote
	votes   map[string]*models.Vote
	history []*models.Poll
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		votes: make(map[string]*models.Vote),
	}
}

func (s *MemoryStore) CreatePoll(_ context.Context, poll *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = poll.Clone()
	s.votes = make(map[string]*models.Vote)
	return nil
}

func (s *MemoryStore) GetCurrentPoll(_ context.Context) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, models.ErrNoActivePoll
	}
	return s.current.Clone(), nil
}

func (s *MemoryStore) GetPollByID(_ context.Context, pollID string) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.ID == pollID {
		return s.current.Clone(), nil
	}
	for _, p := range s.history {
		if p.ID == pollID {
			return p.Clone(), nil
		}
	}
	return nil, models.ErrPollNotFound
}

// HasPoll reports whether this store holds the poll, active or ended.
// The fallback composition uses it to route votes and lookups to the store
// that actually owns the poll.
func (s *MemoryStore) HasPoll(pollID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.ID == pollID {
		return true
	}
	for _, p := range s.history {
		if p.ID == pollID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) EndPoll(_ context.Context, pollID string) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.ID == pollID {
		s.current.IsActive = false
		ended := s.current
		// Most-recent-ended first, then free the current slot so a new
		// poll can be created.
		s.history = append([]*models.Poll{ended}, s.history...)
		s.current = nil
		s.votes = make(map[string]*models.Vote)
		return ended.Clone(), nil
	}

	// Already ended: return the terminal state without touching history.
	for _, p := range s.history {
		if p.ID == pollID {
			return p.Clone(), nil
		}
	}
	return nil, models.ErrPollNotFound
}

func (s *MemoryStore) PollHistory(_ context.Context) ([]*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Poll, len(s.history))
	for i, p := range s.history {
		out[i] = p.Clone()
	}
	return out, nil
}

func (s *MemoryStore) RecordVote(_ context.Context, vote *models.Vote) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != vote.PollID {
		// An ended poll in history is found but no longer accepts votes.
		for _, p := range s.history {
			if p.ID == vote.PollID {
				return nil, models.ErrPollNotActive
			}
		}
		return nil, models.ErrPollNotFound
	}
	if !s.current.IsActive {
		return nil, models.ErrPollNotActive
	}
	if _, voted := s.votes[vote.ParticipantID]; voted {
		return nil, models.ErrDuplicateVote
	}
	opt := s.current.Option(vote.OptionID)
	if opt == nil {
		return nil, models.ErrOptionNotFound
	}

	opt.Votes++
	s.current.TotalVotes++
	recorded := *vote
	recorded.Timestamp = time.Now().UnixMilli()
	s.votes[vote.ParticipantID] = &recorded

	return s.current.Clone(), nil
}

func (s *MemoryStore) HasVoted(_ context.Context, pollID, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != pollID {
		return false, nil
	}
	_, voted := s.votes[participantID]
	return voted, nil
}

func (s *MemoryStore) GetVote(_ context.Context, pollID, participantID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != pollID {
		return "", false, nil
	}
	v, voted := s.votes[participantID]
	if !voted {
		return "", false, nil
	}
	return v.OptionID, true, nil
}
