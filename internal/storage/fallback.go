package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/models"
)

// probeInterval bounds how often a downed durable store is re-probed.
const probeInterval = 15 * time.Second

// DurableStore is what Fallback needs from the durable side: the full
// PollStore contract plus a connectivity probe.
type DurableStore interface {
	PollStore
	Ping(ctx context.Context) error
}

// Fallback composes the durable adapter with the in-memory one. Callers see
// a single PollStore; storage outages degrade to memory instead of failing
// the session, and polls created during an outage stay memory-owned until
// they end (no migration back).
//
// With a nil durable store it runs purely in memory.
type Fallback struct {
	durable DurableStore
	mem     *MemoryStore
	log     *zap.Logger

	mu        sync.Mutex
	available bool
	lastProbe time.Time
}

func NewFallback(durable DurableStore, log *zap.Logger) *Fallback {
	f := &Fallback{
		durable: durable,
		mem:     NewMemoryStore(),
		log:     log,
	}
	if durable != nil {
		// Startup connectivity probe; failure is not fatal.
		if err := durable.Ping(context.Background()); err != nil {
			log.Warn("durable store unreachable at startup, falling back to memory",
				zap.Error(err))
		} else {
			f.available = true
		}
		f.lastProbe = time.Now()
	}
	return f
}

// Memory exposes the in-memory side for debug inspection.
func (f *Fallback) Memory() *MemoryStore { return f.mem }

// DurableAvailable reports whether the durable store answered the most
// recent probe.
func (f *Fallback) DurableAvailable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.durable != nil && f.available
}

// useDurable decides the path for this call, lazily re-probing a downed
// store at most once per probeInterval.
func (f *Fallback) useDurable(ctx context.Context) bool {
	if f.durable == nil {
		return false
	}

	f.mu.Lock()
	if f.available {
		f.mu.Unlock()
		return true
	}
	if time.Since(f.lastProbe) < probeInterval {
		f.mu.Unlock()
		return false
	}
	f.lastProbe = time.Now()
	f.mu.Unlock()

	// Probe outside the lock; it carries its own short timeout.
	if err := f.durable.Ping(ctx); err != nil {
		return false
	}

	f.mu.Lock()
	f.available = true
	f.mu.Unlock()
	f.log.Info("durable store reachable again")
	return true
}

func (f *Fallback) markDown(err error) {
	f.mu.Lock()
	wasUp := f.available
	f.available = false
	f.lastProbe = time.Now()
	f.mu.Unlock()

	if wasUp {
		f.log.Warn("durable store failed, switching to in-memory fallback", zap.Error(err))
	}
}

// storeFault distinguishes infrastructure failures from domain outcomes
// like ErrPollNotFound, which must not trip the fallback switch.
func storeFault(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, models.ErrPollNotFound),
		errors.Is(err, models.ErrNoActivePoll),
		errors.Is(err, models.ErrPollNotActive),
		errors.Is(err, models.ErrDuplicateVote),
		errors.Is(err, models.ErrOptionNotFound):
		return false
	}
	return true
}

func (f *Fallback) CreatePoll(ctx context.Context, poll *models.Poll) error {
	if f.useDurable(ctx) {
		err := f.durable.CreatePoll(ctx, poll)
		if err == nil {
			return nil
		}
		f.markDown(err)
	}

	// Must not silently lose the active poll: hold it in memory.
	if err := f.mem.CreatePoll(ctx, poll); err != nil {
		return err
	}
	f.log.Warn("poll stored in memory only", zap.String("poll_id", poll.ID))
	return nil
}

func (f *Fallback) GetCurrentPoll(ctx context.Context) (*models.Poll, error) {
	if f.useDurable(ctx) {
		poll, err := f.durable.GetCurrentPoll(ctx)
		if err == nil {
			return poll, nil
		}
		if storeFault(err) {
			f.markDown(err)
		}
		// Empty durable result also falls through to a memory-held poll.
	}
	return f.mem.GetCurrentPoll(ctx)
}

func (f *Fallback) GetPollByID(ctx context.Context, pollID string) (*models.Poll, error) {
	// Memory-owned polls are authoritative for their own IDs.
	if f.mem.HasPoll(pollID) {
		return f.mem.GetPollByID(ctx, pollID)
	}

	if f.useDurable(ctx) {
		poll, err := f.durable.GetPollByID(ctx, pollID)
		if err == nil {
			return poll, nil
		}
		if storeFault(err) {
			f.markDown(err)
			return nil, models.ErrPollNotFound
		}
		return nil, err
	}
	return nil, models.ErrPollNotFound
}

func (f *Fallback) EndPoll(ctx context.Context, pollID string) (*models.Poll, error) {
	if f.mem.HasPoll(pollID) {
		return f.mem.EndPoll(ctx, pollID)
	}

	if f.useDurable(ctx) {
		poll, err := f.durable.EndPoll(ctx, pollID)
		if err == nil {
			return poll, nil
		}
		if storeFault(err) {
			f.markDown(err)
		}
		return nil, err
	}
	return nil, models.ErrPollNotFound
}

func (f *Fallback) PollHistory(ctx context.Context) ([]*models.Poll, error) {
	if f.useDurable(ctx) {
		history, err := f.durable.PollHistory(ctx)
		if err == nil {
			return history, nil
		}
		f.markDown(err)
	}
	return f.mem.PollHistory(ctx)
}

func (f *Fallback) RecordVote(ctx context.Context, vote *models.Vote) (*models.Poll, error) {
	if f.mem.HasPoll(vote.PollID) {
		return f.mem.RecordVote(ctx, vote)
	}

	if f.useDurable(ctx) {
		poll, err := f.durable.RecordVote(ctx, vote)
		if err == nil {
			return poll, nil
		}
		if storeFault(err) {
			// A durable poll's ledger cannot move to memory mid-poll
			// without losing earlier votes, so the vote is refused
			// rather than double-counted.
			f.markDown(err)
			return nil, models.ErrStoreUnavailable
		}
		return nil, err
	}
	return nil, models.ErrPollNotFound
}

func (f *Fallback) HasVoted(ctx context.Context, pollID, participantID string) (bool, error) {
	if f.mem.HasPoll(pollID) {
		return f.mem.HasVoted(ctx, pollID, participantID)
	}

	if f.useDurable(ctx) {
		voted, err := f.durable.HasVoted(ctx, pollID, participantID)
		if err == nil {
			return voted, nil
		}
		f.markDown(err)
	}
	return false, nil
}

func (f *Fallback) GetVote(ctx context.Context, pollID, participantID string) (string, bool, error) {
	if f.mem.HasPoll(pollID) {
		return f.mem.GetVote(ctx, pollID, participantID)
	}

	if f.useDurable(ctx) {
		optionID, ok, err := f.durable.GetVote(ctx, pollID, participantID)
		if err == nil {
			return optionID, ok, nil
		}
		f.markDown(err)
	}
	return "", false, nil
}
