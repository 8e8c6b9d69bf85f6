package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/models"
)

// Scheduler closes each poll exactly once when its wall-clock deadline
// elapses. Timers are kept in a registry keyed by poll ID so cancellation
// is an explicit operation and a stray late firing cannot double-close.
// Nothing about the timers themselves is persisted: the startTime/duration
// pair on the poll is enough to rebuild the schedule after a restart.
type Scheduler struct {
	polls   *PollService
	onEnded func(*models.Poll)
	log     *zap.Logger

	// now is swappable for tests.
	now func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewScheduler(polls *PollService, onEnded func(*models.Poll), log *zap.Logger) *Scheduler {
	return &Scheduler{
		polls:   polls,
		onEnded: onEnded,
		log:     log,
		now:     time.Now,
		timers:  make(map[string]*time.Timer),
	}
}

// Schedule arms the closing timer for a poll. An existing timer for the
// same poll is replaced. The delay is max(0, deadline-now), so a poll whose
// deadline already passed closes on the spot.
func (s *Scheduler) Schedule(poll *models.Poll) {
	remaining := s.Remaining(poll)

	s.mu.Lock()
	if prev, ok := s.timers[poll.ID]; ok {
		prev.Stop()
	}
	pollID := poll.ID
	timer := time.AfterFunc(remaining, func() {
		s.fire(pollID)
	})
	s.timers[pollID] = timer
	s.mu.Unlock()

	s.log.Info("poll close scheduled",
		zap.String("poll_id", poll.ID),
		zap.Duration("remaining", remaining))
}

// Remaining computes the time left until the poll's deadline, never
// negative.
func (s *Scheduler) Remaining(poll *models.Poll) time.Duration {
	remaining := poll.Deadline().Sub(s.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Cancel clears the poll's timer entry. A timer that already fired finds
// its entry gone and does nothing.
func (s *Scheduler) Cancel(pollID string) {
	s.mu.Lock()
	timer, ok := s.timers[pollID]
	if ok {
		timer.Stop()
		delete(s.timers, pollID)
	}
	s.mu.Unlock()
}

// fire transitions Scheduled -> Closing -> Closed. The registry entry is
// claimed first, under the lock, so only one firing per poll can proceed;
// the EndPoll call and the announcement happen outside the lock.
func (s *Scheduler) fire(pollID string) {
	s.mu.Lock()
	_, owned := s.timers[pollID]
	if owned {
		delete(s.timers, pollID)
	}
	s.mu.Unlock()

	if !owned {
		// Cancelled between firing and running.
		return
	}

	poll, err := s.polls.EndPoll(context.Background(), pollID)
	if err != nil {
		// The state store's own fallback still reaches a closed state;
		// never crash the process from a timer.
		s.log.Error("scheduled poll close failed", zap.String("poll_id", pollID), zap.Error(err))
		return
	}
	if poll == nil {
		s.log.Warn("scheduled close for unknown poll", zap.String("poll_id", pollID))
		return
	}

	s.log.Info("poll closed on deadline", zap.String("poll_id", pollID))
	if s.onEnded != nil {
		s.onEnded(poll)
	}
}

// Restore rebuilds the schedule after a process restart from the persisted
// poll. An already-expired poll is closed (and announced) immediately; a
// live one gets a timer for exactly the remaining duration.
func (s *Scheduler) Restore(ctx context.Context) error {
	poll, err := s.polls.GetCurrentPoll(ctx)
	if err != nil {
		return err
	}
	if poll == nil || !poll.IsActive {
		return nil
	}

	remaining := s.Remaining(poll)
	if remaining <= 0 {
		s.log.Info("restored poll already expired, closing now", zap.String("poll_id", poll.ID))
		ended, err := s.polls.EndPoll(ctx, poll.ID)
		if err != nil {
			s.log.Error("failed to close expired poll during restore", zap.String("poll_id", poll.ID), zap.Error(err))
			return nil
		}
		if ended != nil && s.onEnded != nil {
			s.onEnded(ended)
		}
		return nil
	}

	s.Schedule(poll)
	s.log.Info("poll timer restored",
		zap.String("poll_id", poll.ID),
		zap.Duration("remaining", remaining))
	return nil
}

// Stop cancels all outstanding timers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}
