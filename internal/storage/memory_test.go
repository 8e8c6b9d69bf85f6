package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saty-git24/live-polling-system/internal/models"
	"github.com/saty-git24/live-polling-system/internal/storage"
)

func newTestPoll(question string, options ...string) *models.Poll {
	if len(options) == 0 {
		options = []string{"A", "B"}
	}
	return models.NewPoll(question, options, 30)
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	t.Run("empty store has no active poll", func(t *testing.T) {
		_, err := store.GetCurrentPoll(ctx)
		assert.ErrorIs(t, err, models.ErrNoActivePoll)
	})

	t.Run("created poll becomes current", func(t *testing.T) {
		poll := newTestPoll("Pick one")
		require.NoError(t, store.CreatePoll(ctx, poll))

		current, err := store.GetCurrentPoll(ctx)
		require.NoError(t, err)
		assert.Equal(t, poll.ID, current.ID)
		assert.True(t, current.IsActive)
		assert.Equal(t, 0, current.TotalVotes)
		for _, opt := range current.Options {
			assert.Equal(t, 0, opt.Votes)
		}
	})

	t.Run("lookup by id", func(t *testing.T) {
		current, _ := store.GetCurrentPoll(ctx)

		found, err := store.GetPollByID(ctx, current.ID)
		require.NoError(t, err)
		assert.Equal(t, current.ID, found.ID)

		_, err = store.GetPollByID(ctx, "poll-unknown")
		assert.ErrorIs(t, err, models.ErrPollNotFound)
	})

	t.Run("returned polls are snapshots", func(t *testing.T) {
		current, _ := store.GetCurrentPoll(ctx)
		current.Options[0].Votes = 999
		current.TotalVotes = 999

		again, _ := store.GetCurrentPoll(ctx)
		assert.Equal(t, 0, again.TotalVotes)
		assert.Equal(t, 0, again.Options[0].Votes)
	})
}

func TestMemoryStore_RecordVote(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	poll := newTestPoll("Pick one", "A", "B")
	require.NoError(t, store.CreatePoll(ctx, poll))

	t.Run("accepts first vote and applies counts atomically", func(t *testing.T) {
		updated, err := store.RecordVote(ctx, &models.Vote{
			PollID: poll.ID, ParticipantID: "p1", OptionID: "opt-0",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.TotalVotes)
		assert.Equal(t, 1, updated.Options[0].Votes)
		assert.Equal(t, 0, updated.Options[1].Votes)
	})

	t.Run("rejects second vote for the same participant", func(t *testing.T) {
		_, err := store.RecordVote(ctx, &models.Vote{
			PollID: poll.ID, ParticipantID: "p1", OptionID: "opt-1",
		})
		assert.ErrorIs(t, err, models.ErrDuplicateVote)

		// Counts reflect only the first vote.
		current, _ := store.GetCurrentPoll(ctx)
		assert.Equal(t, 1, current.TotalVotes)
		assert.Equal(t, 1, current.Options[0].Votes)
		assert.Equal(t, 0, current.Options[1].Votes)
	})

	t.Run("rejects unknown poll", func(t *testing.T) {
		_, err := store.RecordVote(ctx, &models.Vote{
			PollID: "poll-unknown", ParticipantID: "p2", OptionID: "opt-0",
		})
		assert.ErrorIs(t, err, models.ErrPollNotFound)
	})

	t.Run("rejects unknown option", func(t *testing.T) {
		_, err := store.RecordVote(ctx, &models.Vote{
			PollID: poll.ID, ParticipantID: "p2", OptionID: "opt-9",
		})
		assert.ErrorIs(t, err, models.ErrOptionNotFound)
	})

	t.Run("total always equals the option sum", func(t *testing.T) {
		for _, pid := range []string{"p2", "p3", "p4"} {
			updated, err := store.RecordVote(ctx, &models.Vote{
				PollID: poll.ID, ParticipantID: pid, OptionID: "opt-1",
			})
			require.NoError(t, err)

			sum := 0
			for _, opt := range updated.Options {
				sum += opt.Votes
			}
			assert.Equal(t, updated.TotalVotes, sum)
		}
	})

	t.Run("rejects votes on an ended poll", func(t *testing.T) {
		_, err := store.EndPoll(ctx, poll.ID)
		require.NoError(t, err)

		_, err = store.RecordVote(ctx, &models.Vote{
			PollID: poll.ID, ParticipantID: "p9", OptionID: "opt-0",
		})
		assert.ErrorIs(t, err, models.ErrPollNotActive)
	})
}

func TestMemoryStore_VoteLookups(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	poll := newTestPoll("Pick one")
	require.NoError(t, store.CreatePoll(ctx, poll))

	_, err := store.RecordVote(ctx, &models.Vote{
		PollID: poll.ID, ParticipantID: "p1", OptionID: "opt-1",
	})
	require.NoError(t, err)

	voted, err := store.HasVoted(ctx, poll.ID, "p1")
	require.NoError(t, err)
	assert.True(t, voted)

	voted, err = store.HasVoted(ctx, poll.ID, "p2")
	require.NoError(t, err)
	assert.False(t, voted)

	optionID, ok, err := store.GetVote(ctx, poll.ID, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "opt-1", optionID)

	_, ok, err = store.GetVote(ctx, poll.ID, "p2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_EndPoll(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	poll := newTestPoll("First")
	require.NoError(t, store.CreatePoll(ctx, poll))

	t.Run("ending moves the poll to history and frees the slot", func(t *testing.T) {
		ended, err := store.EndPoll(ctx, poll.ID)
		require.NoError(t, err)
		assert.False(t, ended.IsActive)

		_, err = store.GetCurrentPoll(ctx)
		assert.ErrorIs(t, err, models.ErrNoActivePoll)

		history, err := store.PollHistory(ctx)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, poll.ID, history[0].ID)
	})

	t.Run("double end is idempotent and does not double-append", func(t *testing.T) {
		again, err := store.EndPoll(ctx, poll.ID)
		require.NoError(t, err)
		assert.False(t, again.IsActive)
		assert.Equal(t, poll.ID, again.ID)

		history, _ := store.PollHistory(ctx)
		assert.Len(t, history, 1)
	})

	t.Run("history is most-recent-ended first", func(t *testing.T) {
		second := newTestPoll("Second")
		require.NoError(t, store.CreatePoll(ctx, second))
		_, err := store.EndPoll(ctx, second.ID)
		require.NoError(t, err)

		history, _ := store.PollHistory(ctx)
		require.Len(t, history, 2)
		assert.Equal(t, second.ID, history[0].ID)
		assert.Equal(t, poll.ID, history[1].ID)
	})

	t.Run("unknown poll", func(t *testing.T) {
		_, err := store.EndPoll(ctx, "poll-unknown")
		assert.ErrorIs(t, err, models.ErrPollNotFound)
	})
}
