package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/models"
	"github.com/saty-git24/live-polling-system/internal/services"
	"github.com/saty-git24/live-polling-system/internal/storage"
)

func newLedgerFixture(t *testing.T) (*services.VoteLedger, *storage.MemoryStore, *models.Poll) {
	t.Helper()
	store := storage.NewMemoryStore()
	ledger := services.NewVoteLedger(store, services.NewMetrics(), zap.NewNop())

	poll := models.NewPoll("Pick one", []string{"A", "B"}, 30)
	require.NoError(t, store.CreatePoll(context.Background(), poll))
	return ledger, store, poll
}

func TestVoteLedger_SubmitVote(t *testing.T) {
	ctx := context.Background()
	ledger, store, poll := newLedgerFixture(t)

	t.Run("first vote is recorded", func(t *testing.T) {
		result := ledger.SubmitVote(ctx, poll.ID, "p1", "opt-0")
		assert.True(t, result.Accepted)
		assert.Equal(t, "Vote recorded", result.Message)
		require.NotNil(t, result.Poll)
		assert.Equal(t, 1, result.Poll.TotalVotes)
		assert.Equal(t, 1, result.Poll.Options[0].Votes)
		assert.Equal(t, 0, result.Poll.Options[1].Votes)
	})

	t.Run("repeat vote is rejected without touching counts", func(t *testing.T) {
		result := ledger.SubmitVote(ctx, poll.ID, "p1", "opt-1")
		assert.False(t, result.Accepted)
		assert.Equal(t, "You have already voted", result.Message)
		assert.Nil(t, result.Poll)

		current, err := store.GetCurrentPoll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, current.TotalVotes)
		assert.Equal(t, 1, current.Options[0].Votes)
		assert.Equal(t, 0, current.Options[1].Votes)
	})

	t.Run("unknown poll", func(t *testing.T) {
		result := ledger.SubmitVote(ctx, "poll-unknown", "p2", "opt-0")
		assert.False(t, result.Accepted)
		assert.Equal(t, "Poll not found", result.Message)
	})

	t.Run("unknown option", func(t *testing.T) {
		result := ledger.SubmitVote(ctx, poll.ID, "p2", "opt-9")
		assert.False(t, result.Accepted)
		assert.Equal(t, "Option not found", result.Message)
	})

	t.Run("ended poll", func(t *testing.T) {
		_, err := store.EndPoll(ctx, poll.ID)
		require.NoError(t, err)

		result := ledger.SubmitVote(ctx, poll.ID, "p2", "opt-0")
		assert.False(t, result.Accepted)
		assert.Equal(t, "Poll is no longer active", result.Message)
	})
}

// brokenVoteStore simulates a storage fault on the vote path.
type brokenVoteStore struct {
	*storage.MemoryStore
}

func (brokenVoteStore) RecordVote(ctx context.Context, vote *models.Vote) (*models.Poll, error) {
	return nil, errors.New("write: broken pipe")
}

func TestVoteLedger_StorageFault(t *testing.T) {
	ledger := services.NewVoteLedger(brokenVoteStore{storage.NewMemoryStore()}, services.NewMetrics(), zap.NewNop())

	result := ledger.SubmitVote(context.Background(), "poll-x", "p1", "opt-0")
	assert.False(t, result.Accepted)
	assert.Equal(t, "Failed to submit vote", result.Message)
}

func TestVoteLedger_SplitTally(t *testing.T) {
	ctx := context.Background()
	ledger, store, poll := newLedgerFixture(t)

	require.True(t, ledger.SubmitVote(ctx, poll.ID, "p1", "opt-0").Accepted)
	require.True(t, ledger.SubmitVote(ctx, poll.ID, "p2", "opt-1").Accepted)

	current, err := store.GetCurrentPoll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, current.TotalVotes)
	assert.Equal(t, 1, current.Options[0].Votes)
	assert.Equal(t, 1, current.Options[1].Votes)

	// p1 trying to flip to the other option changes nothing.
	result := ledger.SubmitVote(ctx, poll.ID, "p1", "opt-1")
	assert.False(t, result.Accepted)
	assert.Equal(t, "You have already voted", result.Message)

	current, _ = store.GetCurrentPoll(ctx)
	assert.Equal(t, 2, current.TotalVotes)
	assert.Equal(t, 1, current.Options[0].Votes)
	assert.Equal(t, 1, current.Options[1].Votes)
}

func TestVoteLedger_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	ledger, store, poll := newLedgerFixture(t)

	// One participant races itself across both options. Exactly one
	// submission may win.
	const attempts = 16
	var wg sync.WaitGroup
	results := make([]services.VoteResult, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ledger.SubmitVote(ctx, poll.ID, "p1", fmt.Sprintf("opt-%d", i%2))
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, r := range results {
		if r.Accepted {
			accepted++
		} else {
			assert.Equal(t, "You have already voted", r.Message)
		}
	}
	assert.Equal(t, 1, accepted)

	current, err := store.GetCurrentPoll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, current.TotalVotes)
	assert.Equal(t, 1, current.Options[0].Votes+current.Options[1].Votes)
}

func TestVoteLedger_ConcurrentParticipants(t *testing.T) {
	ctx := context.Background()
	ledger, store, poll := newLedgerFixture(t)

	const participants = 50
	var wg sync.WaitGroup
	for i := 0; i < participants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result := ledger.SubmitVote(ctx, poll.ID, fmt.Sprintf("p%d", i), fmt.Sprintf("opt-%d", i%2))
			assert.True(t, result.Accepted)
		}(i)
	}
	wg.Wait()

	current, err := store.GetCurrentPoll(ctx)
	require.NoError(t, err)
	assert.Equal(t, participants, current.TotalVotes)

	sum := 0
	for _, opt := range current.Options {
		sum += opt.Votes
	}
	assert.Equal(t, current.TotalVotes, sum)
}

func TestVoteLedger_VoteLookups(t *testing.T) {
	ctx := context.Background()
	ledger, _, poll := newLedgerFixture(t)

	assert.False(t, ledger.HasVoted(ctx, poll.ID, "p1"))
	_, ok := ledger.GetVote(ctx, poll.ID, "p1")
	assert.False(t, ok)

	ledger.SubmitVote(ctx, poll.ID, "p1", "opt-1")

	assert.True(t, ledger.HasVoted(ctx, poll.ID, "p1"))
	optionID, ok := ledger.GetVote(ctx, poll.ID, "p1")
	assert.True(t, ok)
	assert.Equal(t, "opt-1", optionID)
}
