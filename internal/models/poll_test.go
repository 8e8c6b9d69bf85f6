package models_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saty-git24/live-polling-system/internal/models"
)

func TestNewPoll(t *testing.T) {
	before := time.Now().UnixMilli()
	poll := models.NewPoll("Pick one", []string{"A", "B", "C"}, 30)
	after := time.Now().UnixMilli()

	assert.True(t, strings.HasPrefix(poll.ID, "poll-"))
	assert.True(t, poll.IsActive)
	assert.Equal(t, 0, poll.TotalVotes)
	assert.GreaterOrEqual(t, poll.StartTime, before)
	assert.LessOrEqual(t, poll.StartTime, after)

	require.Len(t, poll.Options, 3)
	for i, opt := range poll.Options {
		assert.Equal(t, 0, opt.Votes)
		assert.Contains(t, opt.ID, "opt-")
		assert.Equal(t, []string{"A", "B", "C"}[i], opt.Text)
	}

	other := models.NewPoll("Pick one", []string{"A", "B"}, 30)
	assert.NotEqual(t, poll.ID, other.ID)
}

func TestPoll_Deadline(t *testing.T) {
	poll := models.NewPoll("Pick one", []string{"A", "B"}, 60)
	poll.StartTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()

	want := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	assert.True(t, poll.Deadline().Equal(want))
}

func TestPoll_Option(t *testing.T) {
	poll := models.NewPoll("Pick one", []string{"A", "B"}, 30)

	opt := poll.Option("opt-1")
	require.NotNil(t, opt)
	assert.Equal(t, "B", opt.Text)

	assert.Nil(t, poll.Option("opt-9"))
}

func TestPoll_Clone(t *testing.T) {
	poll := models.NewPoll("Pick one", []string{"A", "B"}, 30)
	clone := poll.Clone()

	clone.Options[0].Votes = 5
	clone.TotalVotes = 5

	assert.Equal(t, 0, poll.Options[0].Votes)
	assert.Equal(t, 0, poll.TotalVotes)
}

func TestParticipantRoles(t *testing.T) {
	mod := models.NewParticipant("c1", "m1", "Teacher", models.RoleModerator)
	assert.True(t, mod.IsModerator())
	assert.False(t, mod.JoinedAt.IsZero())

	voter := models.NewParticipant("c2", "v1", "Ann", models.RoleVoter)
	assert.False(t, voter.IsModerator())
}
