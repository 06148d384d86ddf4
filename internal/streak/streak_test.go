package streak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum/internal/badge"
)

func TestApply_FreezeBridgesSingleMissedDay(t *testing.T) {
	prior := State{Current: 5, Longest: 5, LastCompletionDate: "2024-01-05", FreezeTokens: 1}

	tr, err := Apply(prior, "2024-01-07", badge.Gold, false)
	require.NoError(t, err)
	assert.Equal(t, Bridged, tr.Outcome)
	assert.True(t, tr.TokenUsed())
	assert.Equal(t, 6, tr.New.Current)
	assert.Equal(t, 0, tr.New.FreezeTokens)
	assert.Equal(t, 6, tr.New.Longest)
	assert.Equal(t, "2024-01-07", tr.New.LastCompletionDate)
	assert.True(t, tr.Increased())
}

func TestApply_LongGapRestarts(t *testing.T) {
	prior := State{Current: 5, Longest: 5, LastCompletionDate: "2024-01-05", FreezeTokens: 1}

	tr, err := Apply(prior, "2024-01-09", badge.Gold, false)
	require.NoError(t, err)
	assert.Equal(t, Restarted, tr.Outcome)
	assert.Equal(t, 1, tr.New.Current)
	assert.Equal(t, 1, tr.New.FreezeTokens)
	assert.Equal(t, 5, tr.New.Longest)
	assert.False(t, tr.Increased())
}

func TestApply_GapTwoWithoutTokensRestarts(t *testing.T) {
	prior := State{Current: 4, Longest: 9, LastCompletionDate: "2024-01-05"}

	tr, err := Apply(prior, "2024-01-07", badge.Gold, false)
	require.NoError(t, err)
	assert.Equal(t, Restarted, tr.Outcome)
	assert.Equal(t, 1, tr.New.Current)
	assert.Equal(t, 9, tr.New.Longest)
}

func TestApply_NonGoldBreaksActiveStreak(t *testing.T) {
	for _, tier := range []badge.Tier{badge.Silver, badge.Bronze, badge.Shameful} {
		prior := State{Current: 3, Longest: 3, LastCompletionDate: "2024-01-05", FreezeTokens: 3}
		tr, err := Apply(prior, "2024-01-06", tier, true)
		require.NoError(t, err)
		assert.Equal(t, Broken, tr.Outcome)
		assert.Equal(t, 0, tr.New.Current)
		assert.Equal(t, 3, tr.New.FreezeTokens, "tokens never spent on a non-gold day")
		assert.Equal(t, 3, tr.New.Longest)
		assert.Equal(t, "2024-01-06", tr.New.LastCompletionDate)
	}
}

func TestApply_NonGoldWithNoStreakIsNoop(t *testing.T) {
	prior := State{Longest: 2, LastCompletionDate: "2024-01-01", FreezeTokens: 1}
	tr, err := Apply(prior, "2024-01-06", badge.Bronze, false)
	require.NoError(t, err)
	assert.Equal(t, Unchanged, tr.Outcome)
	assert.Equal(t, prior, tr.New)
}

func TestApply_ContinuesAfterGoldYesterday(t *testing.T) {
	prior := State{Current: 6, Longest: 6, LastCompletionDate: "2024-01-05"}
	tr, err := Apply(prior, "2024-01-06", badge.Gold, true)
	require.NoError(t, err)
	assert.Equal(t, Continued, tr.Outcome)
	assert.Equal(t, 7, tr.New.Current)
	assert.Equal(t, 7, tr.New.Longest)
}

func TestApply_StartsFresh(t *testing.T) {
	tr, err := Apply(State{}, "2024-01-06", badge.Gold, false)
	require.NoError(t, err)
	assert.Equal(t, Started, tr.Outcome)
	assert.Equal(t, 1, tr.New.Current)
	assert.Equal(t, 1, tr.New.Longest)
	assert.True(t, tr.Increased())

	// broken streak with a stale last date also starts fresh
	tr, err = Apply(State{Current: 0, LastCompletionDate: "2024-01-04", FreezeTokens: 2}, "2024-01-06", badge.Gold, false)
	require.NoError(t, err)
	assert.Equal(t, Started, tr.Outcome)
	assert.Equal(t, 2, tr.New.FreezeTokens)
}

func TestApply_BadDate(t *testing.T) {
	_, err := Apply(State{Current: 2, LastCompletionDate: "garbage"}, "2024-01-06", badge.Gold, false)
	assert.Error(t, err)
}

func TestRefill(t *testing.T) {
	assert.Equal(t, 1, Refill(0, 1, 3))
	assert.Equal(t, 3, Refill(2, 2, 3))
	assert.Equal(t, 3, Refill(3, 1, 3))
	assert.Equal(t, 1, Refill(0, 0, 0), "defaults")
}
