package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum/internal/badge"
	"momentum/internal/common"
)

// seedWeek stores a gold Monday and a shameful Tuesday, and leaves a bronze
// Wednesday without a summary.
func seedWeek(t *testing.T, h *harness) {
	h.seedDay(t, "2024-01-01", 1, 1)
	h.recalc(t, "2024-01-01")
	h.seedDay(t, "2024-01-02", 2, 1)
	h.recalc(t, "2024-01-02")
	h.seedDay(t, "2024-01-03", 3, 2)
}

func TestAnalytics_StoredVersusRealtime(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at("2024-01-03", "20:00"))
	seedWeek(t, h)

	stored, err := h.analytics.Distribution(ctx, h.user.ID, "2024-01-01", "2024-01-07")
	require.NoError(t, err)
	assert.Equal(t, badge.Distribution{badge.Gold: 1, badge.Silver: 0, badge.Bronze: 0, badge.Shameful: 1}, stored)

	live, err := h.analytics.RealtimeDistribution(ctx, h.user.ID, "2024-01-01", "2024-01-07")
	require.NoError(t, err)
	assert.Equal(t, badge.Distribution{badge.Gold: 1, badge.Silver: 0, badge.Bronze: 1, badge.Shameful: 1}, live)

	week, err := h.analytics.DayOfWeek(ctx, h.user.ID, "2024-01-01", "2024-01-07")
	require.NoError(t, err)
	assert.Len(t, week, 7)
	assert.Equal(t, 1, week["Monday"][badge.Gold])
	assert.Equal(t, 1, week["Tuesday"][badge.Shameful])
	assert.Zero(t, week["Wednesday"][badge.Bronze])

	liveWeek, err := h.analytics.RealtimeDayOfWeek(ctx, h.user.ID, "2024-01-01", "2024-01-07")
	require.NoError(t, err)
	assert.Equal(t, 1, liveWeek["Wednesday"][badge.Bronze])
}

func TestAnalytics_Overview(t *testing.T) {
	h := newHarness(t, at("2024-01-03", "20:00"))
	seedWeek(t, h)

	o, err := h.analytics.Overview(context.Background(), h.user.ID, "2024-01-01", "2024-01-07")
	require.NoError(t, err)
	assert.Len(t, o.Rates, 3)
	assert.Equal(t, 72.2, o.AverageRate)
	assert.Equal(t, 1, o.Distribution[badge.Gold])
	assert.Equal(t, 1, o.RealtimeDistribution[badge.Bronze])
	assert.Equal(t, 1, o.DayOfWeek["Monday"][badge.Gold])
	require.NotNil(t, o.Streak)
	assert.Zero(t, o.Streak.CurrentStreak)
	assert.Equal(t, 1, o.Streak.LongestStreak)
	require.NotNil(t, o.Milestones.Next)
	assert.Equal(t, 1, o.Milestones.Next.Days)
}

func TestAnalytics_RejectsBadRange(t *testing.T) {
	h := newHarness(t, at("2024-01-03", "20:00"))

	_, err := h.analytics.Distribution(context.Background(), h.user.ID, "2024-01-07", "2024-01-01")
	assert.ErrorIs(t, err, common.ErrInvalidRule)
	_, err = h.analytics.Overview(context.Background(), h.user.ID, "yesterday", "2024-01-01")
	assert.ErrorIs(t, err, common.ErrInvalidRule)
}
