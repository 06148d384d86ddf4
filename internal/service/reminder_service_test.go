package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum/internal/badge"
)

func TestDailyReport(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at("2024-01-10", "07:00"))

	_, err := h.tasks.CreateTask(ctx, h.user.ID, TaskDraft{Title: "<Gym>", Duration: 60, StartTime: "18:00", Category: "Health"})
	require.NoError(t, err)
	created, err := h.tasks.CreateTask(ctx, h.user.ID, TaskDraft{Title: "Read", Duration: 20, StartTime: "09:00"})
	require.NoError(t, err)
	_, err = h.tasks.ToggleOccurrence(ctx, h.user.ID, created.Occurrences[0].ID)
	require.NoError(t, err)

	require.NoError(t, h.users.UpdateSettings(ctx, h.user.ID, "", 1, true))
	user, err := h.users.FindByID(ctx, h.user.ID)
	require.NoError(t, err)

	report, err := h.reminders.DailyReport(ctx, *user)
	require.NoError(t, err)
	assert.Contains(t, report, "<b>Daily report</b>")
	assert.Contains(t, report, "Wednesday, 2024-01-10")
	assert.Contains(t, report, "✅ 9:00 AM Read")
	assert.Contains(t, report, "⬜ 6:00 PM &lt;Gym&gt; <i>(Health)</i>")
	assert.Contains(t, report, "1/2 done · 50.0%")
	assert.Contains(t, report, "Streak: <b>0</b>")
	assert.Contains(t, report, "First Flame")
}

func TestDailyReport_EmptyDay(t *testing.T) {
	h := newHarness(t, at("2024-01-10", "07:00"))

	report, err := h.reminders.DailyReport(context.Background(), *h.user)
	require.NoError(t, err)
	assert.Contains(t, report, "nothing scheduled")
	assert.Contains(t, report, "no rate for today")
}

func TestDistributionText(t *testing.T) {
	d := badge.NewDistribution()
	d.Add(badge.Gold)
	d.Add(badge.Gold)
	assert.Equal(t, "🥇 gold: 2\n🥈 silver: 0\n🥉 bronze: 0\n😔 shameful: 0", DistributionText(d))
}
