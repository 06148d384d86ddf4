package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum/internal/badge"
	"momentum/internal/event"
	"momentum/internal/milestone"
	"momentum/internal/model"
	"momentum/internal/overlap"
	"momentum/internal/service"
)

func TestRenderDay(t *testing.T) {
	occs := []model.Occurrence{
		{ID: "occ-1", ScheduledDate: "2024-01-10", ScheduledTime: "09:00", Completed: true, Task: &model.Task{Title: "Read"}},
		{ID: "occ-2", ScheduledDate: "2024-01-10", ScheduledTime: "18:30", Task: &model.Task{Title: "<Gym>"}},
	}
	rate := &service.Rate{Date: "2024-01-10", Completed: 1, Total: 2, Percentage: 50, Tier: badge.Bronze}

	text, markup := renderDay("2024-01-10", occs, rate, true)
	assert.Contains(t, text, "Wednesday, 2024-01-10")
	assert.Contains(t, text, "✅ 9:00 AM Read")
	assert.Contains(t, text, "⬜ 6:30 PM &lt;Gym&gt;")
	assert.Contains(t, text, "1/2 done · 50.0% · shameful")

	require.Len(t, markup.InlineKeyboard, 3)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "toggle:occ-1", *markup.InlineKeyboard[0][0].CallbackData)
	nav := markup.InlineKeyboard[2]
	require.Len(t, nav, 2)
	assert.Equal(t, "day:2024-01-09", *nav[0].CallbackData)
	assert.Equal(t, "day:2024-01-11", *nav[1].CallbackData)
}

func TestRenderDay_Empty(t *testing.T) {
	text, markup := renderDay("2024-01-10", nil, nil, false)
	assert.Contains(t, text, "Nothing scheduled.")
	assert.NotContains(t, text, "done")
	assert.Len(t, markup.InlineKeyboard, 1)
}

func TestDescribeRule(t *testing.T) {
	end := "2024-03-01"
	assert.Equal(t, "once", describeRule(nil))
	assert.Equal(t, "daily from 2024-01-10", describeRule(&model.RecurrenceRule{Kind: "daily", StartDate: "2024-01-10"}))
	assert.Equal(t, "Mon, Fri from 2024-01-15 until 2024-03-01", describeRule(&model.RecurrenceRule{
		Kind: "specific_days", Days: []string{"Monday", "Friday"}, StartDate: "2024-01-15", EndDate: &end,
	}))
}

func TestRenderTaskList_GroupsByCategory(t *testing.T) {
	work := uint(2)
	tasks := []model.Task{
		{ID: "bbbbbbbb-1111", Title: "Standup", Duration: 15, CategoryID: &work},
		{ID: "aaaaaaaa-2222", Title: "Walk", Duration: 30},
	}
	text, markup := renderTaskList(tasks, map[uint]string{work: "Work"})

	assert.Contains(t, text, "<b>No category</b>")
	assert.Contains(t, text, "<b>Work</b>")
	assert.Contains(t, text, "<code>bbbbbbbb</code>")
	assert.Less(t, strings.Index(text, "No category"), strings.Index(text, "Work"))
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "delete:aaaaaaaa-2222", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestRenderTaskList_Empty(t *testing.T) {
	text, markup := renderTaskList(nil, nil)
	assert.Contains(t, text, "No tasks yet")
	assert.Empty(t, markup.InlineKeyboard)
}

func TestRenderCreated_ListsConflicts(t *testing.T) {
	created := &service.CreatedTask{
		Task:        &model.Task{Title: "Gym"},
		Occurrences: []model.Occurrence{{ScheduledDate: "2024-01-10"}, {ScheduledDate: "2024-01-11"}},
		Conflicts: []service.Conflict{
			{Date: "2024-01-10", Scheduled: overlap.Scheduled{Title: "Call", Time: "18:15", Duration: 30}},
		},
	}
	text := renderCreated(created, false)
	assert.Contains(t, text, "Saved <b>Gym</b> (once)")
	assert.Contains(t, text, "Scheduled 2 times, first on 2024-01-10")
	assert.Contains(t, text, "Overlaps with 1 existing slot(s)")
	assert.Contains(t, text, "• 2024-01-10 18:15 Call")
}

func TestRenderMilestones(t *testing.T) {
	statuses := []service.MilestoneStatus{
		{Milestone: milestone.Catalog[0], Achieved: true, ClaimCount: 2},
		{Milestone: milestone.Catalog[1], Achieved: true, ClaimCount: 1},
		{Milestone: milestone.Catalog[2]},
		{Milestone: milestone.Catalog[3]},
		{Milestone: milestone.Catalog[4]},
		{Milestone: milestone.Catalog[5]},
	}
	text := renderMilestones(statuses)
	assert.Contains(t, text, "First Flame · 1 day ×2")
	assert.Contains(t, text, "Spark Keeper · 2 days\n")
	assert.Contains(t, text, "🔒 Triple Threat")
	assert.NotContains(t, text, "Perfect Ten")
	assert.Contains(t, text, "2 of 6 unlocked.")
}

func TestRenderStreak(t *testing.T) {
	last := "2024-01-09"
	next := milestone.Catalog[2]
	text := renderStreak(
		&model.Streak{CurrentStreak: 2, LongestStreak: 5, FreezeTokens: 1, LastCompletionDate: &last},
		&service.MilestoneProgress{Streak: 2, Next: &next, DaysRemaining: 1},
	)
	assert.Contains(t, text, "Current streak: <b>2</b>")
	assert.Contains(t, text, "Longest: 5")
	assert.Contains(t, text, "Last gold day: 2024-01-09")
	assert.Contains(t, text, "Next: ⚡ Triple Threat in 1 gold day(s)")
}

func TestRenderNotifications(t *testing.T) {
	items := []model.Notification{
		{ID: 7, Title: "🎉 Milestone Achieved!", Message: "You've reached 1 day: First Flame!", Data: model.NotificationData{Name: "First Flame"}, CreatedAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{ID: 3, Title: "🎉 Milestone Achieved!", Read: true, CreatedAt: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)},
	}
	text, markup := renderNotifications(items, 1)
	assert.Contains(t, text, "(1 unread)")
	assert.Contains(t, text, "🆕 <b>🎉 Milestone Achieved!</b> 2024-01-10")
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "read:7", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, callbackReadAll, *markup.InlineKeyboard[1][0].CallbackData)

	text, markup = renderNotifications(nil, 0)
	assert.Equal(t, "🔔 No notifications.", text)
	assert.Empty(t, markup.InlineKeyboard)
}

func TestRenderStats(t *testing.T) {
	dist := badge.NewDistribution()
	dist.Add(badge.Gold)
	dow := service.DayOfWeek{"Wednesday": dist}
	text := renderStats(&service.Overview{
		From: "2024-01-01", To: "2024-01-10",
		Rates:                []service.Rate{{Date: "2024-01-10"}},
		Distribution:         dist,
		RealtimeDistribution: dist,
		DayOfWeek:            dow,
		AverageRate:          72.2,
	})
	assert.Contains(t, text, "2024-01-01 – 2024-01-10")
	assert.Contains(t, text, "Average completion: 72.2%")
	assert.Contains(t, text, "🥇 gold: 1")
	assert.Contains(t, text, "Wed: 1")
}

func TestRenderMilestonePush(t *testing.T) {
	text := renderMilestonePush(event.Event{Type: event.MilestoneAchieved, MilestoneDays: 7, MilestoneName: "Seven Samurai", MilestoneEmoji: "🗡️"})
	assert.Equal(t, "🎉 <b>Milestone achieved!</b>\n🗡️ Seven Samurai: 7-day streak", text)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "Untitled", normalizeTitle("  "))
	assert.Equal(t, "short", shortTitle("short"))
	assert.Equal(t, 24, len([]rune(shortTitle("a title that is definitely longer than the limit"))))
	assert.Equal(t, "abcdefgh", shortID("abcdefgh-1234"))

	tasks := []model.Task{{ID: "ab12-x"}, {ID: "AB34-y"}, {ID: "cd56-z"}}
	assert.Len(t, matchTasks(tasks, "ab"), 2)
	assert.Len(t, matchTasks(tasks, "CD5"), 1)

	days, err := parseStatsDays("")
	require.NoError(t, err)
	assert.Equal(t, statsDefaultDays, days)
	_, err = parseStatsDays("0")
	assert.Error(t, err)

	from, err := statsFrom("week", "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", from)
	from, err = statsFrom("7", "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-04", from)
}
