package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"momentum/internal/badge"
	"momentum/internal/datex"
	"momentum/internal/model"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	tasks      *TaskService
	progress   *ProgressService
	categories *CategoryService
	settings   Settings
}

func NewReminderService(tasks *TaskService, progress *ProgressService, categories *CategoryService, settings Settings) *ReminderService {
	return &ReminderService{
		tasks:      tasks,
		progress:   progress,
		categories: categories,
		settings:   settings.withDefaults(),
	}
}

// DailyReport renders today's schedule, completion rate and streak as Telegram HTML.
func (s *ReminderService) DailyReport(ctx context.Context, user model.User) (string, error) {
	now := s.settings.now(user.Location(s.settings.Location))
	today := datex.FormatDate(now)

	occs, err := s.tasks.OccurrencesForDate(ctx, user.ID, today)
	if err != nil {
		return "", err
	}
	catNames, err := s.categories.Names(ctx, user.ID)
	if err != nil {
		return "", err
	}
	rate, err := s.progress.Rate(ctx, user.ID, today)
	if err != nil {
		return "", err
	}
	st, err := s.progress.GetStreak(ctx, user.ID)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s, %s\n\n", datex.WeekdayName(now), today))

	builder.WriteString("🔥 <b>Today</b>\n")
	if len(occs) == 0 {
		builder.WriteString("— nothing scheduled\n")
	} else {
		for _, occ := range occs {
			builder.WriteString(formatOccurrence(occ, catNames, user.Use12HourClock))
		}
	}

	builder.WriteString("\n📈 <b>Progress</b>\n")
	if rate == nil {
		builder.WriteString("— no rate for today\n")
	} else {
		builder.WriteString(fmt.Sprintf("%s %d/%d done · %.1f%% · %s\n",
			rate.Tier.Emoji(), rate.Completed, rate.Total, roundRate(rate.Percentage), rate.Tier))
	}

	builder.WriteString(fmt.Sprintf("\n🏅 Streak: <b>%d</b> (best %d) · ❄️ × %d\n",
		st.CurrentStreak, st.LongestStreak, st.FreezeTokens))
	if p := progressFor(st.CurrentStreak); p.Next != nil {
		builder.WriteString(fmt.Sprintf("Next: %s %s in %d more gold day(s)\n",
			p.Next.Emoji, html.EscapeString(p.Next.Name), p.DaysRemaining))
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatOccurrence(occ model.Occurrence, catNames map[uint]string, use12Hour bool) string {
	var sb strings.Builder

	icon := "⬜"
	if occ.Completed {
		icon = "✅"
	}
	clock, err := datex.FormatClock(occ.ScheduledTime, !use12Hour)
	if err != nil {
		clock = occ.ScheduledTime
	}

	title := "(deleted task)"
	if occ.Task != nil {
		title = strings.TrimSpace(occ.Task.Title)
	}
	sb.WriteString(fmt.Sprintf("%s %s %s", icon, clock, html.EscapeString(title)))

	if occ.Task != nil && occ.Task.CategoryID != nil {
		if name := strings.TrimSpace(catNames[*occ.Task.CategoryID]); name != "" {
			sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(name)))
		}
	}
	if occ.Task != nil && occ.Task.Duration > 0 {
		sb.WriteString(fmt.Sprintf(" · %d min", occ.Task.Duration))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// tierLine renders one line of a distribution, e.g. "🥇 gold: 3".
func tierLine(d badge.Distribution, t badge.Tier) string {
	return fmt.Sprintf("%s %s: %d", t.Emoji(), t, d[t])
}

// DistributionText renders a distribution in tier order.
func DistributionText(d badge.Distribution) string {
	lines := make([]string, 0, len(badge.Tiers))
	for _, t := range badge.Tiers {
		lines = append(lines, tierLine(d, t))
	}
	return strings.Join(lines, "\n")
}
