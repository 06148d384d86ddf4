package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"momentum/internal/badge"
	"momentum/internal/datex"
	"momentum/internal/event"
	"momentum/internal/model"
	"momentum/internal/service"
)

const (
	callbackToggle  = "toggle:"
	callbackDay     = "day:"
	callbackDelete  = "delete:"
	callbackRead    = "read:"
	callbackReadAll = "readall"

	shortIDLength = 8
)

func escape(text string) string {
	return html.EscapeString(text)
}

func shortTitle(title string) string {
	const limit = 24
	if utf8.RuneCountInString(title) <= limit {
		return title
	}
	runes := []rune(title)
	return string(runes[:limit-1]) + "…"
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Untitled"
	}
	return title
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func categoryLabel(id *uint, names map[uint]string) string {
	if id == nil {
		return "No category"
	}
	if name := strings.TrimSpace(names[*id]); name != "" {
		return name
	}
	return "No category"
}

func clockLabel(hhmm string, use12Hour bool) string {
	label, err := datex.FormatClock(hhmm, !use12Hour)
	if err != nil {
		return hhmm
	}
	return label
}

// renderDay builds the checklist for one date. Every occurrence gets a toggle
// button and the last row navigates to neighbouring days.
func renderDay(date string, occs []model.Occurrence, rate *service.Rate, use12Hour bool) (string, tgbotapi.InlineKeyboardMarkup) {
	var sb strings.Builder
	weekday := ""
	if t, err := datex.ParseDate(date); err == nil {
		weekday = datex.WeekdayName(t) + ", "
	}
	sb.WriteString(fmt.Sprintf("📅 <b>%s%s</b>\n\n", weekday, date))

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(occs)+1)
	if len(occs) == 0 {
		sb.WriteString("Nothing scheduled.\n")
	}
	for _, occ := range occs {
		icon := "⬜"
		if occ.Completed {
			icon = "✅"
		}
		title := "(deleted task)"
		if occ.Task != nil {
			title = normalizeTitle(occ.Task.Title)
		}
		clock := clockLabel(occ.ScheduledTime, use12Hour)
		sb.WriteString(fmt.Sprintf("%s %s %s\n", icon, clock, escape(title)))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s %s", icon, clock, shortTitle(title)), callbackToggle+occ.ID),
		))
	}

	if rate != nil {
		shown := badge.DisplayTier(rate.Percentage)
		sb.WriteString(fmt.Sprintf("\n%s %d/%d done · %.1f%% · %s", shown.Emoji(), rate.Completed, rate.Total, rate.Percentage, shown))
	}

	if prev, err := datex.AddDays(date, -1); err == nil {
		next, _ := datex.AddDays(date, 1)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ "+prev, callbackDay+prev),
			tgbotapi.NewInlineKeyboardButtonData(next+" ▶️", callbackDay+next),
		))
	}

	return strings.TrimSpace(sb.String()), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func describeRule(rule *model.RecurrenceRule) string {
	if rule == nil {
		return "once"
	}
	var sb strings.Builder
	switch rule.Kind {
	case "daily":
		sb.WriteString("daily")
	case "specific_days", "weekly":
		short := make([]string, 0, len(rule.Days))
		for _, d := range rule.Days {
			if wd, ok := datex.ParseWeekday(d); ok {
				short = append(short, wd.String()[:3])
			}
		}
		sb.WriteString(strings.Join(short, ", "))
	default:
		sb.WriteString("once on " + rule.StartDate)
		return sb.String()
	}
	sb.WriteString(" from " + rule.StartDate)
	if rule.EndDate != nil {
		sb.WriteString(" until " + *rule.EndDate)
	}
	return sb.String()
}

// renderTaskList groups tasks by category, sorted by name, with a delete
// button per task.
func renderTaskList(tasks []model.Task, catNames map[uint]string) (string, tgbotapi.InlineKeyboardMarkup) {
	if len(tasks) == 0 {
		return "No tasks yet. Tap \"" + menuLabelNewTask + "\" to add one.", tgbotapi.NewInlineKeyboardMarkup()
	}

	groups := make(map[string][]model.Task)
	for _, task := range tasks {
		label := categoryLabel(task.CategoryID, catNames)
		groups[label] = append(groups[label], task)
	}
	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var sb strings.Builder
	sb.WriteString("📋 <b>Your tasks</b>\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, label := range labels {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", escape(label)))
		group := groups[label]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Title < group[j].Title })
		for _, task := range group {
			title := normalizeTitle(task.Title)
			sb.WriteString(fmt.Sprintf("• %s <code>%s</code>\n  %d min · %s\n",
				escape(title), shortID(task.ID), task.Duration, escape(describeRule(task.Recurrence))))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🗑 "+shortTitle(title), callbackDelete+task.ID),
			))
		}
	}
	return strings.TrimSpace(sb.String()), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func renderCreated(created *service.CreatedTask, use12Hour bool) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Saved <b>%s</b> (%s).\n", escape(created.Task.Title), escape(describeRule(created.Task.Recurrence))))
	switch n := len(created.Occurrences); n {
	case 0:
		sb.WriteString("No dates fall inside the planning window yet.\n")
	case 1:
		sb.WriteString(fmt.Sprintf("Scheduled on %s.\n", created.Occurrences[0].ScheduledDate))
	default:
		sb.WriteString(fmt.Sprintf("Scheduled %d times, first on %s.\n", n, created.Occurrences[0].ScheduledDate))
	}

	if len(created.Conflicts) > 0 {
		const shown = 5
		sb.WriteString(fmt.Sprintf("\n⚠️ Overlaps with %d existing slot(s):\n", len(created.Conflicts)))
		for i, c := range created.Conflicts {
			if i == shown {
				sb.WriteString("…\n")
				break
			}
			sb.WriteString(fmt.Sprintf("• %s %s %s\n", c.Date, clockLabel(c.Time, use12Hour), escape(c.Title)))
		}
	}
	return strings.TrimSpace(sb.String())
}

func renderStreak(st *model.Streak, p *service.MilestoneProgress) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔥 Current streak: <b>%d</b>\n", st.CurrentStreak))
	sb.WriteString(fmt.Sprintf("🏆 Longest: %d\n", st.LongestStreak))
	sb.WriteString(fmt.Sprintf("❄️ Freeze tokens: %d\n", st.FreezeTokens))
	if st.LastCompletionDate != nil {
		sb.WriteString(fmt.Sprintf("Last gold day: %s\n", *st.LastCompletionDate))
	}
	if p != nil {
		if p.Current != nil {
			sb.WriteString(fmt.Sprintf("\nReached: %s %s\n", p.Current.Emoji, escape(p.Current.Name)))
		}
		if p.Next != nil {
			sb.WriteString(fmt.Sprintf("Next: %s %s in %d gold day(s)\n", p.Next.Emoji, escape(p.Next.Name), p.DaysRemaining))
		}
	}
	return strings.TrimSpace(sb.String())
}

// renderMilestones lists achieved milestones and previews the next few.
func renderMilestones(statuses []service.MilestoneStatus) string {
	const preview = 3
	var sb strings.Builder
	sb.WriteString("🏅 <b>Milestones</b>\n\n")
	achieved, locked := 0, 0
	for _, st := range statuses {
		if st.Achieved {
			achieved++
			line := fmt.Sprintf("%s %s · %s", st.Emoji, escape(st.Name), st.DayLabel())
			if st.ClaimCount > 1 {
				line += fmt.Sprintf(" ×%d", st.ClaimCount)
			}
			sb.WriteString(line + "\n")
			continue
		}
		if locked < preview {
			sb.WriteString(fmt.Sprintf("🔒 %s · %s\n", escape(st.Name), st.DayLabel()))
		}
		locked++
	}
	if achieved == 0 {
		sb.WriteString("\nNone yet. One gold day earns the first.")
	} else {
		sb.WriteString(fmt.Sprintf("\n%d of %d unlocked.", achieved, len(statuses)))
	}
	return strings.TrimSpace(sb.String())
}

func renderNotifications(items []model.Notification, unread int64) (string, tgbotapi.InlineKeyboardMarkup) {
	if len(items) == 0 {
		return "🔔 No notifications.", tgbotapi.NewInlineKeyboardMarkup()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔔 <b>Notifications</b> (%d unread)\n\n", unread))
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, n := range items {
		marker := ""
		if !n.Read {
			marker = "🆕 "
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✔️ "+shortTitle(n.Data.Name), fmt.Sprintf("%s%d", callbackRead, n.ID)),
			))
		}
		sb.WriteString(fmt.Sprintf("%s<b>%s</b> %s\n%s\n\n", marker, escape(n.Title), n.CreatedAt.Format("2006-01-02"), escape(n.Message)))
	}
	if unread > 0 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mark all as read", callbackReadAll),
		))
	}
	return strings.TrimSpace(sb.String()), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func renderStats(o *service.Overview) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 <b>Stats</b> %s – %s\n\n", o.From, o.To))
	sb.WriteString(fmt.Sprintf("Days with tasks: %d\n", len(o.Rates)))
	sb.WriteString(fmt.Sprintf("Average completion: %.1f%%\n", o.AverageRate))
	if o.Streak != nil {
		sb.WriteString(fmt.Sprintf("Streak: %d (best %d)\n", o.Streak.CurrentStreak, o.Streak.LongestStreak))
	}
	sb.WriteString("\n<b>Finalized badges</b>\n")
	sb.WriteString(service.DistributionText(o.Distribution))
	sb.WriteString("\n\n<b>Live</b>\n")
	sb.WriteString(service.DistributionText(o.RealtimeDistribution))

	sb.WriteString("\n\n<b>Gold days by weekday</b>\n")
	for i := 1; i <= 7; i++ {
		name := time.Weekday(i % 7).String()
		if dist, ok := o.DayOfWeek[name]; ok {
			sb.WriteString(fmt.Sprintf("%s: %d\n", name[:3], dist[badge.Gold]))
		}
	}
	return strings.TrimSpace(sb.String())
}

func renderMilestonePush(e event.Event) string {
	return fmt.Sprintf("🎉 <b>Milestone achieved!</b>\n%s %s: %d-day streak",
		e.MilestoneEmoji, escape(e.MilestoneName), e.MilestoneDays)
}

func renderSettings(user *model.User) string {
	tz := user.Timezone
	if tz == "" {
		tz = "server default"
	}
	clock := "24h"
	if user.Use12HourClock {
		clock = "12h"
	}
	return fmt.Sprintf("⚙️ <b>Settings</b>\nTimezone: %s\nFreeze tokens per month: %d\nClock: %s\n\n"+
		"Change with <code>/settings tz Europe/Berlin</code>, <code>/settings tokens 2</code> or <code>/settings clock 12h</code>.",
		escape(tz), user.FreezeTokensPerMonth, clock)
}
