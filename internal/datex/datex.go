// Package datex holds the calendar arithmetic shared by the recurrence and
// progress packages. Dates travel as "2006-01-02" strings and times of day
// as "15:04" strings; both are interpreted without a zone.
package datex

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Clock abstracts time.Now so services can be tested on fixed dates.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// ParseDate parses a calendar date into a UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns the calendar date of now in loc.
func Today(c Clock, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return FormatDate(c.Now().In(loc))
}

// Midnight drops the time-of-day component, keeping the calendar date of t.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// DaysBetween returns to - from in whole calendar days.
func DaysBetween(from, to string) (int, error) {
	a, err := ParseDate(from)
	if err != nil {
		return 0, err
	}
	b, err := ParseDate(to)
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a).Hours() / 24), nil
}

// WeekdayName returns the English day name, e.g. "Monday".
func WeekdayName(t time.Time) string {
	return t.Weekday().String()
}

// ParseWeekday accepts full or three-letter English names in any case.
func ParseWeekday(raw string) (time.Weekday, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if value == name || (len(value) == 3 && strings.HasPrefix(name, value)) {
			return d, true
		}
	}
	return 0, false
}

// TimeToMinutes converts "HH:MM" to minutes since midnight.
func TimeToMinutes(raw string) (int, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func MinutesToTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FormatClock renders "HH:MM" in 24h or 12h ("3:04 PM") form.
func FormatClock(raw string, use24Hour bool) (string, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse time %q: %w", raw, err)
	}
	if use24Hour {
		return t.Format(TimeLayout), nil
	}
	return t.Format("3:04 PM"), nil
}

// WeekStart returns the first day of the week containing date.
func WeekStart(date time.Time, firstDay time.Weekday) time.Time {
	d := Midnight(date)
	offset := (int(d.Weekday()) - int(firstDay) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

func WeekDates(date time.Time, firstDay time.Weekday) []string {
	start := WeekStart(date, firstDay)
	out := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		out = append(out, FormatDate(start.AddDate(0, 0, i)))
	}
	return out
}

// MonthKey identifies the calendar month of t, e.g. "2024-01".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
