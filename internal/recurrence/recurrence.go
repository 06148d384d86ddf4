// Package recurrence expands recurrence rules into concrete scheduled slots.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"momentum/internal/common"
	"momentum/internal/datex"
)

type Kind string

const (
	Once         Kind = "once"
	Daily        Kind = "daily"
	SpecificDays Kind = "specific_days"
	Weekly       Kind = "weekly"
)

// DefaultHorizonDays bounds open-ended rules.
const DefaultHorizonDays = 90

func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case Once, Daily, SpecificDays, Weekly:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", common.ErrInvalidRule, raw)
	}
}

// Rule is the storage-independent view of a recurrence rule.
type Rule struct {
	Kind       Kind
	Days       []string
	StartDate  string
	EndDate    string
	Exceptions []string
}

// Slot is one expanded (date, time) pair.
type Slot struct {
	Date string
	Time string
}

// Validate checks the rule shape. An empty day set is valid and expands to nothing.
func (r Rule) Validate() error {
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	start, err := datex.ParseDate(r.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start date: %v", common.ErrInvalidRule, err)
	}
	if r.EndDate != "" {
		end, err := datex.ParseDate(r.EndDate)
		if err != nil {
			return fmt.Errorf("%w: end date: %v", common.ErrInvalidRule, err)
		}
		if end.Before(start) {
			return fmt.Errorf("%w: end date %s before start date %s", common.ErrInvalidRule, r.EndDate, r.StartDate)
		}
	}
	for _, d := range r.Days {
		if _, ok := datex.ParseWeekday(d); !ok {
			return fmt.Errorf("%w: unknown weekday %q", common.ErrInvalidRule, d)
		}
	}
	for _, ex := range r.Exceptions {
		if _, err := datex.ParseDate(ex); err != nil {
			return fmt.Errorf("%w: exception: %v", common.ErrInvalidRule, err)
		}
	}
	return nil
}

// HorizonEnd is the last date materialized for an open-ended rule when
// expanding at now: days calendar days counted from today inclusive.
func HorizonEnd(now time.Time, days int) string {
	if days <= 0 {
		days = DefaultHorizonDays
	}
	return datex.FormatDate(datex.Midnight(now).AddDate(0, 0, days-1))
}

// Expand produces one slot per matching date between the rule start and
// min(rule end, horizonEnd), inclusive.
func Expand(rule Rule, startTime, horizonEnd string) ([]Slot, error) {
	return ExpandAfter(rule, startTime, "", horizonEnd)
}

// ExpandAfter is Expand restricted to dates strictly after `after`.
// It is used to extend a rule that was already materialized up to `after`.
func ExpandAfter(rule Rule, startTime, after, horizonEnd string) ([]Slot, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if _, err := datex.TimeToMinutes(startTime); err != nil {
		return nil, fmt.Errorf("%w: start time: %v", common.ErrInvalidRule, err)
	}

	start, _ := datex.ParseDate(rule.StartDate)
	limit, err := datex.ParseDate(horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: horizon: %v", common.ErrInvalidRule, err)
	}
	if rule.EndDate != "" {
		end, _ := datex.ParseDate(rule.EndDate)
		if end.Before(limit) {
			limit = end
		}
	}

	from := start
	if after != "" {
		a, err := datex.ParseDate(after)
		if err != nil {
			return nil, fmt.Errorf("%w: materialized through: %v", common.ErrInvalidRule, err)
		}
		if next := a.AddDate(0, 0, 1); next.After(from) {
			from = next
		}
	}

	skip := make(map[string]struct{}, len(rule.Exceptions))
	for _, ex := range rule.Exceptions {
		skip[ex] = struct{}{}
	}

	if rule.Kind == Once {
		date := datex.FormatDate(start)
		if start.Before(from) || start.After(limit) {
			return nil, nil
		}
		if _, ok := skip[date]; ok {
			return nil, nil
		}
		return []Slot{{Date: date, Time: startTime}}, nil
	}

	days := weekdaySet(rule.Days)
	var slots []Slot
	for d := from; !d.After(limit); d = d.AddDate(0, 0, 1) {
		if !matches(rule.Kind, days, d) {
			continue
		}
		date := datex.FormatDate(d)
		if _, ok := skip[date]; ok {
			continue
		}
		slots = append(slots, Slot{Date: date, Time: startTime})
	}
	return slots, nil
}

// IsOpenEnded reports whether the rule needs periodic horizon extension.
func (r Rule) IsOpenEnded() bool {
	return r.Kind != Once && r.EndDate == ""
}

// Through is the last date the rule must be materialized to. Bounded and
// one-off rules run to their own last date; open-ended ones to horizonEnd.
func (r Rule) Through(horizonEnd string) string {
	switch {
	case r.IsOpenEnded():
		return horizonEnd
	case r.Kind == Once:
		return r.StartDate
	default:
		return r.EndDate
	}
}

func matches(kind Kind, days map[time.Weekday]struct{}, d time.Time) bool {
	switch kind {
	case Daily:
		return true
	case SpecificDays, Weekly:
		// weekly shares the weekday-membership semantics of specific_days
		_, ok := days[d.Weekday()]
		return ok
	default:
		return false
	}
}

func weekdaySet(names []string) map[time.Weekday]struct{} {
	set := make(map[time.Weekday]struct{}, len(names))
	for _, n := range names {
		if wd, ok := datex.ParseWeekday(n); ok {
			set[wd] = struct{}{}
		}
	}
	return set
}
