// Package overlap detects time conflicts between scheduled occurrences on one date.
package overlap

import (
	"momentum/internal/datex"
)

// DefaultDuration applies to occurrences whose task is gone or has no duration.
const DefaultDuration = 60

// Span is a half-open [Start, End) range in minutes since midnight.
type Span struct {
	Start int
	End   int
}

func NewSpan(startTime string, duration int) (Span, error) {
	start, err := datex.TimeToMinutes(startTime)
	if err != nil {
		return Span{}, err
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return Span{Start: start, End: start + duration}, nil
}

// Intersects reports whether o overlaps s. Touching ends do not overlap.
func (s Span) Intersects(o Span) bool {
	startsInside := o.Start >= s.Start && o.Start < s.End
	endsInside := o.End > s.Start && o.End <= s.End
	covers := o.Start <= s.Start && o.End >= s.End
	return startsInside || endsInside || covers
}

// Scheduled is an existing occurrence as seen by the checker.
type Scheduled struct {
	OccurrenceID string
	TaskID       string
	Title        string
	Time         string
	Duration     int
}

// Find returns the entries of existing that intersect candidate, ignoring
// those of excludeTaskID. Entries with an unparsable time are skipped.
func Find(candidate Span, existing []Scheduled, excludeTaskID string) []Scheduled {
	var out []Scheduled
	for _, e := range existing {
		if excludeTaskID != "" && e.TaskID == excludeTaskID {
			continue
		}
		span, err := NewSpan(e.Time, e.Duration)
		if err != nil {
			continue
		}
		if candidate.Intersects(span) {
			out = append(out, e)
		}
	}
	return out
}
