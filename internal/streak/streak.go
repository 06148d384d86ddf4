// Package streak implements the gold-streak state machine.
package streak

import (
	"momentum/internal/badge"
	"momentum/internal/datex"
)

const (
	MaxFreezeTokens     = 3
	DefaultMonthlyGrant = 1

	// bridgeGap is the distance between two gold days separated by one miss.
	bridgeGap = 2
)

// State is the part of a user's streak the engine reads and writes.
// LastCompletionDate is empty when unset.
type State struct {
	Current            int
	Longest            int
	LastCompletionDate string
	FreezeTokens       int
}

type Outcome string

const (
	Unchanged Outcome = "unchanged"
	Started   Outcome = "started"
	Continued Outcome = "continued"
	Bridged   Outcome = "bridged"
	Restarted Outcome = "restarted"
	Broken    Outcome = "broken"
)

type Transition struct {
	Old     State
	New     State
	Outcome Outcome
}

// Increased reports whether the current streak grew; only then are milestones checked.
func (t Transition) Increased() bool {
	return t.New.Current > t.Old.Current
}

func (t Transition) TokenUsed() bool {
	return t.Outcome == Bridged
}

// Apply folds the tier of date into s. prevDayGold tells whether date-1 has a
// gold summary.
func Apply(s State, date string, tier badge.Tier, prevDayGold bool) (Transition, error) {
	next := s

	if tier != badge.Gold {
		if s.Current == 0 {
			return Transition{Old: s, New: s, Outcome: Unchanged}, nil
		}
		next.Current = 0
		next.LastCompletionDate = date
		return Transition{Old: s, New: next, Outcome: Broken}, nil
	}

	var outcome Outcome
	switch {
	case prevDayGold:
		next.Current = s.Current + 1
		outcome = Continued
	case s.Current == 0 || s.LastCompletionDate == "":
		next.Current = 1
		outcome = Started
	default:
		gap, err := datex.DaysBetween(s.LastCompletionDate, date)
		if err != nil {
			return Transition{}, err
		}
		if gap == bridgeGap && s.FreezeTokens > 0 {
			next.FreezeTokens = s.FreezeTokens - 1
			next.Current = s.Current + 1
			outcome = Bridged
		} else {
			next.Current = 1
			outcome = Restarted
		}
	}

	next.LastCompletionDate = date
	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	return Transition{Old: s, New: next, Outcome: outcome}, nil
}

// Refill adds the monthly grant, capped at limit.
func Refill(tokens, grant, limit int) int {
	if grant <= 0 {
		grant = DefaultMonthlyGrant
	}
	if limit <= 0 {
		limit = MaxFreezeTokens
	}
	return min(tokens+grant, limit)
}
