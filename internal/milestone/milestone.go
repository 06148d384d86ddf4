// Package milestone holds the fixed streak milestone catalog.
package milestone

import "fmt"

type Tier string

const (
	Early        Tier = "early"
	Intermediate Tier = "intermediate"
	Advanced     Tier = "advanced"
	Legendary    Tier = "legendary"
)

// Color is the accent used when rendering a milestone of this tier.
func (t Tier) Color() string {
	switch t {
	case Early:
		return "#3B82F6"
	case Intermediate:
		return "#8B5CF6"
	case Advanced:
		return "#F59E0B"
	default:
		return "#EF4444"
	}
}

type Milestone struct {
	Days  int
	Name  string
	Emoji string
	Tier  Tier
}

// Catalog is ordered by ascending Days.
var Catalog = []Milestone{
	{1, "First Flame", "🔥", Early},
	{2, "Spark Keeper", "✨", Early},
	{3, "Triple Threat", "⚡", Early},
	{5, "High Five Hero", "🙌", Early},
	{7, "Seven Samurai", "🗡️", Early},
	{10, "Perfect Ten", "💯", Early},
	{14, "Fortnight Fighter", "⚔️", Early},

	{21, "Habit Forger", "🔨", Intermediate},
	{30, "Thirty & Thriving", "🌟", Intermediate},
	{45, "Six Week Sultan", "👑", Intermediate},
	{50, "Half Century", "🎯", Intermediate},
	{60, "Two Month Titan", "💪", Intermediate},
	{75, "Quarter Year Champion", "🏆", Intermediate},

	{90, "Three Month Maestro", "🎼", Advanced},
	{125, "Consistency King/Queen", "👸", Advanced},
	{150, "Five Month Phoenix", "🦅", Advanced},
	{180, "Semester Supreme", "📚", Advanced},
	{200, "Bicentennial Boss", "💼", Advanced},
	{250, "Elite Executor", "⚜️", Advanced},
	{270, "Nine Month Noble", "🎖️", Advanced},

	{300, "Triple Century Legend", "🌠", Legendary},
	{365, "Year Long Yaksha", "🐉", Legendary},
	{400, "Quadruple Century Conqueror", "⚡", Legendary},
	{500, "Half Millennium Monarch", "👑", Legendary},
	{730, "Biennial Beast", "🦁", Legendary},
	{1000, "The Eternal Flame", "🔥", Legendary},
	{1095, "Three Year Overlord", "💀", Legendary},
	{1500, "Immortal", "∞", Legendary},
	{2000, "The Legend", "🌌", Legendary},
}

// Achieved returns every milestone with Days <= streak.
func Achieved(streak int) []Milestone {
	var out []Milestone
	for _, m := range Catalog {
		if m.Days > streak {
			break
		}
		out = append(out, m)
	}
	return out
}

// Check returns the highest milestone newly reached going from prev to next.
// Thresholds skipped over in the same jump are not reported separately.
func Check(prev, next int) (Milestone, bool) {
	before := Achieved(prev)
	after := Achieved(next)
	if len(after) > len(before) {
		return after[len(after)-1], true
	}
	return Milestone{}, false
}

// Current is the highest milestone reached by streak.
func Current(streak int) (Milestone, bool) {
	a := Achieved(streak)
	if len(a) == 0 {
		return Milestone{}, false
	}
	return a[len(a)-1], true
}

// Next is the first milestone still ahead of streak.
func Next(streak int) (Milestone, bool) {
	for _, m := range Catalog {
		if streak < m.Days {
			return m, true
		}
	}
	return Milestone{}, false
}

func Lookup(days int) (Milestone, bool) {
	for _, m := range Catalog {
		if m.Days == days {
			return m, true
		}
	}
	return Milestone{}, false
}

func (m Milestone) DayLabel() string {
	if m.Days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", m.Days)
}

// Message is the notification text for reaching m.
func (m Milestone) Message() string {
	return fmt.Sprintf("You've reached %s: %s!", m.DayLabel(), m.Name)
}
