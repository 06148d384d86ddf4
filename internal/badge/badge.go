// Package badge classifies a day's completion percentage into a tier.
package badge

type Tier string

const (
	Gold     Tier = "gold"
	Silver   Tier = "silver"
	Bronze   Tier = "bronze"
	Shameful Tier = "shameful"

	// Platinum only exists in the display table, see DisplayTier.
	Platinum Tier = "platinum"
)

// Tiers lists the persisted tiers, highest first.
var Tiers = []Tier{Gold, Silver, Bronze, Shameful}

type threshold struct {
	tier Tier
	min  float64
}

var canonical = []threshold{
	{Gold, 80},
	{Silver, 70},
	{Bronze, 60},
}

var display = append([]threshold{{Platinum, 95}}, canonical...)

// Classify returns the persisted tier for pct. Lower bounds are inclusive.
func Classify(pct float64) Tier {
	return classify(canonical, pct)
}

// DisplayTier uses the five-tier table with platinum at 95%. It is for
// presentation only; summaries and streaks use Classify.
func DisplayTier(pct float64) Tier {
	return classify(display, pct)
}

func classify(table []threshold, pct float64) Tier {
	for _, t := range table {
		if pct >= t.min {
			return t.tier
		}
	}
	return Shameful
}

func (t Tier) Valid() bool {
	switch t {
	case Gold, Silver, Bronze, Shameful:
		return true
	}
	return false
}

func (t Tier) Color() string {
	switch t {
	case Platinum:
		return "#E5E4E2"
	case Gold:
		return "#FFD700"
	case Silver:
		return "#C0C0C0"
	case Bronze:
		return "#CD7F32"
	default:
		return "#6B7280"
	}
}

func (t Tier) Emoji() string {
	switch t {
	case Platinum:
		return "💎"
	case Gold:
		return "🥇"
	case Silver:
		return "🥈"
	case Bronze:
		return "🥉"
	default:
		return "😔"
	}
}

// Distribution counts days per persisted tier.
type Distribution map[Tier]int

func NewDistribution() Distribution {
	d := make(Distribution, len(Tiers))
	for _, t := range Tiers {
		d[t] = 0
	}
	return d
}

func (d Distribution) Add(t Tier) {
	if t.Valid() {
		d[t]++
	}
}
