package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OccurrencesMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_occurrences_materialized_total",
			Help: "Occurrences created by recurrence expansion",
		},
		[]string{"source"}, // create, extend
	)

	OccurrenceToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_occurrence_toggles_total",
			Help: "Completion toggles by resulting state",
		},
		[]string{"state"}, // completed, pending
	)

	BadgesAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_badges_awarded_total",
			Help: "Daily badges written to the badge log",
		},
		[]string{"tier"},
	)

	StreakTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_streak_transitions_total",
			Help: "Streak state machine transitions by outcome",
		},
		[]string{"outcome"},
	)

	FreezeTokensConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "momentum_freeze_tokens_consumed_total",
			Help: "Freeze tokens spent bridging a missed day",
		},
	)

	MilestonesAwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_milestones_awarded_total",
			Help: "Milestone achievements recorded",
		},
		[]string{"tier"},
	)

	PeriodicRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "momentum_periodic_runs_total",
			Help: "Periodic evaluation runs by status",
		},
		[]string{"status"}, // success, failed
	)
)

func IncrementMaterialized(source string, n int) {
	OccurrencesMaterialized.WithLabelValues(source).Add(float64(n))
}

func IncrementToggle(completed bool) {
	state := "pending"
	if completed {
		state = "completed"
	}
	OccurrenceToggles.WithLabelValues(state).Inc()
}

func IncrementBadge(tier string) {
	BadgesAwarded.WithLabelValues(tier).Inc()
}

func IncrementStreakTransition(outcome string) {
	StreakTransitions.WithLabelValues(outcome).Inc()
}

func IncrementMilestone(tier string) {
	MilestonesAwarded.WithLabelValues(tier).Inc()
}

func IncrementPeriodicRun(status string) {
	PeriodicRuns.WithLabelValues(status).Inc()
}
