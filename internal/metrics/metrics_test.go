package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(OccurrencesMaterialized.WithLabelValues("create"))
	IncrementMaterialized("create", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(OccurrencesMaterialized.WithLabelValues("create")))

	before = testutil.ToFloat64(OccurrenceToggles.WithLabelValues("completed"))
	IncrementToggle(true)
	assert.Equal(t, before+1, testutil.ToFloat64(OccurrenceToggles.WithLabelValues("completed")))

	before = testutil.ToFloat64(BadgesAwarded.WithLabelValues("gold"))
	IncrementBadge("gold")
	assert.Equal(t, before+1, testutil.ToFloat64(BadgesAwarded.WithLabelValues("gold")))
}
