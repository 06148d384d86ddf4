package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		pct  float64
		want Tier
	}{
		{100, Gold},
		{80, Gold},
		{79.999, Silver},
		{79.9, Silver},
		{70, Silver},
		{69.9, Bronze},
		{60, Bronze},
		{59.9, Shameful},
		{0, Shameful},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.pct), "pct=%v", tt.pct)
	}
}

func TestClassify_Stable(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, Classify(66.7), Classify(66.7))
	}
}

func TestDisplayTier_HasPlatinum(t *testing.T) {
	assert.Equal(t, Platinum, DisplayTier(95))
	assert.Equal(t, Gold, DisplayTier(94.9))
	assert.Equal(t, Shameful, DisplayTier(10))
	// the persisted table never yields platinum
	assert.Equal(t, Gold, Classify(100))
	assert.False(t, Platinum.Valid())
}

func TestTierMetadata(t *testing.T) {
	assert.Equal(t, "#FFD700", Gold.Color())
	assert.Equal(t, "🥉", Bronze.Emoji())
	assert.Equal(t, "#6B7280", Tier("unknown").Color())
}

func TestDistribution(t *testing.T) {
	d := NewDistribution()
	d.Add(Gold)
	d.Add(Gold)
	d.Add(Shameful)
	d.Add(Platinum)

	assert.Equal(t, 2, d[Gold])
	assert.Equal(t, 0, d[Silver])
	assert.Equal(t, 1, d[Shameful])
	assert.Len(t, d, 4)
}
