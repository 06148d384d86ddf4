package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler(t *testing.T) {
	spec, err := buildDailySpec("07:30")
	require.NoError(t, err)
	assert.Equal(t, "0 30 7 * * *", spec)

	_, err = buildDailySpec("25:00")
	assert.Error(t, err)

	s := NewSchedulerService(time.UTC, zap.NewNop())
	_, err = s.ScheduleDaily("00:05", func() {})
	require.NoError(t, err)
	_, err = s.ScheduleInterval(5*time.Hour, func() {})
	require.NoError(t, err)
	_, err = s.ScheduleInterval(0, func() {})
	assert.Error(t, err)
	assert.Equal(t, 2, s.Entries())

	s.Start()
	s.Stop()
}
