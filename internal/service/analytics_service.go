package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"momentum/internal/badge"
	"momentum/internal/common"
	"momentum/internal/datex"
	"momentum/internal/model"
)

// DayOfWeek maps English weekday names to a tier distribution.
type DayOfWeek map[string]badge.Distribution

func newDayOfWeek() DayOfWeek {
	out := make(DayOfWeek, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		out[d.String()] = badge.NewDistribution()
	}
	return out
}

func (w DayOfWeek) add(date string, tier badge.Tier) {
	t, err := datex.ParseDate(date)
	if err != nil {
		return
	}
	w[datex.WeekdayName(t)].Add(tier)
}

// Overview is everything the stats screen shows for one range.
type Overview struct {
	From                 string
	To                   string
	Rates                []Rate
	Distribution         badge.Distribution
	RealtimeDistribution badge.Distribution
	DayOfWeek            DayOfWeek
	Streak               *model.Streak
	Milestones           *MilestoneProgress
	AverageRate          float64
}

// AnalyticsService aggregates stored summaries and live occurrence data.
// Everything here is read-only.
type AnalyticsService struct {
	progress *ProgressService
}

func NewAnalyticsService(progress *ProgressService) *AnalyticsService {
	return &AnalyticsService{progress: progress}
}

func checkRange(from, to string) error {
	if _, err := datex.ParseDate(from); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidRule, err)
	}
	if _, err := datex.ParseDate(to); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidRule, err)
	}
	if from > to {
		return fmt.Errorf("%w: range %s..%s is reversed", common.ErrInvalidRule, from, to)
	}
	return nil
}

// Distribution counts stored summaries per tier.
func (s *AnalyticsService) Distribution(ctx context.Context, userID uint, from, to string) (badge.Distribution, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	summaries, err := s.progress.Summaries(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	d := badge.NewDistribution()
	for _, sm := range summaries {
		d.Add(badge.Tier(sm.BadgeTier))
	}
	return d, nil
}

func (s *AnalyticsService) DayOfWeek(ctx context.Context, userID uint, from, to string) (DayOfWeek, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	summaries, err := s.progress.Summaries(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	w := newDayOfWeek()
	for _, sm := range summaries {
		w.add(sm.Date, badge.Tier(sm.BadgeTier))
	}
	return w, nil
}

// RealtimeDistribution classifies each day straight from its occurrences,
// including days that never got a summary.
func (s *AnalyticsService) RealtimeDistribution(ctx context.Context, userID uint, from, to string) (badge.Distribution, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	rates, err := s.progress.RangeRates(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	d := badge.NewDistribution()
	for _, r := range rates {
		d.Add(r.Tier)
	}
	return d, nil
}

func (s *AnalyticsService) RealtimeDayOfWeek(ctx context.Context, userID uint, from, to string) (DayOfWeek, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	rates, err := s.progress.RangeRates(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	w := newDayOfWeek()
	for _, r := range rates {
		w.add(r.Date, r.Tier)
	}
	return w, nil
}

// Overview loads the independent parts of the stats screen concurrently.
func (s *AnalyticsService) Overview(ctx context.Context, userID uint, from, to string) (*Overview, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	out := &Overview{From: from, To: to}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rates, err := s.progress.RangeRates(gctx, userID, from, to)
		if err != nil {
			return err
		}
		out.Rates = rates
		out.RealtimeDistribution = badge.NewDistribution()
		var sum float64
		for _, r := range rates {
			out.RealtimeDistribution.Add(r.Tier)
			sum += r.Percentage
		}
		if len(rates) > 0 {
			out.AverageRate = roundRate(sum / float64(len(rates)))
		}
		return nil
	})
	g.Go(func() error {
		d, err := s.Distribution(gctx, userID, from, to)
		if err != nil {
			return err
		}
		out.Distribution = d
		return nil
	})
	g.Go(func() error {
		w, err := s.DayOfWeek(gctx, userID, from, to)
		if err != nil {
			return err
		}
		out.DayOfWeek = w
		return nil
	})
	g.Go(func() error {
		st, err := s.progress.GetStreak(gctx, userID)
		if err != nil {
			return err
		}
		out.Streak = st
		out.Milestones = progressFor(st.CurrentStreak)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
