package service

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"momentum/internal/badge"
	"momentum/internal/common"
	"momentum/internal/datex"
	"momentum/internal/event"
	"momentum/internal/metrics"
	"momentum/internal/model"
	"momentum/internal/repository"
	"momentum/internal/streak"
)

// Rate is the completion picture of one date computed from its occurrences.
type Rate struct {
	Date       string
	Completed  int
	Total      int
	Percentage float64
	Tier       badge.Tier
}

func rateOf(c repository.DayCount) Rate {
	pct := 100 * float64(c.Completed) / float64(c.Total)
	return Rate{
		Date:       c.Date,
		Completed:  c.Completed,
		Total:      c.Total,
		Percentage: pct,
		Tier:       badge.Classify(pct),
	}
}

func roundRate(pct float64) float64 {
	return math.Round(pct*10) / 10
}

// ProgressService owns daily summaries, the badge log and the streak.
type ProgressService struct {
	occurrenceRepo *repository.OccurrenceRepository
	progressRepo   *repository.ProgressRepository
	userRepo       *repository.UserRepository
	milestones     *MilestoneService
	bus            *event.Bus
	settings       Settings
	log            *zap.Logger

	locks userLocks
}

func NewProgressService(
	occurrenceRepo *repository.OccurrenceRepository,
	progressRepo *repository.ProgressRepository,
	userRepo *repository.UserRepository,
	milestones *MilestoneService,
	bus *event.Bus,
	settings Settings,
	log *zap.Logger,
) *ProgressService {
	return &ProgressService{
		occurrenceRepo: occurrenceRepo,
		progressRepo:   progressRepo,
		userRepo:       userRepo,
		milestones:     milestones,
		bus:            bus,
		settings:       settings.withDefaults(),
		log:            log,
	}
}

// Rate returns nil when date has no occurrences; that is not a 0% day.
func (s *ProgressService) Rate(ctx context.Context, userID uint, date string) (*Rate, error) {
	if _, err := datex.ParseDate(date); err != nil {
		return nil, err
	}
	c, err := s.occurrenceRepo.CountForDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if c.Total == 0 {
		return nil, nil
	}
	r := rateOf(c)
	return &r, nil
}

// RangeRates returns one entry per date in [from, to] with at least one occurrence.
func (s *ProgressService) RangeRates(ctx context.Context, userID uint, from, to string) ([]Rate, error) {
	counts, err := s.occurrenceRepo.DayCounts(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]Rate, 0, len(counts))
	for _, c := range counts {
		if c.Total == 0 {
			continue
		}
		out = append(out, rateOf(c))
	}
	return out, nil
}

// RecalculateDailyBadge recomputes the summary of date from its occurrences.
// The streak is folded only when the summary is new or its tier changed.
// Returns nil, nil when date has no occurrences; a stale summary is removed.
func (s *ProgressService) RecalculateDailyBadge(ctx context.Context, userID uint, date string) (*model.DailySummary, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	if _, err := s.progressRepo.FindStreak(ctx, userID); err != nil {
		return nil, err
	}

	rate, err := s.Rate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	existing, err := s.progressRepo.FindSummary(ctx, userID, date)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if rate == nil {
		if existing != nil {
			if err := s.progressRepo.DeleteSummary(ctx, userID, date); err != nil {
				return nil, err
			}
			s.bus.Publish(event.Event{Type: event.ProgressChanged, UserID: userID, Date: date})
		}
		return nil, nil
	}

	summary := existing
	if summary == nil {
		summary = &model.DailySummary{UserID: userID, Date: date}
	}
	previousTier := summary.BadgeTier
	summary.TotalTasks = rate.Total
	summary.CompletedTasks = rate.Completed
	summary.CompletionRate = roundRate(rate.Percentage)
	summary.BadgeTier = string(rate.Tier)
	if err := s.progressRepo.SaveSummary(ctx, summary); err != nil {
		return nil, err
	}

	if existing == nil || previousTier != summary.BadgeTier {
		if err := s.progressRepo.AppendBadge(ctx, &model.Badge{
			UserID:    userID,
			Date:      date,
			Tier:      summary.BadgeTier,
			AwardedAt: s.settings.Clock.Now(),
		}); err != nil {
			return nil, err
		}
		metrics.IncrementBadge(summary.BadgeTier)

		if err := s.foldStreak(ctx, userID, date, rate.Tier); err != nil {
			return nil, err
		}
	}

	s.bus.Publish(event.Event{Type: event.ProgressChanged, UserID: userID, Date: date})
	return summary, nil
}

// foldStreak applies one transition of the streak machine for date.
func (s *ProgressService) foldStreak(ctx context.Context, userID uint, date string, tier badge.Tier) error {
	row, err := s.progressRepo.FindStreak(ctx, userID)
	if err != nil {
		return err
	}

	prevGold := false
	if tier == badge.Gold {
		yesterday, err := datex.AddDays(date, -1)
		if err != nil {
			return err
		}
		prev, err := s.progressRepo.FindSummary(ctx, userID, yesterday)
		switch {
		case err == nil:
			prevGold = prev.BadgeTier == string(badge.Gold)
		case !errors.Is(err, common.ErrNotFound):
			return err
		}
	}

	tr, err := streak.Apply(row.State(), date, tier, prevGold)
	if err != nil {
		return err
	}
	metrics.IncrementStreakTransition(string(tr.Outcome))
	if tr.Outcome == streak.Unchanged {
		return nil
	}

	row.SetState(tr.New)
	if err := s.progressRepo.SaveStreak(ctx, row); err != nil {
		return err
	}
	if tr.TokenUsed() {
		metrics.FreezeTokensConsumed.Inc()
	}
	s.log.Debug("streak transition",
		zap.Uint("user_id", userID),
		zap.String("date", date),
		zap.String("outcome", string(tr.Outcome)),
		zap.Int("current", tr.New.Current),
	)
	s.bus.Publish(event.Event{Type: event.StreakChanged, UserID: userID, Date: date, Streak: tr.New.Current})

	if tr.Increased() && s.milestones != nil {
		if _, err := s.milestones.CheckAndAward(ctx, userID, tr.Old.Current, tr.New.Current); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProgressService) GetStreak(ctx context.Context, userID uint) (*model.Streak, error) {
	return s.progressRepo.FindStreak(ctx, userID)
}

func (s *ProgressService) Summary(ctx context.Context, userID uint, date string) (*model.DailySummary, error) {
	return s.progressRepo.FindSummary(ctx, userID, date)
}

func (s *ProgressService) Summaries(ctx context.Context, userID uint, from, to string) ([]model.DailySummary, error) {
	return s.progressRepo.SummariesInRange(ctx, userID, from, to)
}

func (s *ProgressService) Badges(ctx context.Context, userID uint, limit int) ([]model.Badge, error) {
	return s.progressRepo.Badges(ctx, userID, limit)
}

// RefreshFreezeTokens grants the user's monthly tokens, capped at the
// configured maximum. It grants at most once per calendar month in the
// user's timezone and reports whether this call did.
func (s *ProgressService) RefreshFreezeTokens(ctx context.Context, userID uint) (*model.Streak, bool, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	row, err := s.progressRepo.FindStreak(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	now := s.settings.now(user.Location(s.settings.Location))
	if row.LastTokenRefresh != nil && datex.MonthKey(row.LastTokenRefresh.In(now.Location())) == datex.MonthKey(now) {
		return row, false, nil
	}

	grant := user.FreezeTokensPerMonth
	if grant <= 0 {
		grant = s.settings.TokensPerMonth
	}
	row.FreezeTokens = streak.Refill(row.FreezeTokens, grant, s.settings.MaxFreezeTokens)
	row.LastTokenRefresh = &now
	if err := s.progressRepo.SaveStreak(ctx, row); err != nil {
		return nil, false, err
	}

	s.log.Info("freeze tokens refreshed", zap.Uint("user_id", userID), zap.Int("tokens", row.FreezeTokens))
	s.bus.Publish(event.Event{Type: event.StreakChanged, UserID: userID, Streak: row.CurrentStreak})
	return row, true, nil
}
