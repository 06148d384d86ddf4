package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"momentum/internal/datex"
	"momentum/internal/metrics"
	"momentum/internal/repository"
)

// maxCatchUpDays bounds how far back an evaluation looks for days that
// ended without a summary.
const maxCatchUpDays = 366

// PeriodicReport says what one evaluation actually did. FinalizedDate is the
// day that just ended; CaughtUp lists the days summarized by this run, oldest first.
type PeriodicReport struct {
	UserID           uint
	FinalizedDate    string
	CaughtUp         []string
	BadgeAwarded     bool
	TokensRefreshed  bool
	OccurrencesAdded int
}

// PeriodicService is the single entry point for time-triggered work. Every
// step checks whether it already happened, so running it twice is harmless.
type PeriodicService struct {
	userRepo     *repository.UserRepository
	progressRepo *repository.ProgressRepository
	tasks        *TaskService
	progress     *ProgressService
	settings     Settings
	log          *zap.Logger
}

func NewPeriodicService(
	userRepo *repository.UserRepository,
	progressRepo *repository.ProgressRepository,
	tasks *TaskService,
	progress *ProgressService,
	settings Settings,
	log *zap.Logger,
) *PeriodicService {
	return &PeriodicService{
		userRepo:     userRepo,
		progressRepo: progressRepo,
		tasks:        tasks,
		progress:     progress,
		settings:     settings.withDefaults(),
		log:          log,
	}
}

// Evaluate extends recurring schedules, finalizes every day that ended
// without a summary since the last one and grants this month's freeze tokens.
func (s *PeriodicService) Evaluate(ctx context.Context, userID uint) (*PeriodicReport, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.settings.now(user.Location(s.settings.Location))
	report := &PeriodicReport{UserID: userID}

	added, err := s.tasks.ExtendHorizons(ctx, userID)
	if err != nil {
		return nil, err
	}
	report.OccurrencesAdded = added

	yesterday := datex.FormatDate(now.AddDate(0, 0, -1))
	report.FinalizedDate = yesterday
	if err := s.catchUp(ctx, userID, yesterday, report); err != nil {
		return nil, err
	}

	_, refreshed, err := s.progress.RefreshFreezeTokens(ctx, userID)
	if err != nil {
		return nil, err
	}
	report.TokensRefreshed = refreshed

	s.log.Debug("periodic evaluation",
		zap.Uint("user_id", userID),
		zap.String("finalized", yesterday),
		zap.Strings("caught_up", report.CaughtUp),
		zap.Bool("badge", report.BadgeAwarded),
		zap.Bool("tokens", report.TokensRefreshed),
		zap.Int("occurrences", report.OccurrencesAdded),
	)
	return report, nil
}

// catchUp summarizes, oldest first, every scheduled day after the latest
// summary up to and including through. Empty days stay unsummarized.
func (s *PeriodicService) catchUp(ctx context.Context, userID uint, through string, report *PeriodicReport) error {
	latest, err := s.progressRepo.LatestSummaryDate(ctx, userID, through)
	if err != nil {
		return err
	}
	if latest == through {
		return nil
	}
	from, err := datex.AddDays(through, -(maxCatchUpDays - 1))
	if err != nil {
		return err
	}
	if latest != "" && latest >= from {
		if from, err = datex.AddDays(latest, 1); err != nil {
			return err
		}
	}

	rates, err := s.progress.RangeRates(ctx, userID, from, through)
	if err != nil {
		return err
	}
	for _, r := range rates {
		summary, err := s.progress.RecalculateDailyBadge(ctx, userID, r.Date)
		if err != nil {
			return err
		}
		if summary != nil {
			report.CaughtUp = append(report.CaughtUp, r.Date)
			report.BadgeAwarded = true
		}
	}
	return nil
}

// EvaluateAll runs Evaluate for every user. One user's failure does not stop the others.
func (s *PeriodicService) EvaluateAll(ctx context.Context) error {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		metrics.IncrementPeriodicRun("failed")
		return err
	}
	var errs []error
	for _, u := range users {
		if _, err := s.Evaluate(ctx, u.ID); err != nil {
			s.log.Error("periodic evaluation failed", zap.Uint("user_id", u.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		metrics.IncrementPeriodicRun("failed")
		return errors.Join(errs...)
	}
	metrics.IncrementPeriodicRun("success")
	return nil
}
