package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"momentum/internal/event"
	"momentum/internal/metrics"
	"momentum/internal/milestone"
	"momentum/internal/model"
	"momentum/internal/repository"
)

const milestoneNotificationTitle = "🎉 Milestone Achieved!"

// MilestoneStatus is one catalog entry joined with the user's achievement history.
type MilestoneStatus struct {
	milestone.Milestone
	Achieved        bool
	ClaimCount      int
	FirstAchievedAt *time.Time
	LastAchievedAt  *time.Time
}

// MilestoneProgress describes where the current streak sits in the catalog.
type MilestoneProgress struct {
	Streak        int
	Current       *milestone.Milestone
	Next          *milestone.Milestone
	DaysRemaining int
}

type MilestoneService struct {
	repo         *repository.MilestoneRepository
	progressRepo *repository.ProgressRepository
	bus          *event.Bus
	settings     Settings
	log          *zap.Logger
}

func NewMilestoneService(
	repo *repository.MilestoneRepository,
	progressRepo *repository.ProgressRepository,
	bus *event.Bus,
	settings Settings,
	log *zap.Logger,
) *MilestoneService {
	return &MilestoneService{
		repo:         repo,
		progressRepo: progressRepo,
		bus:          bus,
		settings:     settings.withDefaults(),
		log:          log,
	}
}

// CheckAndAward records the highest milestone newly reached between the two
// streak values. It returns nil when nothing new was reached.
func (s *MilestoneService) CheckAndAward(ctx context.Context, userID uint, oldStreak, newStreak int) (*model.MilestoneAchievement, error) {
	m, ok := milestone.Check(oldStreak, newStreak)
	if !ok {
		return nil, nil
	}

	now := s.settings.Clock.Now()
	achievement := &model.MilestoneAchievement{
		UserID:     userID,
		Days:       m.Days,
		Name:       m.Name,
		Emoji:      m.Emoji,
		Tier:       string(m.Tier),
		AchievedAt: now,
	}
	notification := &model.Notification{
		UserID:  userID,
		Type:    model.NotificationMilestone,
		Title:   milestoneNotificationTitle,
		Message: m.Message(),
		Data: model.NotificationData{
			Emoji: m.Emoji,
			Name:  m.Name,
			Tier:  string(m.Tier),
			Days:  m.Days,
		},
		CreatedAt: now,
	}
	if err := s.repo.Award(ctx, achievement, notification); err != nil {
		return nil, err
	}

	metrics.IncrementMilestone(string(m.Tier))
	s.log.Info("milestone achieved",
		zap.Uint("user_id", userID),
		zap.Int("days", m.Days),
		zap.String("name", m.Name),
	)
	s.bus.Publish(event.Event{
		Type:           event.MilestoneAchieved,
		UserID:         userID,
		At:             now,
		Streak:         newStreak,
		MilestoneDays:  m.Days,
		MilestoneName:  m.Name,
		MilestoneEmoji: m.Emoji,
	})
	return achievement, nil
}

// GetAllMilestones returns the whole catalog in ascending order. A threshold
// re-crossed after a reset is counted once per crossing.
func (s *MilestoneService) GetAllMilestones(ctx context.Context, userID uint) ([]MilestoneStatus, error) {
	achievements, err := s.repo.Achievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	byDays := make(map[int][]model.MilestoneAchievement)
	for _, a := range achievements {
		byDays[a.Days] = append(byDays[a.Days], a)
	}

	out := make([]MilestoneStatus, 0, len(milestone.Catalog))
	for _, m := range milestone.Catalog {
		st := MilestoneStatus{Milestone: m}
		if claims := byDays[m.Days]; len(claims) > 0 {
			first := claims[0].AchievedAt
			last := claims[len(claims)-1].AchievedAt
			st.Achieved = true
			st.ClaimCount = len(claims)
			st.FirstAchievedAt = &first
			st.LastAchievedAt = &last
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *MilestoneService) Progress(ctx context.Context, userID uint) (*MilestoneProgress, error) {
	st, err := s.progressRepo.FindStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	return progressFor(st.CurrentStreak), nil
}

func progressFor(current int) *MilestoneProgress {
	p := &MilestoneProgress{Streak: current}
	if m, ok := milestone.Current(current); ok {
		p.Current = &m
	}
	if m, ok := milestone.Next(current); ok {
		p.Next = &m
		p.DaysRemaining = m.Days - current
	}
	return p
}

func (s *MilestoneService) Notifications(ctx context.Context, userID uint, limit int) ([]model.Notification, error) {
	return s.repo.Notifications(ctx, userID, limit)
}

func (s *MilestoneService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *MilestoneService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *MilestoneService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *MilestoneService) DeleteNotification(ctx context.Context, userID, notificationID uint) error {
	return s.repo.DeleteNotification(ctx, userID, notificationID)
}
