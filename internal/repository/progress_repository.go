package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"momentum/internal/common"
	"momentum/internal/model"
)

// ProgressRepository stores daily summaries, the badge log and streaks.
type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) FindSummary(ctx context.Context, userID uint, date string) (*model.DailySummary, error) {
	var s model.DailySummary
	if err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// LatestSummaryDate returns the most recent summarized date on or before
// date, or "" when there is none.
func (r *ProgressRepository) LatestSummaryDate(ctx context.Context, userID uint, date string) (string, error) {
	var s model.DailySummary
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date <= ?", userID, date).
		Order("date DESC").
		Take(&s).Error
	switch {
	case err == nil:
		return s.Date, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", nil
	default:
		return "", fmt.Errorf("latest summary: %w", err)
	}
}

// SaveSummary inserts a new summary (zero ID) or updates an existing one.
func (r *ProgressRepository) SaveSummary(ctx context.Context, s *model.DailySummary) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (r *ProgressRepository) DeleteSummary(ctx context.Context, userID uint, date string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).Delete(&model.DailySummary{}).Error; err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	return nil
}

func (r *ProgressRepository) SummariesInRange(ctx context.Context, userID uint, from, to string) ([]model.DailySummary, error) {
	var out []model.DailySummary
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND date BETWEEN ? AND ?", userID, from, to).
		Order("date ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return out, nil
}

func (r *ProgressRepository) AppendBadge(ctx context.Context, b *model.Badge) error {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("append badge: %w", err)
	}
	return nil
}

func (r *ProgressRepository) Badges(ctx context.Context, userID uint, limit int) ([]model.Badge, error) {
	var out []model.Badge
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("awarded_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	return out, nil
}

// FindStreak returns common.ErrPrecondition when the singleton is missing.
func (r *ProgressRepository) FindStreak(ctx context.Context, userID uint) (*model.Streak, error) {
	var s model.Streak
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error; err != nil {
		if err = notFound(err); errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("streak for user %d: %w", userID, common.ErrPrecondition)
		}
		return nil, err
	}
	return &s, nil
}

func (r *ProgressRepository) SaveStreak(ctx context.Context, s *model.Streak) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("save streak: %w", err)
	}
	return nil
}
