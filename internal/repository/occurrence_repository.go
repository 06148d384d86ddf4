package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"momentum/internal/model"
)

// OccurrenceRepository reads and toggles scheduled occurrences.
type OccurrenceRepository struct {
	db *gorm.DB
}

func NewOccurrenceRepository(db *gorm.DB) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

// DayCount aggregates one date's occurrences.
type DayCount struct {
	Date      string
	Total     int
	Completed int
}

func (r *OccurrenceRepository) FindByID(ctx context.Context, userID uint, id string) (*model.Occurrence, error) {
	var occ model.Occurrence
	if err := r.db.WithContext(ctx).Preload("Task").
		Where("user_id = ? AND id = ?", userID, id).
		First(&occ).Error; err != nil {
		return nil, notFound(err)
	}
	return &occ, nil
}

func (r *OccurrenceRepository) ForDate(ctx context.Context, userID uint, date string) ([]model.Occurrence, error) {
	return r.ForRange(ctx, userID, date, date)
}

// ForRange returns occurrences with from <= date <= to, ordered by date and time.
func (r *OccurrenceRepository) ForRange(ctx context.Context, userID uint, from, to string) ([]model.Occurrence, error) {
	var occs []model.Occurrence
	if err := r.db.WithContext(ctx).Preload("Task").
		Where("user_id = ? AND scheduled_date BETWEEN ? AND ?", userID, from, to).
		Order("scheduled_date ASC, scheduled_time ASC").
		Find(&occs).Error; err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return occs, nil
}

// SetCompleted flips the completion flag; completedAt is cleared when completed is false.
func (r *OccurrenceRepository) SetCompleted(ctx context.Context, occ *model.Occurrence, completed bool, at time.Time) error {
	occ.Completed = completed
	if completed {
		occ.CompletedAt = &at
	} else {
		occ.CompletedAt = nil
	}
	if err := r.db.WithContext(ctx).Model(&model.Occurrence{}).
		Where("id = ?", occ.ID).
		Updates(map[string]interface{}{
			"completed":    occ.Completed,
			"completed_at": occ.CompletedAt,
		}).Error; err != nil {
		return fmt.Errorf("toggle occurrence: %w", err)
	}
	return nil
}

// DayCounts returns one entry per date in range that has at least one occurrence.
func (r *OccurrenceRepository) DayCounts(ctx context.Context, userID uint, from, to string) ([]DayCount, error) {
	var counts []DayCount
	if err := r.db.WithContext(ctx).Model(&model.Occurrence{}).
		Select("scheduled_date AS date, COUNT(*) AS total, SUM(CASE WHEN completed THEN 1 ELSE 0 END) AS completed").
		Where("user_id = ? AND scheduled_date BETWEEN ? AND ?", userID, from, to).
		Group("scheduled_date").
		Order("scheduled_date ASC").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count occurrences: %w", err)
	}
	return counts, nil
}

// CountForDate returns total and completed occurrences on date.
func (r *OccurrenceRepository) CountForDate(ctx context.Context, userID uint, date string) (DayCount, error) {
	counts, err := r.DayCounts(ctx, userID, date, date)
	if err != nil {
		return DayCount{}, err
	}
	if len(counts) == 0 {
		return DayCount{Date: date}, nil
	}
	return counts[0], nil
}
