package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"momentum/internal/model"
)

// Snapshot is the full content of every table.
type Snapshot struct {
	Version         int                          `json:"version"`
	ExportDate      time.Time                    `json:"exportDate"`
	Users           []model.User                 `json:"users"`
	Categories      []model.Category             `json:"categories"`
	Tasks           []model.Task                 `json:"tasks"`
	RecurrenceRules []model.RecurrenceRule       `json:"recurrenceRules"`
	Occurrences     []model.Occurrence           `json:"occurrences"`
	DailySummaries  []model.DailySummary         `json:"dailySummaries"`
	Badges          []model.Badge                `json:"badges"`
	Streaks         []model.Streak               `json:"streaks"`
	Milestones      []model.MilestoneAchievement `json:"milestones"`
	Notifications   []model.Notification         `json:"notifications"`
}

// SnapshotRepository dumps and restores the whole store.
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Dump(ctx context.Context) (*Snapshot, error) {
	db := r.db.WithContext(ctx)
	s := &Snapshot{}
	targets := []struct {
		name string
		dest interface{}
	}{
		{"users", &s.Users},
		{"categories", &s.Categories},
		{"tasks", &s.Tasks},
		{"recurrence rules", &s.RecurrenceRules},
		{"occurrences", &s.Occurrences},
		{"daily summaries", &s.DailySummaries},
		{"badges", &s.Badges},
		{"streaks", &s.Streaks},
		{"milestones", &s.Milestones},
		{"notifications", &s.Notifications},
	}
	for _, t := range targets {
		if err := db.Find(t.dest).Error; err != nil {
			return nil, fmt.Errorf("dump %s: %w", t.name, err)
		}
	}
	return s, nil
}

// Restore clears every table and inserts the snapshot rows in one transaction.
func (r *SnapshotRepository) Restore(ctx context.Context, s *Snapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		models := Models()
		for i := len(models) - 1; i >= 0; i-- {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(models[i]).Error; err != nil {
				return fmt.Errorf("clear table: %w", err)
			}
		}

		batches := []struct {
			name string
			rows interface{}
			n    int
		}{
			{"users", &s.Users, len(s.Users)},
			{"categories", &s.Categories, len(s.Categories)},
			{"tasks", &s.Tasks, len(s.Tasks)},
			{"recurrence rules", &s.RecurrenceRules, len(s.RecurrenceRules)},
			{"occurrences", &s.Occurrences, len(s.Occurrences)},
			{"daily summaries", &s.DailySummaries, len(s.DailySummaries)},
			{"badges", &s.Badges, len(s.Badges)},
			{"streaks", &s.Streaks, len(s.Streaks)},
			{"milestones", &s.Milestones, len(s.Milestones)},
			{"notifications", &s.Notifications, len(s.Notifications)},
		}
		for _, b := range batches {
			if b.n == 0 {
				continue
			}
			if err := tx.Omit(clause.Associations).CreateInBatches(b.rows, occurrenceBatchSize).Error; err != nil {
				return fmt.Errorf("restore %s: %w", b.name, err)
			}
		}
		return nil
	})
}
