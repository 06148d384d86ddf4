package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"momentum/internal/common"
	"momentum/internal/model"
	"momentum/internal/recurrence"
)

const occurrenceBatchSize = 200

// TaskRepository handles tasks, their recurrence rules and materialized occurrences.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// CreateWithSchedule stores the task, its optional rule and the expanded occurrences atomically.
func (r *TaskRepository) CreateWithSchedule(ctx context.Context, task *model.Task, rule *model.RecurrenceRule, occurrences []model.Occurrence) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		if rule != nil {
			rule.TaskID = task.ID
			if err := tx.Create(rule).Error; err != nil {
				return fmt.Errorf("create recurrence: %w", err)
			}
			task.Recurrence = rule
		}
		for i := range occurrences {
			occurrences[i].TaskID = task.ID
			occurrences[i].UserID = task.UserID
		}
		if err := insertOccurrences(tx, occurrences); err != nil {
			return err
		}
		return nil
	})
}

func (r *TaskRepository) FindByID(ctx context.Context, userID uint, taskID string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).
		Preload("Recurrence").
		Preload("Category").
		Where("user_id = ? AND id = ? AND deleted_at IS NULL", userID, taskID).
		First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

func (r *TaskRepository) ListActive(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Preload("Recurrence").
		Preload("Category").
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update applies changes keyed by column and bumps the version counter.
func (r *TaskRepository) Update(ctx context.Context, userID uint, taskID string, changes map[string]interface{}) error {
	updates := make(map[string]interface{}, len(changes)+1)
	for k, v := range changes {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ? AND deleted_at IS NULL", userID, taskID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update task %s: %w", taskID, common.ErrNotFound)
	}
	return nil
}

// SoftDelete marks the task deleted and physically removes its occurrences.
func (r *TaskRepository) SoftDelete(ctx context.Context, userID uint, taskID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Task{}).
			Where("user_id = ? AND id = ? AND deleted_at IS NULL", userID, taskID).
			Update("deleted_at", at)
		if res.Error != nil {
			return fmt.Errorf("delete task: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("delete task %s: %w", taskID, common.ErrNotFound)
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Occurrence{}).Error; err != nil {
			return fmt.Errorf("delete occurrences: %w", err)
		}
		return nil
	})
}

// PendingRules returns rules of live tasks that still have dates to
// materialize: open-ended rules short of horizon, bounded rules short of
// their end date and one-off rules whose single date is not stored yet.
func (r *TaskRepository) PendingRules(ctx context.Context, userID uint, horizon string) ([]model.RecurrenceRule, error) {
	once := string(recurrence.Once)
	var rules []model.RecurrenceRule
	if err := r.db.WithContext(ctx).
		Select("recurrence_rules.*").
		Joins("JOIN tasks ON tasks.id = recurrence_rules.task_id").
		Where("tasks.user_id = ? AND tasks.deleted_at IS NULL", userID).
		Where(
			r.db.Where("recurrence_rules.kind = ? AND recurrence_rules.materialized_through < recurrence_rules.start_date", once).
				Or("recurrence_rules.kind <> ? AND recurrence_rules.materialized_through < COALESCE(recurrence_rules.end_date, ?)", once, horizon),
		).
		Order("recurrence_rules.start_date ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list pending rules: %w", err)
	}
	return rules, nil
}

// ExtendSchedule appends occurrences for a rule and records how far it is materialized.
func (r *TaskRepository) ExtendSchedule(ctx context.Context, rule *model.RecurrenceRule, userID uint, occurrences []model.Occurrence, through string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range occurrences {
			occurrences[i].TaskID = rule.TaskID
			occurrences[i].UserID = userID
		}
		if err := insertOccurrences(tx, occurrences); err != nil {
			return err
		}
		if err := tx.Model(rule).Update("materialized_through", through).Error; err != nil {
			return fmt.Errorf("update rule horizon: %w", err)
		}
		return nil
	})
}

// insertOccurrences ignores rows that already exist for the same task and date.
func insertOccurrences(tx *gorm.DB, occurrences []model.Occurrence) error {
	if len(occurrences) == 0 {
		return nil
	}
	if err := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(occurrences, occurrenceBatchSize).Error; err != nil {
		return fmt.Errorf("insert occurrences: %w", err)
	}
	return nil
}
