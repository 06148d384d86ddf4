package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"momentum/internal/recurrence"
)

const DefaultTaskColor = "#2563EB"

// Task is a schedulable item. Deleted tasks keep their row with DeletedAt set.
type Task struct {
	ID          string          `gorm:"primaryKey;type:text" json:"id"`
	UserID      uint            `gorm:"index" json:"user_id"`
	CategoryID  *uint           `gorm:"index" json:"category_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
	Duration    int             `json:"duration"`
	Version     int             `gorm:"default:1" json:"version"`
	DeletedAt   *time.Time      `gorm:"index" json:"deleted_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Category    *Category       `json:"-"`
	Recurrence  *RecurrenceRule `gorm:"foreignKey:TaskID" json:"-"`
}

func (t *Task) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Color == "" {
		t.Color = DefaultTaskColor
	}
	if t.Version == 0 {
		t.Version = 1
	}
	return nil
}

// RecurrenceRule belongs to exactly one task.
type RecurrenceRule struct {
	ID                  string    `gorm:"primaryKey;type:text" json:"id"`
	TaskID              string    `gorm:"uniqueIndex;type:text" json:"task_id"`
	Kind                string    `json:"kind"`
	Days                []string  `gorm:"serializer:json" json:"days"`
	StartDate           string    `json:"start_date"`
	EndDate             *string   `json:"end_date"`
	Exceptions          []string  `gorm:"serializer:json" json:"exceptions"`
	StartTime           string    `json:"start_time"`
	MaterializedThrough string    `json:"materialized_through"`
	CreatedAt           time.Time `json:"created_at"`
}

func (r *RecurrenceRule) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Rule converts the stored row into the expander's representation.
func (r RecurrenceRule) Rule() recurrence.Rule {
	rule := recurrence.Rule{
		Kind:       recurrence.Kind(r.Kind),
		Days:       r.Days,
		StartDate:  r.StartDate,
		Exceptions: r.Exceptions,
	}
	if r.EndDate != nil {
		rule.EndDate = *r.EndDate
	}
	return rule
}

// Occurrence is one scheduled instance of a task.
type Occurrence struct {
	ID            string     `gorm:"primaryKey;type:text" json:"id"`
	TaskID        string     `gorm:"type:text;uniqueIndex:idx_occurrence_task_date,priority:1" json:"task_id"`
	UserID        uint       `gorm:"index:idx_occurrence_user_date,priority:1" json:"user_id"`
	ScheduledDate string     `gorm:"uniqueIndex:idx_occurrence_task_date,priority:2;index:idx_occurrence_user_date,priority:2" json:"scheduled_date"`
	ScheduledTime string     `json:"scheduled_time"`
	Completed     bool       `gorm:"default:false" json:"completed"`
	CompletedAt   *time.Time `json:"completed_at"`
	Skipped       bool       `gorm:"default:false" json:"skipped"`
	IsException   bool       `gorm:"default:false" json:"is_exception"`
	CreatedAt     time.Time  `json:"created_at"`
	Task          *Task      `gorm:"foreignKey:TaskID" json:"-"`
}

func (o *Occurrence) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
