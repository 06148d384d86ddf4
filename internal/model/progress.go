package model

import (
	"time"

	"momentum/internal/streak"
)

// DailySummary is the current completion picture of one user-day.
type DailySummary struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UserID         uint      `gorm:"uniqueIndex:idx_summary_user_date" json:"user_id"`
	Date           string    `gorm:"uniqueIndex:idx_summary_user_date" json:"date"`
	TotalTasks     int       `json:"total_tasks"`
	CompletedTasks int       `json:"completed_tasks"`
	CompletionRate float64   `json:"completion_rate"`
	BadgeTier      string    `json:"badge_tier"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Badge is an append-only award log entry.
type Badge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Date      string    `gorm:"index" json:"date"`
	Tier      string    `json:"tier"`
	AwardedAt time.Time `json:"awarded_at"`
}

// Streak is the per-user streak singleton.
type Streak struct {
	UserID             uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CurrentStreak      int        `json:"current_streak"`
	LongestStreak      int        `json:"longest_streak"`
	LastCompletionDate *string    `json:"last_completion_date"`
	FreezeTokens       int        `json:"freeze_tokens"`
	LastTokenRefresh   *time.Time `json:"last_token_refresh"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (s Streak) State() streak.State {
	st := streak.State{
		Current:      s.CurrentStreak,
		Longest:      s.LongestStreak,
		FreezeTokens: s.FreezeTokens,
	}
	if s.LastCompletionDate != nil {
		st.LastCompletionDate = *s.LastCompletionDate
	}
	return st
}

func (s *Streak) SetState(st streak.State) {
	s.CurrentStreak = st.Current
	s.LongestStreak = st.Longest
	s.FreezeTokens = st.FreezeTokens
	if st.LastCompletionDate == "" {
		s.LastCompletionDate = nil
	} else {
		date := st.LastCompletionDate
		s.LastCompletionDate = &date
	}
}
