package model

import "time"

const NotificationMilestone = "milestone"

// MilestoneAchievement records one crossing of a streak threshold.
type MilestoneAchievement struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index" json:"user_id"`
	Days       int       `gorm:"index" json:"days"`
	Name       string    `json:"name"`
	Emoji      string    `json:"emoji"`
	Tier       string    `json:"tier"`
	AchievedAt time.Time `json:"achieved_at"`
}

type NotificationData struct {
	Emoji string `json:"emoji"`
	Name  string `json:"name"`
	Tier  string `json:"tier"`
	Days  int    `json:"days"`
}

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"index" json:"user_id"`
	Type      string           `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      NotificationData `gorm:"serializer:json" json:"data"`
	Read      bool             `gorm:"default:false" json:"read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}
