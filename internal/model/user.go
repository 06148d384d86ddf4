package model

import "time"

// User stores Telegram user metadata and progress settings.
type User struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	TelegramID           int64     `gorm:"uniqueIndex" json:"telegram_id"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	Username             string    `json:"username"`
	Timezone             string    `json:"timezone"`
	FreezeTokensPerMonth int       `gorm:"default:1" json:"freeze_tokens_per_month"`
	Use12HourClock       bool      `json:"use_12_hour_clock"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Location resolves the user's timezone, falling back to fallback.
func (u User) Location(fallback *time.Location) *time.Location {
	if u.Timezone != "" {
		if loc, err := time.LoadLocation(u.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.Local
	}
	return fallback
}
