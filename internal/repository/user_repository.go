package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"momentum/internal/common"
	"momentum/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertFromTelegram finds or creates a user based on TelegramID and updates basic profile info.
// A new user gets its streak singleton in the same transaction; now marks the
// month whose freeze tokens count as already granted.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string, now time.Time) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			TelegramID:           telegramID,
			FirstName:            firstName,
			LastName:             lastName,
			Username:             username,
			FreezeTokensPerMonth: 1,
		}
		if err := r.create(ctx, &user, now); err != nil {
			return nil, err
		}
		return &user, nil
	default:
		return nil, fmt.Errorf("find user: %w", err)
	}
}

func (r *UserRepository) create(ctx context.Context, user *model.User, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		st := model.Streak{UserID: user.ID, LastTokenRefresh: &now}
		if err := tx.Create(&st).Error; err != nil {
			return fmt.Errorf("init streak: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateSettings changes the timezone, monthly freeze grant and clock format.
func (r *UserRepository) UpdateSettings(ctx context.Context, userID uint, timezone string, tokensPerMonth int, use12Hour bool) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Select("Timezone", "FreezeTokensPerMonth", "Use12HourClock").
		Updates(model.User{Timezone: timezone, FreezeTokensPerMonth: tokensPerMonth, Use12HourClock: use12Hour})
	if res.Error != nil {
		return fmt.Errorf("update settings: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}
