// services/users.go
package services

import (
	"context"
	"errors"
	"strconv"

	"promo-task-bot/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRef is the platform identity of the person interacting with the bot.
type UserRef struct {
	ID           int64
	Name         string
	LanguageCode string
}

// UID is the string key used by every per-user table.
func (u UserRef) UID() string { return strconv.FormatInt(u.ID, 10) }

// EnsureUser upserts the bot_users row, refreshing name and language.
// Completion fields are never touched here.
func EnsureUser(ctx context.Context, db *gorm.DB, user UserRef) (*models.BotUser, error) {
	rec := models.BotUser{
		TelegramUID:  user.UID(),
		TelegramName: user.Name,
		LanguageCode: user.LanguageCode,
	}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"telegram_name", "language_code", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return nil, persistence("upsert user", err)
	}
	stored, err := loadUser(ctx, db, rec.TelegramUID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, persistence("upsert user", gorm.ErrRecordNotFound)
	}
	return stored, nil
}

// loadUser returns nil, nil when the user has never interacted with the bot.
func loadUser(ctx context.Context, db *gorm.DB, uid string) (*models.BotUser, error) {
	var user models.BotUser
	err := db.WithContext(ctx).Where("telegram_uid = ?", uid).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("load user", err)
	}
	return &user, nil
}
