// models/bot_user.go
package models

import "time"

// BotUser is the per-user completion record (bot_users/{userId}).
// CompletedVersion is nil until the first code is issued.
type BotUser struct {
	TelegramUID      string    `gorm:"primaryKey;type:varchar(32)" json:"telegram_uid"`
	TelegramName     string    `json:"telegram_name"`
	LanguageCode     string    `gorm:"type:varchar(16)" json:"language_code,omitempty"`
	CompletedVersion *int      `gorm:"index" json:"completed_version,omitempty"`
	LastCode         string    `gorm:"type:varchar(32)" json:"last_code,omitempty"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// CompletedFor reports whether the user already holds a code for version.
func (u *BotUser) CompletedFor(version int) bool {
	return u != nil && u.CompletedVersion != nil && *u.CompletedVersion == version
}

// CompletedAfter reports whether the user completed a version newer than version.
func (u *BotUser) CompletedAfter(version int) bool {
	return u != nil && u.CompletedVersion != nil && *u.CompletedVersion > version
}
