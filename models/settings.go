// models/settings.go
package models

import "time"

// SettingsRowID is the primary key of the single bot_settings row.
const SettingsRowID = 1

// BotSettings holds process-wide operator configuration (bot_config/settings).
type BotSettings struct {
	ID          int       `gorm:"primaryKey;autoIncrement:false" json:"-"`
	TaskVersion int       `gorm:"not null" json:"task_version"`
	PromoCoins  int       `gorm:"not null" json:"promo_coins"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
