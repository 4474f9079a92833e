// models/promo_code.go
package models

import "time"

// PromoCode is an issued reward code (promo_codes/{code}).
// Code is stored uppercase so lookups are case-insensitive.
type PromoCode struct {
	Code         string     `gorm:"primaryKey;type:varchar(32)" json:"code"`
	TelegramUID  string     `gorm:"type:varchar(32);not null;index:idx_promo_owner_version" json:"telegram_uid"`
	TelegramName string     `json:"telegram_name"`
	TaskVersion  int        `gorm:"not null;index:idx_promo_owner_version" json:"task_version"`
	Coins        int        `gorm:"not null" json:"coins"`
	Used         bool       `gorm:"not null;default:false;index" json:"used"`
	UsedBy       *string    `json:"used_by,omitempty"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
