// models/user_request.go
package models

import (
	"fmt"
	"time"
)

// UserRequest records that a user claimed to have sent a join request
// (user_requests/{userId}_{channelId}_{version}). Rows are never updated.
type UserRequest struct {
	ID          string    `gorm:"primaryKey;type:varchar(200)" json:"id"`
	TelegramUID string    `gorm:"type:varchar(32);not null;index" json:"telegram_uid"`
	ChannelID   string    `gorm:"type:varchar(128);not null" json:"channel_id"`
	TaskVersion int       `gorm:"not null" json:"task_version"`
	RequestedAt time.Time `gorm:"autoCreateTime" json:"requested_at"`
}

// UserRequestID builds the document key for an acknowledgment.
func UserRequestID(telegramUID, channelID string, version int) string {
	return fmt.Sprintf("%s_%s_%d", telegramUID, channelID, version)
}
