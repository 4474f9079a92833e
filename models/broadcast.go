// models/broadcast.go
package models

import "time"

type BroadcastStatus string

const (
	BroadcastStatusRunning  BroadcastStatus = "running"
	BroadcastStatusFinished BroadcastStatus = "finished"
	BroadcastStatusFailed   BroadcastStatus = "failed"
)

// Broadcast is the audit row of one operator announcement.
type Broadcast struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Text        string          `gorm:"type:text;not null" json:"text"`
	RequestedBy string          `json:"requested_by"`
	Status      BroadcastStatus `gorm:"type:varchar(16);not null;default:'running'" json:"status"`
	Recipients  int             `json:"recipients"`
	Sent        int             `json:"sent"`
	Failed      int             `json:"failed"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}
