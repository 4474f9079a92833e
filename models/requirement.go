// models/requirement.go
package models

import "time"

// RequirementKind is the wire value stored for a task requirement.
type RequirementKind string

const (
	// RequirementKindChannel is a public channel whose membership can be checked live.
	RequirementKindChannel RequirementKind = "channel"
	// RequirementKindRequest is an invite-only destination; users self-report the join request.
	RequirementKindRequest RequirementKind = "request"
	// RequirementKindLink is an informational link with no completion gate.
	RequirementKindLink RequirementKind = "link"
)

// RequirementKinds lists the accepted kinds in the order operators see them.
var RequirementKinds = []RequirementKind{RequirementKindChannel, RequirementKindRequest, RequirementKindLink}

// Valid reports whether k is one of the known kinds.
func (k RequirementKind) Valid() bool {
	for _, known := range RequirementKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Requirement is one task of the active requirement set (bot_config/channels.list[]).
type Requirement struct {
	ID             string          `gorm:"primaryKey;type:varchar(128)" json:"id"`           // @username, -100xxx or a slug for links
	Position       int             `gorm:"not null;index" json:"position"`                   // set order
	DisplayName    string          `gorm:"not null" json:"name"`
	DestinationURL string          `gorm:"type:text;not null" json:"url"`
	Kind           RequirementKind `gorm:"type:varchar(16);not null;default:'channel'" json:"type"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
