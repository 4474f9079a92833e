// services/progress.go
package services

import (
	"context"

	"promo-task-bot/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClaimStatus int

const (
	ClaimNothingPending ClaimStatus = iota
	ClaimRecorded
	// ClaimAlreadyRecorded means a concurrent claim wrote the same row first.
	ClaimAlreadyRecorded
)

type ClaimResult struct {
	Status      ClaimStatus
	Requirement *models.Requirement
	// Remaining is the number of acknowledgments still pending after this claim.
	Remaining int
}

// ProgressTracker records self-reported join requests, one requirement per claim.
type ProgressTracker struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewProgressTracker(db *gorm.DB, log *zap.Logger) *ProgressTracker {
	return &ProgressTracker{DB: db, Log: log}
}

func (t *ProgressTracker) HasAcknowledged(ctx context.Context, telegramUID, requirementID string, version int) (bool, error) {
	var count int64
	err := t.DB.WithContext(ctx).Model(&models.UserRequest{}).
		Where("id = ?", models.UserRequestID(telegramUID, requirementID, version)).
		Count(&count).Error
	if err != nil {
		return false, persistence("lookup acknowledgment", err)
	}
	return count > 0, nil
}

// Acknowledged returns the requirement ids the user acknowledged under version.
func (t *ProgressTracker) Acknowledged(ctx context.Context, telegramUID string, version int) (map[string]bool, error) {
	var ids []string
	err := t.DB.WithContext(ctx).Model(&models.UserRequest{}).
		Where("telegram_uid = ? AND task_version = ?", telegramUID, version).
		Pluck("channel_id", &ids).Error
	if err != nil {
		return nil, persistence("list acknowledgments", err)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	return seen, nil
}

// Pending lists acknowledgment requirements without a record, in set order.
func (t *ProgressTracker) Pending(ctx context.Context, user UserRef, cfg TaskConfig) ([]models.Requirement, error) {
	acked, err := t.Acknowledged(ctx, user.UID(), cfg.Version)
	if err != nil {
		return nil, err
	}
	var pending []models.Requirement
	for _, req := range cfg.AcknowledgmentRequirements() {
		if !acked[req.ID] {
			pending = append(pending, req)
		}
	}
	return pending, nil
}

// ClaimNext records an acknowledgment for the first pending invite-only
// requirement. Exactly one record is written per call.
func (t *ProgressTracker) ClaimNext(ctx context.Context, user UserRef, cfg TaskConfig) (ClaimResult, error) {
	pending, err := t.Pending(ctx, user, cfg)
	if err != nil {
		return ClaimResult{}, err
	}
	if len(pending) == 0 {
		return ClaimResult{Status: ClaimNothingPending}, nil
	}

	next := pending[0]
	rec := models.UserRequest{
		ID:          models.UserRequestID(user.UID(), next.ID, cfg.Version),
		TelegramUID: user.UID(),
		ChannelID:   next.ID,
		TaskVersion: cfg.Version,
	}
	res := t.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return ClaimResult{}, persistence("record acknowledgment", res.Error)
	}

	status := ClaimRecorded
	if res.RowsAffected == 0 {
		status = ClaimAlreadyRecorded
	}
	t.Log.Info("[PROGRESS] join request acknowledged",
		zap.String("telegram_uid", rec.TelegramUID),
		zap.String("requirement_id", next.ID),
		zap.Int("task_version", cfg.Version),
		zap.Bool("duplicate", status == ClaimAlreadyRecorded))

	return ClaimResult{Status: status, Requirement: &next, Remaining: len(pending) - 1}, nil
}
