// services/task_config.go
package services

import (
	"context"

	"promo-task-bot/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskConfig is a point-in-time view of the operator configuration. It is
// loaded fresh for every evaluation and never cached.
type TaskConfig struct {
	Version      int
	RewardAmount int
	Requirements []models.Requirement
}

// AcknowledgmentRequirements returns the invite-only requirements in set order.
func (c TaskConfig) AcknowledgmentRequirements() []models.Requirement {
	var out []models.Requirement
	for _, r := range c.Requirements {
		if r.Kind == models.RequirementKindRequest {
			out = append(out, r)
		}
	}
	return out
}

type TaskConfigService struct {
	DB                *gorm.DB
	DefaultPromoCoins int
}

func NewTaskConfigService(db *gorm.DB, defaultPromoCoins int) *TaskConfigService {
	return &TaskConfigService{DB: db, DefaultPromoCoins: defaultPromoCoins}
}

// EnsureSettings creates the settings row on first use (idempotent).
func (s *TaskConfigService) EnsureSettings(ctx context.Context) (*models.BotSettings, error) {
	settings, err := ensureSettingsTx(s.DB.WithContext(ctx), s.DefaultPromoCoins)
	if err != nil {
		return nil, persistence("ensure settings", err)
	}
	return settings, nil
}

func ensureSettingsTx(tx *gorm.DB, defaultPromoCoins int) (*models.BotSettings, error) {
	seed := models.BotSettings{
		ID:          models.SettingsRowID,
		TaskVersion: 1,
		PromoCoins:  defaultPromoCoins,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}
	var settings models.BotSettings
	if err := tx.First(&settings, "id = ?", models.SettingsRowID).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// Requirements returns the active requirement set in display order.
func (s *TaskConfigService) Requirements(ctx context.Context) ([]models.Requirement, error) {
	var reqs []models.Requirement
	if err := s.DB.WithContext(ctx).Order("position ASC, id ASC").Find(&reqs).Error; err != nil {
		return nil, persistence("list requirements", err)
	}
	return reqs, nil
}

// Snapshot loads the version, reward amount and requirement set.
func (s *TaskConfigService) Snapshot(ctx context.Context) (TaskConfig, error) {
	settings, err := s.EnsureSettings(ctx)
	if err != nil {
		return TaskConfig{}, err
	}
	reqs, err := s.Requirements(ctx)
	if err != nil {
		return TaskConfig{}, err
	}
	return TaskConfig{
		Version:      settings.TaskVersion,
		RewardAmount: settings.PromoCoins,
		Requirements: reqs,
	}, nil
}
