// services/version.go
package services

import (
	"context"
	"fmt"

	"promo-task-bot/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VersionController owns the task version counter. Bumping it makes every
// user eligible for a new code; issued codes and completion records are left alone.
type VersionController struct {
	DB                *gorm.DB
	DefaultPromoCoins int
	Log               *zap.Logger
}

func NewVersionController(db *gorm.DB, defaultPromoCoins int, log *zap.Logger) *VersionController {
	return &VersionController{DB: db, DefaultPromoCoins: defaultPromoCoins, Log: log}
}

func (v *VersionController) Current(ctx context.Context) (int, error) {
	settings, err := ensureSettingsTx(v.DB.WithContext(ctx), v.DefaultPromoCoins)
	if err != nil {
		return 0, persistence("read task version", err)
	}
	return settings.TaskVersion, nil
}

// Bump increments the task version and returns the new value.
func (v *VersionController) Bump(ctx context.Context) (int, error) {
	var next int
	err := v.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		next, err = bumpVersionTx(tx, v.DefaultPromoCoins)
		return err
	})
	if err != nil {
		return 0, persistence("bump task version", err)
	}
	v.Log.Info("[VERSION] task version bumped", zap.Int("task_version", next))
	return next, nil
}

// bumpVersionTx must run inside a transaction so the read sees its own write.
func bumpVersionTx(tx *gorm.DB, defaultPromoCoins int) (int, error) {
	if _, err := ensureSettingsTx(tx, defaultPromoCoins); err != nil {
		return 0, err
	}
	res := tx.Model(&models.BotSettings{}).
		Where("id = ?", models.SettingsRowID).
		Update("task_version", gorm.Expr("task_version + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected != 1 {
		return 0, fmt.Errorf("settings row missing (rows affected %d)", res.RowsAffected)
	}
	var settings models.BotSettings
	if err := tx.First(&settings, "id = ?", models.SettingsRowID).Error; err != nil {
		return 0, err
	}
	return settings.TaskVersion, nil
}
