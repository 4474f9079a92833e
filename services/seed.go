// services/seed.go
package services

import (
	"context"
	"errors"

	"promo-task-bot/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errAlreadySeeded = errors.New("requirements already present")

// Seed installs the initial requirement set when none exists yet. It does
// not bump the version. Returns the number of requirements inserted.
func (s *AdminService) Seed(ctx context.Context, inputs []RequirementInput, promoCoins *int) (int, error) {
	reqs := make([]*models.Requirement, 0, len(inputs))
	for _, in := range inputs {
		req, err := normalizeRequirement(in)
		if err != nil {
			return 0, err
		}
		reqs = append(reqs, req)
	}
	if promoCoins != nil && *promoCoins < 0 {
		return 0, ErrInvalidRewardAmount
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureSettingsTx(tx, s.Config.DefaultPromoCoins); err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.Requirement{}).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errAlreadySeeded
		}
		for i, req := range reqs {
			req.Position = i + 1
			if err := tx.Create(req).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateRequirement
				}
				return err
			}
		}
		if promoCoins != nil {
			return tx.Model(&models.BotSettings{}).
				Where("id = ?", models.SettingsRowID).
				Update("promo_coins", *promoCoins).Error
		}
		return nil
	})
	switch {
	case errors.Is(err, errAlreadySeeded):
		s.Log.Info("[SEED] requirements already configured, skipping")
		return 0, nil
	case errors.Is(err, ErrDuplicateRequirement):
		return 0, err
	case err != nil:
		return 0, persistence("seed requirements", err)
	}
	s.Log.Info("[SEED] requirements installed", zap.Int("count", len(reqs)))
	return len(reqs), nil
}
