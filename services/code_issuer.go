// services/code_issuer.go
package services

import (
	"context"
	"errors"
	"strings"

	"promo-task-bot/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCollisionRetries = 5

var errCompletionTaken = errors.New("completion already recorded for this version")

// Issuance is the result of an Issue call. Fresh is false when the user
// already held a code for the version.
type Issuance struct {
	Code  models.PromoCode
	Fresh bool
}

// CodeIssuer mints at most one promo code per (user, task version).
type CodeIssuer struct {
	DB        *gorm.DB
	Evaluator *CompletionEvaluator
	Generator *CodeGenerator
	Log       *zap.Logger
}

// Issue returns the user's code for cfg.Version, minting it if needed.
func (i *CodeIssuer) Issue(ctx context.Context, user UserRef, cfg TaskConfig) (*models.PromoCode, error) {
	res, err := i.IssueDetailed(ctx, user, cfg)
	if err != nil {
		return nil, err
	}
	return &res.Code, nil
}

func (i *CodeIssuer) IssueDetailed(ctx context.Context, user UserRef, cfg TaskConfig) (*Issuance, error) {
	if len(cfg.Requirements) == 0 {
		return nil, ErrNoRequirements
	}
	if _, err := EnsureUser(ctx, i.DB, user); err != nil {
		return nil, err
	}

	eval, err := i.Evaluator.Evaluate(ctx, user, cfg)
	if err != nil {
		return nil, err
	}
	if eval.AlreadyCompleted {
		return i.existing(ctx, user, cfg.Version, eval.ExistingCode)
	}
	if !eval.AllSatisfied {
		return nil, &UnmetError{Unmet: eval.Unmet}
	}

	for attempt := 0; attempt < maxCollisionRetries; attempt++ {
		code, err := i.Generator.Generate(ctx, i.codeExists)
		if err != nil {
			if errors.Is(err, ErrCodeSpaceExhausted) {
				return nil, err
			}
			return nil, persistence("generate code", err)
		}

		promo, err := i.commit(ctx, user, cfg, code)
		switch {
		case err == nil:
			i.Log.Info("[ISSUE] promo code minted",
				zap.String("telegram_uid", promo.TelegramUID),
				zap.String("code", promo.Code),
				zap.Int("task_version", promo.TaskVersion),
				zap.Int("coins", promo.Coins))
			return &Issuance{Code: *promo, Fresh: true}, nil
		case errors.Is(err, errCompletionTaken):
			stored, err := loadUser(ctx, i.DB, user.UID())
			if err != nil {
				return nil, err
			}
			if stored.CompletedAfter(cfg.Version) {
				return nil, ErrStaleSnapshot
			}
			if !stored.CompletedFor(cfg.Version) {
				return nil, persistence("issue code", errCompletionTaken)
			}
			i.Log.Info("[ISSUE] concurrent issuance won by another request",
				zap.String("telegram_uid", user.UID()),
				zap.Int("task_version", cfg.Version))
			return i.existing(ctx, user, cfg.Version, stored.LastCode)
		case errors.Is(err, gorm.ErrDuplicatedKey):
			i.Log.Warn("[ISSUE] code collision, retrying", zap.String("code", code), zap.Int("attempt", attempt+1))
			continue
		default:
			return nil, persistence("issue code", err)
		}
	}
	return nil, ErrCodeSpaceExhausted
}

// commit claims the completion slot and inserts the code atomically.
// completed_version only moves forward, so a stale snapshot can never
// overwrite a newer completion.
func (i *CodeIssuer) commit(ctx context.Context, user UserRef, cfg TaskConfig, code string) (*models.PromoCode, error) {
	promo := models.PromoCode{
		Code:         code,
		TelegramUID:  user.UID(),
		TelegramName: user.Name,
		TaskVersion:  cfg.Version,
		Coins:        cfg.RewardAmount,
	}
	err := i.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.BotUser{}).
			Where("telegram_uid = ? AND (completed_version IS NULL OR completed_version < ?)", promo.TelegramUID, cfg.Version).
			Updates(map[string]interface{}{
				"completed_version": cfg.Version,
				"last_code":         code,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCompletionTaken
		}
		return tx.Create(&promo).Error
	})
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

func (i *CodeIssuer) codeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := i.DB.WithContext(ctx).Model(&models.PromoCode{}).
		Where("code = ?", strings.ToUpper(code)).
		Count(&count).Error
	return count > 0, err
}

func (i *CodeIssuer) existing(ctx context.Context, user UserRef, version int, code string) (*Issuance, error) {
	var promo models.PromoCode
	err := i.DB.WithContext(ctx).Where("code = ?", code).First(&promo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// completion recorded without a matching code row; report what the user holds
		promo = models.PromoCode{Code: code, TelegramUID: user.UID(), TelegramName: user.Name, TaskVersion: version}
		return &Issuance{Code: promo}, nil
	}
	if err != nil {
		return nil, persistence("load promo code", err)
	}
	return &Issuance{Code: promo}, nil
}
