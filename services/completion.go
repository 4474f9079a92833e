// services/completion.go
package services

import (
	"context"

	"promo-task-bot/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Evaluation struct {
	Version          int
	Unmet            []models.Requirement
	AllSatisfied     bool
	AlreadyCompleted bool
	ExistingCode     string
}

// CompletionEvaluator decides whether a user has met every requirement of a
// task version. It writes nothing.
type CompletionEvaluator struct {
	DB         *gorm.DB
	Strategies *Strategies
	Log        *zap.Logger
}

func (e *CompletionEvaluator) Evaluate(ctx context.Context, user UserRef, cfg TaskConfig) (Evaluation, error) {
	eval := Evaluation{Version: cfg.Version}

	stored, err := loadUser(ctx, e.DB, user.UID())
	if err != nil {
		return eval, err
	}
	if stored.CompletedFor(cfg.Version) {
		eval.AllSatisfied = true
		eval.AlreadyCompleted = true
		eval.ExistingCode = stored.LastCode
		return eval, nil
	}
	if stored.CompletedAfter(cfg.Version) {
		return eval, ErrStaleSnapshot
	}

	subject := Subject{UserID: user.ID, Version: cfg.Version}
	for _, req := range cfg.Requirements {
		outcome, err := e.Strategies.Classify(req).Verify(ctx, subject, req)
		if err != nil {
			return eval, persistence("verify "+req.ID, err)
		}
		if outcome != Satisfied {
			eval.Unmet = append(eval.Unmet, req)
		}
		e.Log.Debug("[VERIFY] requirement checked",
			zap.String("telegram_uid", user.UID()),
			zap.String("requirement_id", req.ID),
			zap.String("kind", string(req.Kind)),
			zap.Stringer("outcome", outcome))
	}
	eval.AllSatisfied = len(eval.Unmet) == 0
	return eval, nil
}
