// services/task_engine.go
package services

import (
	"context"
	"errors"
	"time"

	"promo-task-bot/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CheckOutcome int

const (
	// CheckNoTasks means the requirement set is empty; nothing can be earned.
	CheckNoTasks CheckOutcome = iota
	CheckUnmet
	CheckIssued
	CheckAlreadyCompleted
)

// CheckResult is what the bot needs to render a reply.
type CheckResult struct {
	Outcome CheckOutcome
	Config  TaskConfig
	Unmet   []models.Requirement
	Code    *models.PromoCode
	// PendingAcknowledgments counts invite-only requirements not yet claimed.
	PendingAcknowledgments int
}

// TaskEngine combines the config snapshot, evaluator, tracker and issuer.
type TaskEngine struct {
	DB        *gorm.DB
	Config    *TaskConfigService
	Evaluator *CompletionEvaluator
	Tracker   *ProgressTracker
	Issuer    *CodeIssuer
	Log       *zap.Logger
}

// Start registers the user and reports what they still have to do without
// running live membership checks.
func (e *TaskEngine) Start(ctx context.Context, user UserRef) (CheckResult, error) {
	stored, err := EnsureUser(ctx, e.DB, user)
	if err != nil {
		return CheckResult{}, err
	}
	cfg, err := e.Config.Snapshot(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	result := CheckResult{Config: cfg}

	if stored.CompletedFor(cfg.Version) {
		issued, err := e.Issuer.existing(ctx, user, cfg.Version, stored.LastCode)
		if err != nil {
			return CheckResult{}, err
		}
		result.Outcome = CheckAlreadyCompleted
		result.Code = &issued.Code
		return result, nil
	}
	if len(cfg.Requirements) == 0 {
		result.Outcome = CheckNoTasks
		return result, nil
	}

	pending, err := e.Tracker.Pending(ctx, user, cfg)
	if err != nil {
		return CheckResult{}, err
	}
	result.Outcome = CheckUnmet
	result.Unmet = cfg.Requirements
	result.PendingAcknowledgments = len(pending)
	return result, nil
}

// Check verifies every requirement and issues the code when all are met.
func (e *TaskEngine) Check(ctx context.Context, user UserRef) (CheckResult, error) {
	started := time.Now()
	cfg, err := e.Config.Snapshot(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	result := CheckResult{Config: cfg}

	issued, err := e.Issuer.IssueDetailed(ctx, user, cfg)
	if errors.Is(err, ErrStaleSnapshot) {
		// the version moved on while this check was running
		if cfg, err = e.Config.Snapshot(ctx); err != nil {
			return CheckResult{}, err
		}
		result.Config = cfg
		issued, err = e.Issuer.IssueDetailed(ctx, user, cfg)
	}
	var unmet *UnmetError
	switch {
	case errors.Is(err, ErrNoRequirements):
		result.Outcome = CheckNoTasks
		return result, nil
	case errors.As(err, &unmet):
		pending, err := e.Tracker.Pending(ctx, user, cfg)
		if err != nil {
			return CheckResult{}, err
		}
		result.Outcome = CheckUnmet
		result.Unmet = unmet.Unmet
		result.PendingAcknowledgments = len(pending)
	case err != nil:
		return CheckResult{}, err
	case issued.Fresh:
		result.Outcome = CheckIssued
		result.Code = &issued.Code
	default:
		result.Outcome = CheckAlreadyCompleted
		result.Code = &issued.Code
	}

	e.Log.Debug("[CHECK] evaluated",
		zap.String("telegram_uid", user.UID()),
		zap.Int("task_version", cfg.Version),
		zap.Int("unmet", len(result.Unmet)),
		zap.Duration("took", time.Since(started)))
	return result, nil
}

// ClaimNext records the next pending join request for the user.
func (e *TaskEngine) ClaimNext(ctx context.Context, user UserRef) (ClaimResult, TaskConfig, error) {
	if _, err := EnsureUser(ctx, e.DB, user); err != nil {
		return ClaimResult{}, TaskConfig{}, err
	}
	cfg, err := e.Config.Snapshot(ctx)
	if err != nil {
		return ClaimResult{}, TaskConfig{}, err
	}
	res, err := e.Tracker.ClaimNext(ctx, user, cfg)
	return res, cfg, err
}
