// services/errors.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"promo-task-bot/models"
)

var (
	ErrRequirementNotFound  = errors.New("requirement not found")
	ErrDuplicateRequirement = errors.New("requirement id already exists")
	ErrInvalidRequirement   = errors.New("invalid requirement")
	ErrInvalidRewardAmount  = errors.New("reward amount must be a non-negative integer")
	ErrUserNotFound         = errors.New("user not found")
	ErrCodeNotFound         = errors.New("promo code not found")
	ErrCodeAlreadyRedeemed  = errors.New("promo code already redeemed")
	ErrCodeSpaceExhausted   = errors.New("could not find an unused promo code")
	ErrNoRequirements       = errors.New("no requirements configured")
	ErrUnauthorized         = errors.New("permission denied")

	// ErrStaleSnapshot means the user already completed a newer task version
	// than the snapshot the caller evaluated against.
	ErrStaleSnapshot = errors.New("task config snapshot is older than the user's completion")

	// ErrRequirementsUnmet is matched by *UnmetError via errors.Is.
	ErrRequirementsUnmet = errors.New("requirements not met")
)

// UnmetError carries the requirements that blocked issuance.
type UnmetError struct {
	Unmet []models.Requirement
}

func (e *UnmetError) Error() string {
	ids := make([]string, len(e.Unmet))
	for i, r := range e.Unmet {
		ids[i] = r.ID
	}
	return fmt.Sprintf("%s: %s", ErrRequirementsUnmet, strings.Join(ids, ", "))
}

func (e *UnmetError) Is(target error) bool { return target == ErrRequirementsUnmet }

// PersistenceError is a store read/write failure; nothing partial was committed.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// VerificationTransportError is a failed live membership lookup. It is logged
// and treated as "not satisfied", never returned to callers.
type VerificationTransportError struct {
	RequirementID string
	Err           error
}

func (e *VerificationTransportError) Error() string {
	return fmt.Sprintf("membership check for %s: %v", e.RequirementID, e.Err)
}
func (e *VerificationTransportError) Unwrap() error { return e.Err }
