// services/verification.go
package services

import (
	"context"
	"time"

	"promo-task-bot/models"

	"go.uber.org/zap"
)

// Outcome is the result of verifying one requirement for one user.
type Outcome int

const (
	Unsatisfied Outcome = iota
	Satisfied
	// Indeterminate counts as not satisfied for completion purposes.
	Indeterminate
)

func (o Outcome) String() string {
	switch o {
	case Satisfied:
		return "satisfied"
	case Indeterminate:
		return "indeterminate"
	default:
		return "unsatisfied"
	}
}

// Subject identifies who is being verified against which task version.
type Subject struct {
	UserID  int64
	Version int
}

func (s Subject) TelegramUID() string { return UserRef{ID: s.UserID}.UID() }

// MembershipChecker performs the live "is this user in that channel" lookup.
type MembershipChecker interface {
	CheckMembership(ctx context.Context, destinationID string, userID int64) (models.MemberStatus, error)
}

// Strategy verifies a single requirement. The set of strategies is closed.
type Strategy interface {
	Verify(ctx context.Context, subject Subject, req models.Requirement) (Outcome, error)
	strategy()
}

// MembershipStrategy asks the messaging platform and fails closed.
type MembershipStrategy struct {
	Checker MembershipChecker
	Timeout time.Duration
	Log     *zap.Logger
}

type membershipResult struct {
	status models.MemberStatus
	err    error
}

func (s *MembershipStrategy) strategy() {}

// Verify never returns an error: transport failures and timeouts are
// logged and reported as Unsatisfied.
func (s *MembershipStrategy) Verify(ctx context.Context, subject Subject, req models.Requirement) (Outcome, error) {
	if s.Checker == nil {
		return Unsatisfied, nil
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan membershipResult, 1)
	go func() {
		status, err := s.Checker.CheckMembership(ctx, req.ID, subject.UserID)
		done <- membershipResult{status: status, err: err}
	}()

	var res membershipResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = membershipResult{err: ctx.Err()}
	}
	if res.err != nil {
		s.Log.Warn("[VERIFY] membership lookup failed, treating as not subscribed",
			zap.Error(&VerificationTransportError{RequirementID: req.ID, Err: res.err}),
			zap.Int64("user_id", subject.UserID))
		return Unsatisfied, nil
	}

	switch res.status {
	case models.MemberActive:
		return Satisfied, nil
	case models.MemberLeft, models.MemberKicked:
		return Unsatisfied, nil
	default:
		return Indeterminate, nil
	}
}

// AcknowledgmentStrategy trusts the user's self-reported join request.
type AcknowledgmentStrategy struct {
	Tracker *ProgressTracker
}

func (s *AcknowledgmentStrategy) strategy() {}

func (s *AcknowledgmentStrategy) Verify(ctx context.Context, subject Subject, req models.Requirement) (Outcome, error) {
	ok, err := s.Tracker.HasAcknowledged(ctx, subject.TelegramUID(), req.ID, subject.Version)
	if err != nil {
		return Unsatisfied, err
	}
	if ok {
		return Satisfied, nil
	}
	return Unsatisfied, nil
}

// TrivialStrategy is for informational links.
type TrivialStrategy struct{}

func (TrivialStrategy) strategy() {}

func (TrivialStrategy) Verify(context.Context, Subject, models.Requirement) (Outcome, error) {
	return Satisfied, nil
}

// Strategies resolves a requirement to its verification strategy.
type Strategies struct {
	Membership     *MembershipStrategy
	Acknowledgment *AcknowledgmentStrategy
	Trivial        TrivialStrategy
}

// Classify maps a requirement kind to a strategy. Unknown kinds are
// verified live like channels.
func (s *Strategies) Classify(req models.Requirement) Strategy {
	switch req.Kind {
	case models.RequirementKindRequest:
		return s.Acknowledgment
	case models.RequirementKindLink:
		return s.Trivial
	default:
		return s.Membership
	}
}
