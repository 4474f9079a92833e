package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"promo-task-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type blockingChecker struct {
	release chan struct{}
}

func (b *blockingChecker) CheckMembership(context.Context, string, int64) (models.MemberStatus, error) {
	<-b.release
	return models.MemberActive, nil
}

func TestClassify(t *testing.T) {
	s := &Strategies{
		Membership:     &MembershipStrategy{},
		Acknowledgment: &AcknowledgmentStrategy{},
	}
	cases := []struct {
		kind models.RequirementKind
		want Strategy
	}{
		{models.RequirementKindChannel, s.Membership},
		{models.RequirementKindRequest, s.Acknowledgment},
		{models.RequirementKindLink, s.Trivial},
		{"legacy", s.Membership},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Equal(t, tc.want, s.Classify(models.Requirement{ID: "x", Kind: tc.kind}))
		})
	}
}

func TestMembershipStrategy_Statuses(t *testing.T) {
	checker := newFakeChecker()
	strategy := &MembershipStrategy{Checker: checker, Timeout: time.Second, Log: zap.NewNop()}
	req := channelReq("ch1")
	subject := Subject{UserID: 1, Version: 1}

	cases := []struct {
		status models.MemberStatus
		want   Outcome
	}{
		{models.MemberActive, Satisfied},
		{models.MemberLeft, Unsatisfied},
		{models.MemberKicked, Unsatisfied},
		{models.MemberUnknown, Indeterminate},
	}
	for _, tc := range cases {
		checker.set("ch1", 1, tc.status)
		got, err := strategy.Verify(context.Background(), subject, req)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "status %s", tc.status)
	}
}

func TestMembershipStrategy_FailsClosedOnTransportError(t *testing.T) {
	checker := newFakeChecker()
	checker.set("ch1", 1, models.MemberActive)
	checker.err = errors.New("connection reset")
	strategy := &MembershipStrategy{Checker: checker, Timeout: time.Second, Log: zap.NewNop()}

	got, err := strategy.Verify(context.Background(), Subject{UserID: 1, Version: 1}, channelReq("ch1"))
	require.NoError(t, err)
	assert.Equal(t, Unsatisfied, got)
	assert.Equal(t, 1, checker.calls)
}

func TestMembershipStrategy_TimesOut(t *testing.T) {
	checker := &blockingChecker{release: make(chan struct{})}
	defer close(checker.release)
	strategy := &MembershipStrategy{Checker: checker, Timeout: 50 * time.Millisecond, Log: zap.NewNop()}

	started := time.Now()
	got, err := strategy.Verify(context.Background(), Subject{UserID: 1, Version: 1}, channelReq("ch1"))
	require.NoError(t, err)
	assert.Equal(t, Unsatisfied, got)
	assert.Less(t, time.Since(started), 2*time.Second)
}

func TestEvaluate_IndeterminateCountsAsUnmet(t *testing.T) {
	checker := newFakeChecker()
	svc := newTestServices(t, checker)
	seedRequirements(t, svc, channelReq("ch1"), linkReq("site"))
	checker.set("ch1", 3, models.MemberUnknown)

	eval, err := svc.Evaluator.Evaluate(context.Background(), UserRef{ID: 3}, snapshot(t, svc))
	require.NoError(t, err)
	assert.False(t, eval.AllSatisfied)
	assert.Equal(t, []string{"ch1"}, requirementIDs(eval.Unmet))
}

func TestEvaluate_IsIdempotent(t *testing.T) {
	checker := newFakeChecker()
	svc := newTestServices(t, checker)
	seedRequirements(t, svc, channelReq("ch1"), requestReq("grp1"), linkReq("site"))
	checker.set("ch1", 3, models.MemberActive)
	cfg := snapshot(t, svc)

	first, err := svc.Evaluator.Evaluate(context.Background(), UserRef{ID: 3}, cfg)
	require.NoError(t, err)
	second, err := svc.Evaluator.Evaluate(context.Background(), UserRef{ID: 3}, cfg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTrivialStrategy(t *testing.T) {
	got, err := TrivialStrategy{}.Verify(context.Background(), Subject{}, linkReq("site"))
	require.NoError(t, err)
	assert.Equal(t, Satisfied, got)
}
