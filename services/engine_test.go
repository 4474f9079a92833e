package services

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"promo-task-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func TestScenarioA_PartialProgressThenIssue(t *testing.T) {
	ctx := context.Background()
	checker := newFakeChecker()
	svc := newTestServices(t, checker)
	seedRequirements(t, svc, channelReq("ch1"), requestReq("grp1"), linkReq("site"))
	checker.set("ch1", 42, models.MemberActive)
	user := UserRef{ID: 42, Name: "Alice"}

	cfg := snapshot(t, svc)
	require.Equal(t, 1, cfg.Version)

	eval, err := svc.Evaluator.Evaluate(ctx, user, cfg)
	require.NoError(t, err)
	assert.False(t, eval.AllSatisfied)
	assert.Equal(t, []string{"grp1"}, requirementIDs(eval.Unmet))

	claim, err := svc.Tracker.ClaimNext(ctx, user, cfg)
	require.NoError(t, err)
	assert.Equal(t, ClaimRecorded, claim.Status)
	assert.Equal(t, "grp1", claim.Requirement.ID)

	var ack models.UserRequest
	require.NoError(t, svc.Config.DB.First(&ack, "id = ?", "42_grp1_1").Error)
	assert.Equal(t, "42", ack.TelegramUID)

	eval, err = svc.Evaluator.Evaluate(ctx, user, cfg)
	require.NoError(t, err)
	assert.True(t, eval.AllSatisfied)
	assert.Empty(t, eval.Unmet)

	promo, err := svc.Issuer.Issue(ctx, user, cfg)
	require.NoError(t, err)
	assert.Regexp(t, codePattern, promo.Code)
	assert.Equal(t, 5, promo.Coins)
	assert.Equal(t, 1, promo.TaskVersion)
	assert.False(t, promo.Used)

	var stored models.BotUser
	require.NoError(t, svc.Config.DB.First(&stored, "telegram_uid = ?", "42").Error)
	require.NotNil(t, stored.CompletedVersion)
	assert.Equal(t, 1, *stored.CompletedVersion)
	assert.Equal(t, promo.Code, stored.LastCode)
}

func TestScenarioB_RepeatedCheckReturnsSameCode(t *testing.T) {
	ctx := context.Background()
	checker := newFakeChecker()
	svc := newTestServices(t, checker)
	seedRequirements(t, svc, channelReq("ch1"))
	checker.set("ch1", 42, models.MemberActive)
	user := UserRef{ID: 42, Name: "Alice"}
	cfg := snapshot(t, svc)

	first, err := svc.Issuer.Issue(ctx, user, cfg)
	require.NoError(t, err)

	// membership no longer matters once the version is completed
	checker.set("ch1", 42, models.MemberLeft)
	second, err := svc.Issuer.Issue(ctx, user, cfg)
	require.NoError(t, err)
	assert.Equal(t, first.Code, second.Code)

	var count int64
	require.NoError(t, svc.Config.DB.Model(&models.PromoCode{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	eval, err := svc.Evaluator.Evaluate(ctx, user, cfg)
	require.NoError(t, err)
	assert.True(t, eval.AlreadyCompleted)
	assert.Equal(t, first.Code, eval.ExistingCode)
}

func TestScenarioC_VersionBumpResetsEligibility(t *testing.T) {
	ctx := context.Background()
	checker := newFakeChecker()
	svc := newTestServices(t, checker)
	seedRequirements(t, svc, channelReq("ch1"), requestReq("grp1"))
	checker.set("ch1", 42, models.MemberActive)
	user := UserRef{ID: 42, Name: "Alice"}

	cfg := snapshot(t, svc)
	_, err := svc.Tracker.ClaimNext(ctx, user, cfg)
	require.NoError(t, err)
	old, err := svc.Issuer.Issue(ctx, user, cfg)
	require.NoError(t, err)

	v, err := svc.Versions.Bump(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	cfg = snapshot(t, svc)
	eval, err := svc.Evaluator.Evaluate(ctx, user, cfg)
	require.NoError(t, err)
	assert.False(t, eval.AlreadyCompleted)
	assert.Equal(t, []string{"grp1"}, requirementIDs(eval.Unmet))

	checker.set("ch1", 42, models.MemberLeft)
	eval, err = svc.Evaluator.Evaluate(ctx, user, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"ch1", "grp1"}, requirementIDs(eval.Unmet))

	var kept models.PromoCode
	require.NoError(t, svc.Config.DB.First(&kept, "code = ?", old.Code).Error)
	assert.Equal(t, 1, kept.TaskVersion)
	assert.False(t, kept.Used)

	var stored models.BotUser
	require.NoError(t, svc.Config.DB.First(&stored, "telegram_uid = ?", "42").Error)
	assert.Equal(t, 1, *stored.CompletedVersion)

	checker.set("ch1", 42, models.MemberActive)
	_, err = svc.Tracker.ClaimNext(ctx, user, cfg)
	require.NoError(t, err)
	fresh, err := svc.Issuer.Issue(ctx, user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, old.Code, fresh.Code)
	assert.Equal(t, 2, fresh.TaskVersion)
}

func TestScenarioD_ClaimNextIsFIFO(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, newFakeChecker())
	seedRequirements(t, svc, requestReq("grp1"), channelReq("ch1"), requestReq("grp2"))
	user := UserRef{ID: 7}
	cfg := snapshot(t, svc)

	first, err := svc.Tracker.ClaimNext(ctx, user, cfg)
	require.NoError(t, err)
	assert.Equal(t, ClaimRecorded, first.Status)
	assert.Equal(t, "grp1", first.Requirement.ID)
	assert.Equal(t, 1, first.Remaining)

	second, err := svc.Tracker.ClaimNext(ctx, user, cfg)
	require.NoError(t, err)
	assert.Equal(t, "grp2", second.Requirement.ID)
	assert.Equal(t, 0, second.Remaining)

	third, err := svc.Tracker.ClaimNext(ctx, user, cfg)
	require.NoError(t, err)
	assert.Equal(t, ClaimNothingPending, third.Status)
	assert.Nil(t, third.Requirement)

	var count int64
	require.NoError(t, svc.Config.DB.Model(&models.UserRequest{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestIssue_ConcurrentCallsProduceOneCode(t *testing.T) {
	ctx := context.Background()
	checker := newFakeChecker()
	svc := newTestServices(t, checker)
	seedRequirements(t, svc, channelReq("ch1"), linkReq("site"))
	checker.set("ch1", 99, models.MemberActive)
	user := UserRef{ID: 99, Name: "Bob"}
	cfg := snapshot(t, svc)

	const callers = 12
	codes := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			promo, err := svc.Issuer.Issue(ctx, user, cfg)
			errs[i] = err
			if err == nil {
				codes[i] = promo.Code
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, codes[0], codes[i])
	}

	var count int64
	require.NoError(t, svc.Config.DB.Model(&models.PromoCode{}).Where("telegram_uid = ?", "99").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIssue_UnmetCreatesNothing(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, newFakeChecker())
	seedRequirements(t, svc, channelReq("ch1"), requestReq("grp1"))
	user := UserRef{ID: 5}

	_, err := svc.Issuer.Issue(ctx, user, snapshot(t, svc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequirementsUnmet))

	var unmet *UnmetError
	require.True(t, errors.As(err, &unmet))
	assert.Equal(t, []string{"ch1", "grp1"}, requirementIDs(unmet.Unmet))

	var count int64
	require.NoError(t, svc.Config.DB.Model(&models.PromoCode{}).Count(&count).Error)
	assert.Zero(t, count)

	var stored models.BotUser
	require.NoError(t, svc.Config.DB.First(&stored, "telegram_uid = ?", "5").Error)
	assert.Nil(t, stored.CompletedVersion)
}

func TestIssue_EmptyRequirementSet(t *testing.T) {
	svc := newTestServices(t, newFakeChecker())
	_, err := svc.Issuer.Issue(context.Background(), UserRef{ID: 1}, snapshot(t, svc))
	assert.ErrorIs(t, err, ErrNoRequirements)
}

func TestIssue_SkipsTakenCodes(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, newFakeChecker())
	seedRequirements(t, svc, linkReq("site"))
	require.NoError(t, svc.Config.DB.Create(&models.PromoCode{Code: "TAKEN001", TelegramUID: "1", TaskVersion: 1, Coins: 5}).Error)

	candidates := []string{"taken001", "FRESH002"}
	svc.Issuer.Generator.Random = func(n int) (string, error) {
		c := candidates[0]
		candidates = candidates[1:]
		return c, nil
	}

	promo, err := svc.Issuer.Issue(ctx, UserRef{ID: 2}, snapshot(t, svc))
	require.NoError(t, err)
	assert.Equal(t, "FRESH002", promo.Code)
}

func TestIssue_StampsRewardAtIssuance(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, newFakeChecker())
	seedRequirements(t, svc, linkReq("site"))

	first, err := svc.Issuer.Issue(ctx, UserRef{ID: 1}, snapshot(t, svc))
	require.NoError(t, err)
	require.NoError(t, svc.Admin.SetRewardAmount(ctx, 12))

	second, err := svc.Issuer.Issue(ctx, UserRef{ID: 2}, snapshot(t, svc))
	require.NoError(t, err)

	var reloaded models.PromoCode
	require.NoError(t, svc.Config.DB.First(&reloaded, "code = ?", first.Code).Error)
	assert.Equal(t, 5, reloaded.Coins)
	assert.Equal(t, 12, second.Coins)
}

func TestVersion_BumpIsMonotonic(t *testing.T) {
	ctx := context.Background()
	svc := newTestServices(t, newFakeChecker())

	current, err := svc.Versions.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, current)

	const bumps = 6
	results := make(chan int, bumps)
	var wg sync.WaitGroup
	for i := 0; i < bumps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := svc.Versions.Bump(ctx)
			assert.NoError(t, err)
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int]bool{}
	for v := range results {
		assert.False(t, seen[v], "version %d returned twice", v)
		seen[v] = true
		assert.Greater(t, v, 1)
	}
	current, err = svc.Versions.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1+bumps, current)
}

func TestEngine_CheckOutcomes(t *testing.T) {
	ctx := context.Background()
	checker := newFakeChecker()
	svc := newTestServices(t, checker)
	user := UserRef{ID: 42, Name: "Alice", LanguageCode: "en"}

	res, err := svc.Engine.Check(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, CheckNoTasks, res.Outcome)

	seedRequirements(t, svc, channelReq("ch1"), requestReq("grp1"))

	start, err := svc.Engine.Start(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, CheckUnmet, start.Outcome)
	assert.Equal(t, 1, start.PendingAcknowledgments)
	assert.Zero(t, checker.calls)

	res, err = svc.Engine.Check(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, CheckUnmet, res.Outcome)
	assert.Equal(t, []string{"ch1", "grp1"}, requirementIDs(res.Unmet))

	checker.set("ch1", 42, models.MemberActive)
	claim, _, err := svc.Engine.ClaimNext(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, ClaimRecorded, claim.Status)

	res, err = svc.Engine.Check(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, CheckIssued, res.Outcome)
	require.NotNil(t, res.Code)
	issued := res.Code.Code

	res, err = svc.Engine.Check(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, CheckAlreadyCompleted, res.Outcome)
	assert.Equal(t, issued, res.Code.Code)

	start, err = svc.Engine.Start(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, CheckAlreadyCompleted, start.Outcome)
	assert.Equal(t, issued, start.Code.Code)
}
