package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"promo-task-bot/models"
	"promo-task-bot/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeChecker struct {
	mu      sync.Mutex
	members map[string]map[int64]models.MemberStatus
	err     error
	calls   int
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{members: map[string]map[int64]models.MemberStatus{}}
}

func (f *fakeChecker) set(destination string, userID int64, status models.MemberStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[destination] == nil {
		f.members[destination] = map[int64]models.MemberStatus{}
	}
	f.members[destination][userID] = status
}

func (f *fakeChecker) CheckMembership(_ context.Context, destination string, userID int64) (models.MemberStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	status, ok := f.members[destination][userID]
	if !ok {
		return models.MemberLeft, nil
	}
	return status, nil
}

func newTestServices(t *testing.T, checker MembershipChecker) *Services {
	t.Helper()
	db := testutil.NewDB(t)
	return New(db, checker, Options{
		DefaultPromoCoins: 5,
		CodeLength:        DefaultCodeLength,
		MembershipTimeout: time.Second,
	}, zap.NewNop())
}

// seedRequirements stores reqs in order without bumping the version.
func seedRequirements(t *testing.T, svc *Services, reqs ...models.Requirement) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Config.EnsureSettings(ctx)
	require.NoError(t, err)
	for i := range reqs {
		reqs[i].Position = i + 1
		require.NoError(t, svc.Config.DB.Create(&reqs[i]).Error)
	}
}

func channelReq(id string) models.Requirement {
	return models.Requirement{ID: id, DisplayName: id, DestinationURL: "https://t.me/" + id, Kind: models.RequirementKindChannel}
}

func requestReq(id string) models.Requirement {
	return models.Requirement{ID: id, DisplayName: id, DestinationURL: "https://t.me/+" + id, Kind: models.RequirementKindRequest}
}

func linkReq(id string) models.Requirement {
	return models.Requirement{ID: id, DisplayName: id, DestinationURL: "https://example.com/" + id, Kind: models.RequirementKindLink}
}

func requirementIDs(reqs []models.Requirement) []string {
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		ids[i] = r.ID
	}
	return ids
}

func snapshot(t *testing.T, svc *Services) TaskConfig {
	t.Helper()
	cfg, err := svc.Config.Snapshot(context.Background())
	require.NoError(t, err)
	return cfg
}

// beforeCreate runs fn inside every gorm create, ahead of the INSERT, on the
// same connection or transaction. It simulates a concurrent writer landing
// between a read and the write that depends on it.
func beforeCreate(t *testing.T, db *gorm.DB, name string, fn func(tx *gorm.DB)) {
	t.Helper()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(name, fn))
}

func sideDB(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true})
}
