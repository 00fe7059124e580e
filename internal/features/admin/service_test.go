package admin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
	"serotonyl.ru/stream-rewards/internal/features/claims"
	"serotonyl.ru/stream-rewards/internal/features/members"
	"serotonyl.ru/stream-rewards/internal/features/pool"
	"serotonyl.ru/stream-rewards/internal/features/rewards"
	"serotonyl.ru/stream-rewards/internal/features/settings"
)

type fakeIssuer struct {
	calls []string
}

func (f *fakeIssuer) ForceIssue(_ context.Context, _ int64, kind common.RewardKind, sessionID, actor string) (rewards.Result, error) {
	f.calls = append(f.calls, string(kind)+"/"+sessionID+"/"+actor)
	return rewards.Result{Granted: true, Amount: 25, Status: rewards.StatusGranted}, nil
}

type fixture struct {
	svc    *Service
	claims *claims.Service
	issuer *fakeIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })
	require.NoError(t, settings.AutoMigrate(db))
	require.NoError(t, pool.AutoMigrate(db))
	require.NoError(t, claims.AutoMigrate(db))
	require.NoError(t, members.AutoMigrate(db))

	ctx := context.Background()
	provider := settings.NewProvider(settings.NewGormRepository(db), time.Minute)
	require.NoError(t, provider.SeedDefaults(ctx, ""))
	poolService := pool.NewService(pool.NewGormRepository(db), nil)
	require.NoError(t, poolService.Init(ctx, 50_000))

	f := &fixture{
		claims: claims.NewService(claims.NewGormRepository(db)),
		issuer: &fakeIssuer{},
	}
	f.svc = NewService(provider, poolService, f.claims, members.NewService(members.NewGormRepository(db)), f.issuer)
	return f
}

func TestUpdateSettingsValidatesAndApplies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	updated, err := f.svc.UpdateSettings(ctx, map[string]string{"viewer_amount": "15", "viewer_min_stay": "45"}, Actor("root"))
	require.NoError(t, err)
	assert.Equal(t, int64(15), updated.ViewerAmount)
	assert.Equal(t, 45*time.Second, updated.ViewerMinStay)

	_, err = f.svc.UpdateSettings(ctx, map[string]string{"pool_reduction_pct": "150"}, Actor("root"))
	assert.ErrorIs(t, err, common.ErrInvalidSetting)

	current, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, current.PoolReductionPct)
	assert.Equal(t, int64(15), current.ViewerAmount)
}

func TestPoolTopUpLedgerAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	st, err := f.svc.PoolStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), st.Balance)
	assert.False(t, st.BelowThreshold)

	balance, err := f.svc.TopUp(ctx, 1_000, Actor("root"))
	require.NoError(t, err)
	assert.Equal(t, int64(51_000), balance)

	_, err = f.svc.TopUp(ctx, 0, Actor("root"))
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	entries, err := f.svc.Ledger(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, pool.ReasonTopUp, entries[0].Reason)
	assert.Equal(t, "admin:root", entries[0].ActorRef)

	v, err := f.svc.VerifyPool(ctx)
	require.NoError(t, err)
	assert.True(t, v.Consistent)
	assert.Equal(t, int64(51_000), v.ReplayedBalance)
}

func TestResetClaimAllowsNewReward(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.claims.Record(ctx, 7, common.KindViewerDaily, "s-1", 10)
	require.NoError(t, err)

	deleted, err := f.svc.ResetClaim(ctx, 7, common.KindViewerDaily, Actor("root"))
	require.NoError(t, err)
	assert.True(t, deleted)

	claimed, err := f.claims.ClaimedToday(ctx, 7, common.KindViewerDaily)
	require.NoError(t, err)
	assert.False(t, claimed)

	deleted, err = f.svc.ResetClaim(ctx, 7, common.KindViewerDaily, Actor("root"))
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = f.svc.ResetClaim(ctx, 7, "weekly", Actor("root"))
	assert.ErrorIs(t, err, common.ErrUnknownRewardKind)
}

func TestForceIssueDelegates(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ForceIssue(context.Background(), 7, common.KindBroadcasterDaily, "s-9", Actor("root"))
	require.NoError(t, err)
	assert.True(t, res.Granted)
	assert.Equal(t, []string{"broadcaster_daily/s-9/admin:root"}, f.issuer.calls)

	_, err = f.svc.ForceIssue(context.Background(), 7, "weekly", "s-9", Actor("root"))
	assert.ErrorIs(t, err, common.ErrUnknownRewardKind)
	assert.Len(t, f.issuer.calls, 1)
}

func TestRegisterMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	joined := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, f.svc.RegisterMember(ctx, members.Member{UserID: 42, Username: "old", JoinedAt: joined}, Actor("root")))
	m, err := f.svc.members.GetByUserID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, joined.Equal(m.JoinedAt))
}
