package pool

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
)

type balanceRecorder struct {
	mu   sync.Mutex
	last int64
	n    int
}

func (b *balanceRecorder) ObservePoolBalance(balance int64) {
	b.mu.Lock()
	b.last = balance
	b.n++
	b.mu.Unlock()
}

func newTestService(t *testing.T, initial int64) (*Service, *balanceRecorder) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })
	require.NoError(t, AutoMigrate(db))

	rec := &balanceRecorder{}
	svc := NewService(NewGormRepository(db), rec)
	require.NoError(t, svc.Init(context.Background(), initial))
	return svc, rec
}

func TestInitIsIdempotentAndRecordsGenesis(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, 1_000_000)

	require.NoError(t, svc.Init(ctx, 5))
	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance)
	assert.Equal(t, int64(1_000_000), rec.last)

	entries, err := svc.Entries(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ReasonGenesis, entries[0].Reason)
	assert.Equal(t, int64(1_000_000), entries[0].ResultingBalance)
}

func TestDebitAndCredit(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 1_000_000)

	balance, err := svc.Debit(ctx, 25, Meta{
		Reason:     ReasonReward,
		ActorRef:   "issuer",
		UserID:     UserIDRef(42),
		RewardKind: string(common.KindBroadcasterDaily),
		SessionRef: "s-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(999_975), balance)

	balance, err = svc.Credit(ctx, 25, Meta{Reason: ReasonRollback, ActorRef: "issuer", Rollback: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance)

	entries, err := svc.Entries(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Rollback)
	assert.Equal(t, int64(-25), entries[1].Delta)
	require.NotNil(t, entries[1].UserID)
	assert.Equal(t, int64(42), *entries[1].UserID)
	assert.Equal(t, "s-1", entries[1].SessionRef)
}

func TestDebitRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 10)

	_, err := svc.Debit(ctx, 11, Meta{Reason: ReasonReward, ActorRef: "issuer"})
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)

	_, err = svc.Debit(ctx, 0, Meta{Reason: ReasonReward, ActorRef: "issuer"})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	_, err = svc.Credit(ctx, -5, Meta{Reason: ReasonTopUp, ActorRef: "admin"})
	assert.ErrorIs(t, err, common.ErrInvalidAmount)

	balance, err := svc.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 100)

	const workers = 25
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, 10, Meta{Reason: ReasonReward, ActorRef: "issuer"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, common.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("неожиданная ошибка: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, workers-10, rejected)

	v, err := svc.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, v.Consistent)
	assert.Equal(t, int64(0), v.Balance)
	assert.Equal(t, 11, v.Entries)
	assert.Zero(t, v.NegativeEntries)
}

func TestVerifyReplaysLedger(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 500)

	_, err := svc.Debit(ctx, 25, Meta{Reason: ReasonReward, ActorRef: "issuer"})
	require.NoError(t, err)
	_, err = svc.Debit(ctx, 12, Meta{Reason: ReasonReward, ActorRef: "issuer"})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, 12, Meta{Reason: ReasonRollback, ActorRef: "issuer", Rollback: true})
	require.NoError(t, err)
	_, err = svc.TopUp(ctx, 1000, "admin:root")
	require.NoError(t, err)

	v, err := svc.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, v.Consistent)
	assert.Equal(t, int64(500-25-12+12+1000), v.Balance)
	assert.Equal(t, v.Balance, v.ReplayedBalance)
	assert.Equal(t, 5, v.Entries)
}

func TestZeroInitialBalanceHasNoGenesis(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)

	entries, err := svc.Entries(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	v, err := svc.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, v.Consistent)
}
