package economy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "economy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })
	require.NoError(t, AutoMigrate(db))
	return NewService(NewGormRepository(db))
}

func TestCreditCreatesWallet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	b, err := svc.GetBalance(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, b.Balance)

	require.NoError(t, svc.Credit(ctx, 42, 25, "Ежедневная награда стримера"))
	require.NoError(t, svc.Credit(ctx, 42, 10, "Ежедневная награда зрителя"))

	b, err = svc.GetBalance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(35), b.Balance)
	assert.Equal(t, int64(35), b.TotalEarned)

	txs, err := svc.GetTransactions(ctx, 42, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(10), txs[0].Amount)
	assert.Equal(t, TxTypeDailyReward, txs[0].TransactionType)
	require.NotNil(t, txs[0].ToUserID)
	assert.Nil(t, txs[0].FromUserID)
}

func TestRevertUndoesCredit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Credit(ctx, 7, 25, "награда"))
	require.NoError(t, svc.Revert(ctx, 7, 25, "откат"))

	b, err := svc.GetBalance(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, b.Balance)
	assert.Equal(t, int64(25), b.TotalSpent)

	txs, err := svc.GetTransactions(ctx, 7, 0, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, TxTypeRewardRevert, txs[0].TransactionType)
}

func TestRevertNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	err := svc.Revert(ctx, 9, 10, "откат")
	assert.ErrorIs(t, err, common.ErrUserNotFound)

	require.NoError(t, svc.Credit(ctx, 9, 5, "награда"))
	err = svc.Revert(ctx, 9, 10, "откат")
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)

	assert.ErrorIs(t, svc.Credit(ctx, 9, 0, "ноль"), common.ErrInvalidAmount)
}
