package rewards

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
	"serotonyl.ru/stream-rewards/internal/features/claims"
	"serotonyl.ru/stream-rewards/internal/features/economy"
	"serotonyl.ru/stream-rewards/internal/features/members"
	"serotonyl.ru/stream-rewards/internal/features/pool"
	"serotonyl.ru/stream-rewards/internal/features/settings"
	"serotonyl.ru/stream-rewards/internal/notify"
)

// harness собирает выдачу на настоящих сервисах поверх одной базы SQLite.
type harness struct {
	settings *settings.Provider
	pool     *pool.Service
	claims   *claims.Service
	wallet   *economy.Service
	members  *members.Service
	notifier *recordingNotifier
	issuer   *Issuer
}

func newHarness(t *testing.T, initial int64, tweak ...func(*IssuerConfig)) *harness {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "rewards.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })

	require.NoError(t, settings.AutoMigrate(db))
	require.NoError(t, pool.AutoMigrate(db))
	require.NoError(t, claims.AutoMigrate(db))
	require.NoError(t, economy.AutoMigrate(db))
	require.NoError(t, members.AutoMigrate(db))

	h := &harness{
		settings: settings.NewProvider(settings.NewGormRepository(db), 0),
		pool:     pool.NewService(pool.NewGormRepository(db), nil),
		claims:   claims.NewService(claims.NewGormRepository(db)),
		wallet:   economy.NewService(economy.NewGormRepository(db)),
		members:  members.NewService(members.NewGormRepository(db)),
		notifier: &recordingNotifier{},
	}
	ctx := context.Background()
	require.NoError(t, h.settings.SeedDefaults(ctx, ""))
	require.NoError(t, h.pool.Init(ctx, initial))

	cfg := IssuerConfig{
		Settings:      h.settings,
		Claims:        h.claims,
		Accounts:      h.members,
		Pool:          h.pool,
		Wallet:        h.wallet,
		Notifier:      h.notifier,
		FailOpen:      true,
		NotifyTimeout: time.Second,
	}
	for _, f := range tweak {
		f(&cfg)
	}
	h.issuer = NewIssuer(cfg)
	return h
}

func (h *harness) set(t *testing.T, changes map[string]string) {
	t.Helper()
	_, err := h.settings.Update(context.Background(), changes)
	require.NoError(t, err)
}

func (h *harness) register(t *testing.T, userID int64, age time.Duration) {
	t.Helper()
	require.NoError(t, h.members.Register(context.Background(), members.Member{
		UserID:   userID,
		Username: "user",
		JoinedAt: time.Now().Add(-age).UTC(),
	}))
}

func (h *harness) poolBalance(t *testing.T) int64 {
	t.Helper()
	b, err := h.pool.Balance(context.Background())
	require.NoError(t, err)
	return b
}

func (h *harness) walletBalance(t *testing.T, userID int64) int64 {
	t.Helper()
	b, err := h.wallet.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b.Balance
}

func (h *harness) claimCount(t *testing.T, userID int64) int {
	t.Helper()
	list, err := h.claims.List(context.Background(), claims.Filter{UserID: &userID})
	require.NoError(t, err)
	return len(list)
}

func (h *harness) requireConsistentPool(t *testing.T) {
	t.Helper()
	v, err := h.pool.Verify(context.Background())
	require.NoError(t, err)
	require.True(t, v.Consistent, "журнал пула расходится с балансом: %+v", v)
	require.Zero(t, v.NegativeEntries)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, _ int64, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// flakyWallet падает на зачислении или откате по флагу.
type flakyWallet struct {
	Wallet
	failCredit bool
	failRevert bool
}

func (w *flakyWallet) Credit(ctx context.Context, userID, amount int64, description string) error {
	if w.failCredit {
		return errors.New("кошельки недоступны")
	}
	return w.Wallet.Credit(ctx, userID, amount, description)
}

func (w *flakyWallet) Revert(ctx context.Context, userID, amount int64, description string) error {
	if w.failRevert {
		return errors.New("кошельки недоступны")
	}
	return w.Wallet.Revert(ctx, userID, amount, description)
}

// brokenClaims эмулирует сбои журнала наград.
type brokenClaims struct {
	ClaimStore
	lookupErr error
	insertErr error
	// blindLookup: проверка всегда говорит «не получал», как в окне гонки
	blindLookup bool
}

func (c *brokenClaims) ClaimedToday(ctx context.Context, userID int64, kind common.RewardKind) (bool, error) {
	if c.lookupErr != nil {
		return false, c.lookupErr
	}
	if c.blindLookup {
		return false, nil
	}
	return c.ClaimStore.ClaimedToday(ctx, userID, kind)
}

func (c *brokenClaims) Record(ctx context.Context, userID int64, kind common.RewardKind, sessionRef string, amount int64) (claims.Claim, error) {
	if c.insertErr != nil {
		return claims.Claim{}, c.insertErr
	}
	return c.ClaimStore.Record(ctx, userID, kind, sessionRef, amount)
}

type brokenAccounts struct{}

func (brokenAccounts) AccountCreatedAt(context.Context, int64) (time.Time, error) {
	return time.Time{}, errors.New("профили недоступны")
}
