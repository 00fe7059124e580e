package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/features/claims"
	"serotonyl.ru/stream-rewards/internal/features/pool"
	"serotonyl.ru/stream-rewards/internal/features/settings"
)

type stubPool struct {
	balance  int64
	err      error
	verified int
}

func (p *stubPool) Balance(context.Context) (int64, error) { return p.balance, p.err }

func (p *stubPool) Verify(context.Context) (pool.Verification, error) {
	p.verified++
	return pool.Verification{Balance: p.balance, ReplayedBalance: p.balance, Consistent: true}, nil
}

type stubSettings struct {
	refreshed int
}

func (s *stubSettings) Get(context.Context) settings.RewardSettings { return settings.Defaults() }

func (s *stubSettings) Refresh(context.Context) (settings.RewardSettings, error) {
	s.refreshed++
	return settings.Defaults(), nil
}

type stubSummary struct {
	day time.Time
}

func (s *stubSummary) Summary(_ context.Context, day time.Time) ([]claims.DaySummary, error) {
	s.day = day
	return []claims.DaySummary{
		{Kind: common.KindBroadcasterDaily, Count: 2, Amount: 50},
		{Kind: common.KindViewerDaily, Count: 3, Amount: 30},
	}, nil
}

type gauge struct {
	value int64
	calls int
}

func (g *gauge) ObservePoolBalance(b int64) {
	g.value = b
	g.calls++
}

func TestPoolWatchUpdatesGaugeAndVerifies(t *testing.T) {
	p := &stubPool{balance: 5_000}
	g := &gauge{}
	s := NewScheduler(p, &stubSettings{}, &stubSummary{}, g)

	s.PoolWatch(context.Background())
	assert.Equal(t, int64(5_000), g.value)
	assert.Equal(t, 1, p.verified)

	p.err = errors.New("db down")
	s.PoolWatch(context.Background())
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, 1, p.verified)
}

func TestDailySummaryUsesYesterdayUTC(t *testing.T) {
	sum := &stubSummary{}
	s := NewScheduler(&stubPool{}, &stubSettings{}, sum, nil)
	s.now = func() time.Time { return time.Date(2026, 10, 18, 0, 5, 0, 0, time.UTC) }

	s.DailySummary(context.Background())
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), sum.day)
}

func TestRefreshSettings(t *testing.T) {
	st := &stubSettings{}
	s := NewScheduler(&stubPool{}, st, &stubSummary{}, nil)
	s.RefreshSettings(context.Background())
	assert.Equal(t, 1, st.refreshed)
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(&stubPool{}, &stubSettings{}, &stubSummary{}, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.Len(t, s.cron.Entries(), 3)
	s.Stop()
}
