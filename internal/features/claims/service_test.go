package claims

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
)

func newTestService(t *testing.T, now time.Time) *Service {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })
	require.NoError(t, AutoMigrate(db))

	clock := now
	return NewService(NewGormRepository(db)).WithClock(func() time.Time { return clock })
}

func TestRecordIsUniquePerDay(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))

	c, err := svc.Record(ctx, 42, common.KindBroadcasterDaily, "s-1", 25)
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), c.Date)

	_, err = svc.Record(ctx, 42, common.KindBroadcasterDaily, "s-2", 25)
	assert.ErrorIs(t, err, common.ErrDuplicateClaim)

	// Другой тип награды и другой пользователь не конфликтуют
	_, err = svc.Record(ctx, 42, common.KindViewerDaily, "s-2", 10)
	require.NoError(t, err)
	_, err = svc.Record(ctx, 43, common.KindBroadcasterDaily, "s-3", 25)
	require.NoError(t, err)

	claimed, err := svc.ClaimedToday(ctx, 42, common.KindBroadcasterDaily)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestNextDayIsANewClaim(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })
	require.NoError(t, AutoMigrate(db))

	now := time.Date(2026, 10, 18, 23, 59, 0, 0, time.UTC)
	svc := NewService(NewGormRepository(db)).WithClock(func() time.Time { return now })

	_, err = svc.Record(ctx, 7, common.KindViewerDaily, "s-1", 10)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	claimed, err := svc.ClaimedToday(ctx, 7, common.KindViewerDaily)
	require.NoError(t, err)
	assert.False(t, claimed)

	_, err = svc.Record(ctx, 7, common.KindViewerDaily, "s-1", 10)
	require.NoError(t, err)
}

func TestConcurrentRecordOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dupes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Record(ctx, 1, common.KindViewerDaily, "s", 10)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, common.ErrDuplicateClaim):
				dupes++
			default:
				t.Errorf("неожиданная ошибка: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 19, dupes)
}

func TestResetAllowsClaimAgain(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))

	_, err := svc.Record(ctx, 5, common.KindBroadcasterDaily, "s", 25)
	require.NoError(t, err)

	deleted, err := svc.Reset(ctx, 5, common.KindBroadcasterDaily, "admin:root")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Reset(ctx, 5, common.KindBroadcasterDaily, "admin:root")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = svc.Record(ctx, 5, common.KindBroadcasterDaily, "s", 25)
	require.NoError(t, err)
}

func TestListFiltersAndSummary(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))

	for _, uid := range []int64{1, 2, 3} {
		_, err := svc.Record(ctx, uid, common.KindViewerDaily, "s", 10)
		require.NoError(t, err)
	}
	_, err := svc.Record(ctx, 1, common.KindBroadcasterDaily, "s", 25)
	require.NoError(t, err)

	all, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	uid := int64(1)
	mine, err := svc.List(ctx, Filter{UserID: &uid})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	viewers, err := svc.List(ctx, Filter{Kind: common.KindViewerDaily, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, viewers, 2)

	nextPage, err := svc.List(ctx, Filter{Kind: common.KindViewerDaily, Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, nextPage, 1)

	from := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	none, err := svc.List(ctx, Filter{From: &from})
	require.NoError(t, err)
	assert.Empty(t, none)

	summary, err := svc.Summary(ctx, svc.Today())
	require.NoError(t, err)
	assert.Equal(t, []DaySummary{
		{Kind: common.KindBroadcasterDaily, Count: 1, Amount: 25},
		{Kind: common.KindViewerDaily, Count: 3, Amount: 30},
	}, summary)
}
