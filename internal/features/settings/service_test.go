package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
)

func newTestStore(t *testing.T) *GormRepository {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })
	require.NoError(t, AutoMigrate(db))
	return NewGormRepository(db)
}

type brokenStore struct{ err error }

func (b brokenStore) All(context.Context) (map[string]string, error) { return nil, b.err }
func (b brokenStore) Upsert(context.Context, map[string]string) error { return b.err }
func (b brokenStore) InsertMissing(context.Context, map[string]string) (int, error) {
	return 0, b.err
}

func TestApplyBounds(t *testing.T) {
	s := Defaults()

	require.NoError(t, s.Apply("broadcaster_amount", "40"))
	assert.Equal(t, int64(40), s.BroadcasterAmount)

	require.NoError(t, s.Apply("viewer_min_stay", "45"))
	assert.Equal(t, 45*time.Second, s.ViewerMinStay)

	require.NoError(t, s.Apply(" FAIL_SAFE_MODE ", "Disable"))
	assert.Equal(t, FailSafeDisable, s.FailSafeMode)

	bad := map[string]string{
		KeyBroadcasterAmount:      "0",
		KeyViewerAmount:           "1000001",
		KeyBroadcasterMinDuration: "500ms",
		KeyViewerMinStay:          "25h",
		KeyViewerMinAccountAge:    "-1h",
		KeyPoolThreshold:          "-5",
		KeyPoolReductionPct:       "101",
		KeyFailSafeMode:           "panic",
		KeyViewerEnabled:          "maybe",
	}
	for key, value := range bad {
		before := s
		err := s.Apply(key, value)
		assert.ErrorIs(t, err, common.ErrInvalidSetting, "%s=%s", key, value)
		assert.Equal(t, before, s, "%s не должен меняться", key)
	}

	assert.ErrorIs(t, s.Apply("weekly_amount", "5"), common.ErrUnknownSetting)
}

func TestApplyRejectsOverflowingSeconds(t *testing.T) {
	s := Defaults()
	before := s

	// 18446744075 * 1e9 переполняет int64 и без проверки даёт ~1.29s
	for _, key := range []string{KeyViewerMinStay, KeyBroadcasterMinDuration, KeyViewerMinAccountAge} {
		assert.ErrorIs(t, s.Apply(key, "18446744075"), common.ErrInvalidSetting, key)
		assert.ErrorIs(t, s.Apply(key, "-18446744075"), common.ErrInvalidSetting, key)
	}
	assert.Equal(t, before, s)

	_, err := parseDuration("9223372037")
	assert.Error(t, err)
	d, err := parseDuration("9223372036")
	require.NoError(t, err)
	assert.Equal(t, 9223372036*time.Second, d)
}

func TestEncodeRoundTripThroughApply(t *testing.T) {
	original := Defaults()
	original.ViewerMinAccountAge = 36 * time.Hour
	original.PoolReductionPct = 0

	decoded := decode(original.Encode())
	assert.Equal(t, original, decoded)
	assert.Len(t, Keys(), 10)
}

func TestProviderSeedAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := NewProvider(store, time.Minute)

	require.NoError(t, p.SeedDefaults(ctx, ""))
	stored, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, len(Keys()))
	assert.Equal(t, Defaults(), p.Get(ctx))

	updated, err := p.Update(ctx, map[string]string{
		KeyBroadcasterAmount: "30",
		KeyViewerMinStay:     "60",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30), updated.BroadcasterAmount)
	assert.Equal(t, time.Minute, p.Get(ctx).ViewerMinStay)

	stored, err = store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1m0s", stored[KeyViewerMinStay])

	// Повторный сид не затирает изменённые значения
	require.NoError(t, p.SeedDefaults(ctx, ""))
	assert.Equal(t, int64(30), p.Get(ctx).BroadcasterAmount)
}

func TestProviderUpdateIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := NewProvider(store, 0)
	require.NoError(t, p.SeedDefaults(ctx, ""))

	_, err := p.Update(ctx, map[string]string{
		KeyViewerAmount:     "15",
		KeyPoolReductionPct: "150",
	})
	require.ErrorIs(t, err, common.ErrInvalidSetting)
	assert.Equal(t, int64(10), p.Get(ctx).ViewerAmount)
}

func TestProviderCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := NewProvider(store, time.Hour)
	require.NoError(t, p.SeedDefaults(ctx, ""))
	assert.Equal(t, int64(25), p.Get(ctx).BroadcasterAmount)

	// Запись в обход провайдера не видна до сброса кэша
	require.NoError(t, store.Upsert(ctx, map[string]string{KeyBroadcasterAmount: "99"}))
	assert.Equal(t, int64(25), p.Get(ctx).BroadcasterAmount)

	p.Invalidate()
	assert.Equal(t, int64(99), p.Get(ctx).BroadcasterAmount)
}

func TestProviderFallsBackWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(brokenStore{err: errors.New("connection refused")}, time.Minute)

	assert.Equal(t, Defaults(), p.Get(ctx))

	_, err := p.Refresh(ctx)
	assert.Error(t, err)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
broadcaster_amount: 50
viewer_min_stay: 45s
viewer_enabled: false
fail_safe_mode: disable
`), 0o600))

	s, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(50), s.BroadcasterAmount)
	assert.Equal(t, 45*time.Second, s.ViewerMinStay)
	assert.False(t, s.ViewerEnabled)
	assert.Equal(t, FailSafeDisable, s.FailSafeMode)
	assert.Equal(t, int64(10), s.ViewerAmount)

	require.NoError(t, os.WriteFile(path, []byte("pool_reduction_pct: 300\n"), 0o600))
	_, err = LoadSeedFile(path)
	assert.ErrorIs(t, err, common.ErrInvalidSetting)
}
