package members

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "members.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })
	require.NoError(t, AutoMigrate(db))
	return NewService(NewGormRepository(db))
}

func TestTouchKeepsJoinedAt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }
	require.NoError(t, svc.Touch(ctx, 42, "streamer", "Аня"))

	svc.now = func() time.Time { return first.Add(72 * time.Hour) }
	require.NoError(t, svc.Touch(ctx, 42, "streamer_new", ""))

	m, err := svc.GetByUserID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "streamer_new", m.Username)
	assert.Equal(t, "Аня", m.FirstName)
	assert.Equal(t, "@streamer_new", m.DisplayName())

	created, err := svc.AccountCreatedAt(ctx, 42)
	require.NoError(t, err)
	assert.True(t, created.Equal(first), "joined_at=%s", created)
}

func TestAccountCreatedAtUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AccountCreatedAt(context.Background(), 404)
	assert.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestRegisterWithExplicitJoinedAt(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	joined := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Register(ctx, Member{UserID: 7, FirstName: "Олег", JoinedAt: joined}))

	created, err := svc.AccountCreatedAt(ctx, 7)
	require.NoError(t, err)
	assert.True(t, created.Equal(joined))
}

func TestRegisterOverwritesJoinedAtAfterTouch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	svc.now = func() time.Time { return time.Date(2026, 10, 18, 4, 17, 0, 0, time.UTC) }
	require.NoError(t, svc.Touch(ctx, 7, "oleg", "Олег"))

	joined := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Register(ctx, Member{UserID: 7, JoinedAt: joined}))

	created, err := svc.AccountCreatedAt(ctx, 7)
	require.NoError(t, err)
	assert.True(t, created.Equal(joined), "joined_at=%s", created)

	// Имя, пришедшее с событием, сохраняется
	m, err := svc.GetByUserID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "oleg", m.Username)

	// Следующее событие дату уже не трогает
	require.NoError(t, svc.Touch(ctx, 7, "oleg", ""))
	created, err = svc.AccountCreatedAt(ctx, 7)
	require.NoError(t, err)
	assert.True(t, created.Equal(joined), "joined_at=%s", created)
}
