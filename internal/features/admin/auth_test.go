package admin

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/stream-rewards/internal/common"
	"serotonyl.ru/stream-rewards/internal/db/sqlite"
)

func newAttemptStore(t *testing.T) *GormRepository {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })
	require.NoError(t, AutoMigrate(db))
	return NewGormRepository(db)
}

func TestHashAndVerifyArgon2id(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=65536,t=3,p=2$")

	assert.True(t, verifyArgon2id("s3cret", hash))
	assert.False(t, verifyArgon2id("wrong", hash))
	assert.False(t, verifyArgon2id("s3cret", "not-a-hash"))
	assert.False(t, verifyArgon2id("s3cret", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA"))
}

func TestAuthenticatorLocksOutAfterThreeFailures(t *testing.T) {
	ctx := context.Background()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	auth := NewAuthenticator(newAttemptStore(t), "root", hash)

	require.NoError(t, auth.Verify(ctx, "root", "s3cret", "127.0.0.1"))
	assert.NoError(t, auth.Verify(ctx, "root", "s3cret", "127.0.0.1"))

	for i := 0; i < MaxFailedAttempts; i++ {
		assert.ErrorIs(t, auth.Verify(ctx, "root", "nope", "127.0.0.1"), common.ErrWrongPassword)
	}
	// Даже верный пароль не пускает до конца блокировки
	assert.ErrorIs(t, auth.Verify(ctx, "root", "s3cret", "127.0.0.1"), common.ErrTooManyAttempts)

	auth.now = func() time.Time { return time.Now().Add(LockoutWindow + time.Minute) }
	assert.NoError(t, auth.Verify(ctx, "root", "s3cret", "127.0.0.1"))
}

// countingStore считает обращения к журналу попыток.
type countingStore struct {
	AttemptStore
	logged, lookups int
}

func (c *countingStore) LogAttempt(ctx context.Context, login, remoteAddr string, success bool) error {
	c.logged++
	return c.AttemptStore.LogAttempt(ctx, login, remoteAddr, success)
}

func (c *countingStore) RecentFailures(ctx context.Context, login string, since time.Time) (int, error) {
	c.lookups++
	return c.AttemptStore.RecentFailures(ctx, login, since)
}

func TestAuthenticatorRejectsWrongLogin(t *testing.T) {
	ctx := context.Background()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	store := &countingStore{AttemptStore: newAttemptStore(t)}
	auth := NewAuthenticator(store, "root", hash)

	for i := 0; i < 10; i++ {
		login := fmt.Sprintf("guest-%d", i)
		assert.ErrorIs(t, auth.Verify(ctx, login, "s3cret", "10.0.0.1"), common.ErrWrongPassword)
	}
	// Неизвестные логины не доходят ни до базы, ни до блокировки настоящего
	assert.Zero(t, store.logged)
	assert.Zero(t, store.lookups)
	require.NoError(t, auth.Verify(ctx, "root", "s3cret", "10.0.0.1"))
	assert.Equal(t, 1, store.logged)
}
