package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithSQLite(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD_HASH", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/rewards.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, PresenceMemory, cfg.PresenceBackend)
	assert.Equal(t, int64(1000000), cfg.PoolInitialBalance)
	assert.True(t, cfg.RewardsFailOpen)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.AdminRateLimitRequests)
}

func TestLoadRequiresAdminHash(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD_HASH", "")
	t.Setenv("DB_DRIVER", "sqlite")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DBDriver:          DriverPostgres,
			AdminPasswordHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			DBPassword:        "secret",
			DBMaxConns:        10,
			DBMinConns:        2,
			PresenceBackend:   PresenceRedis,
			LivenessTimeout:   1,
			NotifyTimeout:     1,
			RateLimitRequests: 1,
			RateLimitBurst:    1,

			AdminRateLimitRequests: 1,
			AdminRateLimitBurst:    1,
		}
	}
	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.DBPassword = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.DBDriver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.PresenceBackend = "kafka"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.PoolInitialBalance = -1
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.DBMinConns = 20
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.AdminRateLimitBurst = 0
	assert.Error(t, cfg.Validate())

	assert.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable",
		(&Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432, DBName: "db", DBSSLMode: "disable"}).DatabaseDSN())
}
