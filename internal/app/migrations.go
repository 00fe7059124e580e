package app

import "serotonyl.ru/stream-rewards/internal/db/postgres"

// SQL-миграции встроены в код для упрощения деплоя.
// Для SQLite схема создаётся через gorm AutoMigrate каждого модуля.
var migrations = []postgres.Migration{
	{Version: 1, Name: "members", SQL: migration001Members},
	{Version: 2, Name: "economy", SQL: migration002Economy},
	{Version: 3, Name: "reward_settings", SQL: migration003Settings},
	{Version: 4, Name: "reward_pool", SQL: migration004Pool},
	{Version: 5, Name: "reward_claims", SQL: migration005Claims},
	{Version: 6, Name: "admin_login_attempts", SQL: migration006Admin},
}

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255),
    first_name VARCHAR(255),
    last_name VARCHAR(255),
    is_banned BOOLEAN DEFAULT FALSE,
    joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_username ON members(username);
`

var migration002Economy = `
CREATE TABLE IF NOT EXISTS balances (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    total_earned BIGINT NOT NULL DEFAULT 0,
    total_spent BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ DEFAULT NOW(),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    from_user_id BIGINT,
    to_user_id BIGINT,
    amount BIGINT NOT NULL,
    transaction_type VARCHAR(50) NOT NULL,
    description TEXT,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_from_user ON transactions(from_user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_to_user ON transactions(to_user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
`

var migration003Settings = `
CREATE TABLE IF NOT EXISTS reward_settings (
    key VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
`

var migration004Pool = `
CREATE TABLE IF NOT EXISTS reward_pool (
    id SMALLINT PRIMARY KEY CHECK (id = 1),
    balance BIGINT NOT NULL CHECK (balance >= 0),
    updated_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS pool_ledger (
    id BIGSERIAL PRIMARY KEY,
    delta BIGINT NOT NULL,
    reason VARCHAR(32) NOT NULL,
    actor_ref VARCHAR(255) NOT NULL,
    user_id BIGINT NOT NULL DEFAULT 0,
    reward_kind VARCHAR(32),
    session_ref VARCHAR(255),
    rollback BOOLEAN NOT NULL DEFAULT FALSE,
    resulting_balance BIGINT NOT NULL,
    created_at TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_pool_ledger_created_at ON pool_ledger(created_at DESC);
`

var migration005Claims = `
CREATE TABLE IF NOT EXISTS reward_claims (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    reward_kind VARCHAR(32) NOT NULL,
    claim_date DATE NOT NULL,
    session_ref VARCHAR(255),
    amount BIGINT NOT NULL CHECK (amount > 0),
    created_at TIMESTAMPTZ DEFAULT NOW(),
    UNIQUE (user_id, reward_kind, claim_date)
);
CREATE INDEX IF NOT EXISTS idx_reward_claims_date ON reward_claims(claim_date);
`

var migration006Admin = `
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    login VARCHAR(255) NOT NULL,
    remote_addr VARCHAR(255),
    success BOOLEAN NOT NULL DEFAULT FALSE,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_attempts_login_time ON admin_login_attempts(login, attempt_time);
`
