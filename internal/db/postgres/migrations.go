// Package postgres, migrations.go: схема БД сервиса кошелька.
// SQL-миграции встроены в код для упрощения деплоя.
// Новые изменения схемы: только новой миграцией в конце списка, старые не трогаем.
package postgres

// Migrations: все миграции по порядку версий.
var Migrations = []Migration{
	{1, "accounts", migration001Accounts},
	{2, "ledger_entries", migration002Ledger},
	{3, "idempotency_index", migration003Claims},
	{4, "admin_login_attempts", migration004Admin},
}

// Уровень считается generated column, его нельзя записать в обход опыта.
var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    player_id VARCHAR(128) PRIMARY KEY,
    coins BIGINT NOT NULL DEFAULT 0 CHECK (coins >= 0),
    experience BIGINT NOT NULL DEFAULT 0 CHECK (experience >= 0),
    level INTEGER GENERATED ALWAYS AS (LEAST(999, experience / 1000 + 1)::INTEGER) STORED,
    tickets BIGINT NOT NULL DEFAULT 0 CHECK (tickets >= 0),
    games_played BIGINT NOT NULL DEFAULT 0 CHECK (games_played >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration002Ledger = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    entry_id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL UNIQUE,
    player_id VARCHAR(128) NOT NULL REFERENCES accounts(player_id),
    category VARCHAR(16) NOT NULL CHECK (category IN ('earn', 'spend', 'game', 'reward')),
    coin_delta BIGINT NOT NULL DEFAULT 0,
    experience_delta BIGINT NOT NULL DEFAULT 0,
    ticket_delta BIGINT NOT NULL DEFAULT 0,
    plays_delta BIGINT NOT NULL DEFAULT 0,
    balance_after BIGINT NOT NULL CHECK (balance_after >= 0),
    idempotency_key VARCHAR(192),
    run_id VARCHAR(192),
    reason VARCHAR(255) NOT NULL DEFAULT '',
    source_game VARCHAR(64) NOT NULL DEFAULT '',
    reference VARCHAR(255) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_idempotency_key
    ON ledger_entries(idempotency_key) WHERE idempotency_key IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_player_run
    ON ledger_entries(player_id, run_id) WHERE run_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_ledger_player_seq ON ledger_entries(player_id, seq DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_player_created ON ledger_entries(player_id, created_at DESC);
`

var migration003Claims = `
CREATE TABLE IF NOT EXISTS idempotency_keys (
    key VARCHAR(192) PRIMARY KEY,
    player_id VARCHAR(128) NOT NULL,
    entry_id UUID NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS run_claims (
    player_id VARCHAR(128) NOT NULL,
    run_id VARCHAR(192) NOT NULL,
    entry_id UUID NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (player_id, run_id)
);
`

var migration004Admin = `
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    client_ip VARCHAR(64) NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_ip_time
    ON admin_login_attempts(client_ip, attempt_time DESC);
`
