package repository

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS bars (
		symbol     TEXT NOT NULL,
		ts         TIMESTAMPTZ NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		volume     DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (symbol, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id                 BIGSERIAL PRIMARY KEY,
		symbol             TEXT NOT NULL,
		type               TEXT NOT NULL,
		confidence         SMALLINT NOT NULL,
		reason             TEXT NOT NULL DEFAULT '',
		entry_price        DOUBLE PRECISION NOT NULL,
		stop_loss          DOUBLE PRECISION NOT NULL DEFAULT 0,
		take_profit        DOUBLE PRECISION NOT NULL DEFAULT 0,
		stop_loss_pct      DOUBLE PRECISION NOT NULL DEFAULT 0,
		take_profit_pct    DOUBLE PRECISION NOT NULL DEFAULT 0,
		risk_reward_ratio  DOUBLE PRECISION NOT NULL DEFAULT 0,
		suggested_shares   INTEGER NOT NULL DEFAULT 0,
		position_value     DOUBLE PRECISION NOT NULL DEFAULT 0,
		actionable         BOOLEAN NOT NULL DEFAULT FALSE,
		signal_hash        TEXT NOT NULL UNIQUE,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		sent               BOOLEAN NOT NULL DEFAULT FALSE,
		sent_at            TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_symbol_created ON signals (symbol, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS performance_records (
		id                    BIGSERIAL PRIMARY KEY,
		signal_id             BIGINT NOT NULL REFERENCES signals (id),
		symbol                TEXT NOT NULL,
		strategy              TEXT NOT NULL,
		predicted_probability DOUBLE PRECISION NOT NULL DEFAULT 0,
		entry_price           DOUBLE PRECISION NOT NULL,
		stop_loss             DOUBLE PRECISION NOT NULL,
		take_profit_price     DOUBLE PRECISION NOT NULL,
		outcome               TEXT,
		actual_return         DOUBLE PRECISION NOT NULL DEFAULT 0,
		holding_period_days   INTEGER NOT NULL DEFAULT 0,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at          TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_performance_open ON performance_records (symbol) WHERE outcome IS NULL`,
}

// RunMigrations applies the schema. Statements are idempotent so reruns
// on boot are harmless.
func RunMigrations(ctx context.Context, pool PgxPool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
