package database

// schema is applied in order by EnsureSchema
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS data`,
	`CREATE TABLE IF NOT EXISTS data.daily_prices (
		ticker      TEXT             NOT NULL,
		trade_date  DATE             NOT NULL,
		open_price  DOUBLE PRECISION NOT NULL,
		high_price  DOUBLE PRECISION NOT NULL,
		low_price   DOUBLE PRECISION NOT NULL,
		close_price DOUBLE PRECISION NOT NULL,
		volume      BIGINT           NOT NULL DEFAULT 0,
		updated_at  TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
		PRIMARY KEY (ticker, trade_date)
	)`,
	`CREATE SCHEMA IF NOT EXISTS audit`,
	`CREATE TABLE IF NOT EXISTS audit.simulation_runs (
		run_id        UUID        PRIMARY KEY,
		kind          TEXT        NOT NULL,
		strategy      TEXT        NOT NULL DEFAULT '',
		strategy_hash TEXT        NOT NULL DEFAULT '',
		dataset       TEXT        NOT NULL DEFAULT '',
		params        JSONB       NOT NULL,
		summary       JSONB       NOT NULL,
		payload       JSONB       NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_simulation_runs_created ON audit.simulation_runs (created_at DESC)`,
}
