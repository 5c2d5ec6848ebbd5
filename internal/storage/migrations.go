package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order; schema_version tracks the last applied
// index.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                  TEXT PRIMARY KEY,
		session_id          TEXT NOT NULL,
		customer_json       TEXT NOT NULL,
		items_json          TEXT NOT NULL,
		subtotal            INTEGER NOT NULL,
		delivery_fee        INTEGER NOT NULL,
		total               INTEGER NOT NULL,
		status              TEXT NOT NULL,
		fail_reason         TEXT NOT NULL DEFAULT '',
		paid_transaction_id TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMP NOT NULL,
		updated_at          TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(session_id)`,
	`CREATE TABLE IF NOT EXISTS payment_attempts (
		transaction_id TEXT PRIMARY KEY,
		order_id       TEXT NOT NULL REFERENCES orders(id),
		provider       TEXT NOT NULL,
		amount         INTEGER NOT NULL,
		currency       TEXT NOT NULL,
		status         TEXT NOT NULL,
		reason         TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMP NOT NULL,
		updated_at     TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_order ON payment_attempts(order_id)`,
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	row := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&version); err != nil {
		return err
	}

	for i := version; i < len(migrations); i++ {
		if _, err := db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return err
		}
	}
	return nil
}
