package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teralab/chatorder/internal/order"
	"github.com/teralab/chatorder/internal/payment"
)

const driverName = "sqlite"

// SQLite implements Persistence on a local SQLite database.
type SQLite struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with WAL and a single writer, which
// is the configuration SQLite handles best.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// NewSQLite opens the database at dbPath and applies migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close implements Persistence.
func (s *SQLite) Close() error { return s.db.Close() }

// Save implements Persistence.
func (s *SQLite) Save(ctx context.Context, sessionID string, draft *order.Draft) error {
	customer, err := json.Marshal(draft.Customer)
	if err != nil {
		return err
	}
	items, err := json.Marshal(draft.Items)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, session_id, customer_json, items_json,
			subtotal, delivery_fee, total, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_json = excluded.customer_json,
			items_json    = excluded.items_json,
			subtotal      = excluded.subtotal,
			delivery_fee  = excluded.delivery_fee,
			total         = excluded.total,
			status        = excluded.status,
			updated_at    = excluded.updated_at`,
		draft.ID, sessionID, string(customer), string(items),
		draft.Subtotal, draft.DeliveryFee, draft.Total, string(draft.Status), now, now)
	return err
}

// MarkPaid implements Persistence.
func (s *SQLite) MarkPaid(ctx context.Context, orderID, transactionID string) error {
	return s.setStatus(ctx, orderID, order.StatusPaid, "", transactionID)
}

// MarkFailed implements Persistence.
func (s *SQLite) MarkFailed(ctx context.Context, orderID, reason string) error {
	return s.setStatus(ctx, orderID, order.StatusFailed, reason, "")
}

func (s *SQLite) setStatus(ctx context.Context, orderID string, status order.Status, reason, txID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, fail_reason = ?, paid_transaction_id = ?, updated_at = ?
		WHERE id = ?`,
		string(status), reason, txID, time.Now().UTC(), orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordAttempt implements Persistence.
func (s *SQLite) RecordAttempt(ctx context.Context, orderID string, attempt payment.Attempt) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_attempts (transaction_id, order_id, provider,
			amount, currency, status, reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			status     = excluded.status,
			reason     = excluded.reason,
			updated_at = excluded.updated_at`,
		attempt.TransactionID, orderID, string(attempt.Provider),
		attempt.Amount, attempt.Currency, string(attempt.Status), attempt.Reason, now, now)
	return err
}

// Get implements Persistence.
func (s *SQLite) Get(ctx context.Context, orderID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, customer_json, items_json, subtotal,
			delivery_fee, total, status, fail_reason, paid_transaction_id,
			created_at, updated_at
		FROM orders WHERE id = ?`, orderID)

	var (
		rec            Record
		customerJSON   string
		itemsJSON      string
		status         string
	)
	err := row.Scan(&rec.OrderID, &rec.SessionID, &customerJSON, &itemsJSON,
		&rec.Subtotal, &rec.DeliveryFee, &rec.Total, &status,
		&rec.FailReason, &rec.PaidTxID, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Status = order.Status(status)
	if err := json.Unmarshal([]byte(customerJSON), &rec.Customer); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(itemsJSON), &rec.Items); err != nil {
		return nil, err
	}
	return &rec, nil
}
