// Package storage persists confirmed orders and their payment attempts.
//
// The conversation engine writes through the Persistence interface; the
// SQLite implementation is the production default and a no-op variant backs
// tests that do not care about persistence.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/teralab/chatorder/internal/order"
	"github.com/teralab/chatorder/internal/payment"
)

var (
	// ErrNotFound is returned when a requested order doesn't exist.
	ErrNotFound = errors.New("order not found")
)

// Record is the persisted projection of an order.
type Record struct {
	OrderID     string
	SessionID   string
	Customer    order.Customer
	Items       []order.Line
	Subtotal    int64
	DeliveryFee int64
	Total       int64
	Status      order.Status
	FailReason  string
	PaidTxID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Persistence stores orders and payment attempts.
type Persistence interface {
	// Save inserts or replaces the draft for the given session.
	Save(ctx context.Context, sessionID string, draft *order.Draft) error

	// MarkPaid flips the order to paid and records the winning transaction.
	MarkPaid(ctx context.Context, orderID, transactionID string) error

	// MarkFailed flips the order to failed with a reason.
	MarkFailed(ctx context.Context, orderID, reason string) error

	// RecordAttempt upserts one payment attempt for audit.
	RecordAttempt(ctx context.Context, orderID string, attempt payment.Attempt) error

	// Get returns the persisted order projection.
	Get(ctx context.Context, orderID string) (*Record, error)

	// Close releases resources.
	Close() error
}

// Noop discards everything. Used in tests and in deployments that disable
// persistence by configuration.
type Noop struct{}

// Save implements Persistence.
func (Noop) Save(context.Context, string, *order.Draft) error { return nil }

// MarkPaid implements Persistence.
func (Noop) MarkPaid(context.Context, string, string) error { return nil }

// MarkFailed implements Persistence.
func (Noop) MarkFailed(context.Context, string, string) error { return nil }

// RecordAttempt implements Persistence.
func (Noop) RecordAttempt(context.Context, string, payment.Attempt) error { return nil }

// Get implements Persistence.
func (Noop) Get(context.Context, string) (*Record, error) { return nil, ErrNotFound }

// Close implements Persistence.
func (Noop) Close() error { return nil }
