// Package apperr defines the error taxonomy shared by the conversation
// engine, the payment gateway, and the HTTP transport.
//
// Errors carry a classification kind so that callers can map them to a
// recovery message or an HTTP status without inspecting error strings.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Classification kinds.
const (
	KindValidation      = "validation"
	KindOutOfStock      = "out_of_stock"
	KindCollaborator    = "collaborator"
	KindPaymentProvider = "payment_provider"
	KindSessionExpired  = "session_expired"
	KindTimeout         = "timeout"
	KindCanceled        = "canceled"
	KindInternal        = "internal"
)

// kinder is satisfied by domain errors that carry a classification kind.
type kinder interface {
	Kind() string
}

type kindError struct {
	kind string
	msg  string
}

func (e kindError) Error() string { return e.msg }
func (e kindError) Kind() string  { return e.kind }

var (
	// ErrOutOfStock is returned when the inventory collaborator refuses a
	// requested quantity.
	ErrOutOfStock = kindError{kind: KindOutOfStock, msg: "out of stock"}

	// ErrCustomerIncomplete is returned when payment initiation is requested
	// before the customer block is fully collected.
	ErrCustomerIncomplete = kindError{kind: KindValidation, msg: "provide your contact and delivery details first"}

	// ErrSessionExpired is returned when a session id references no live
	// session. Fatal for that session; the user must restart.
	ErrSessionExpired = kindError{kind: KindSessionExpired, msg: "session expired"}
)

// Validation reports a bad-user-input error with a user-facing re-prompt
// message. Always recoverable locally.
func Validation(msg string) error {
	return kindError{kind: KindValidation, msg: msg}
}

// Collaborator wraps a failed lookup against an external collaborator
// (inventory, delivery pricing, catalog, persistence).
func Collaborator(op string, err error) error {
	return wrapped{kind: KindCollaborator, msg: op, err: err}
}

// Provider wraps a failed payment-provider initiation.
func Provider(provider string, err error) error {
	return wrapped{kind: KindPaymentProvider, msg: provider, err: err}
}

type wrapped struct {
	kind string
	msg  string
	err  error
}

func (e wrapped) Error() string { return fmt.Sprintf("%s: %v", e.msg, e.err) }
func (e wrapped) Kind() string  { return e.kind }
func (e wrapped) Unwrap() error { return e.err }

// Kind returns the classification kind of err, or "" for nil.
// Unclassified errors report KindInternal.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var k kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindInternal
	}
}

// IsValidation reports whether err is a user-input validation error.
func IsValidation(err error) bool { return Kind(err) == KindValidation }
