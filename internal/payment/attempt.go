// Package payment provides the payment gateway abstraction, the concrete
// provider adapters, and the asynchronous reconciliation of provider
// callbacks into order state.
package payment

import (
	"fmt"
	"time"
)

// Provider identifies one of the supported payment providers. The set is
// closed: the gateway constructor takes exactly one adapter per provider.
type Provider string

const (
	ProviderWave        Provider = "wave"
	ProviderOrangeMoney Provider = "orange-money"
	ProviderCard        Provider = "card"
	ProviderCash        Provider = "cash"
)

// Providers lists every supported provider in presentation order.
var Providers = []Provider{ProviderWave, ProviderOrangeMoney, ProviderCard, ProviderCash}

// ParseProvider maps user input to a Provider.
func ParseProvider(s string) (Provider, error) {
	for _, p := range Providers {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("payment: unknown provider %q", s)
}

// Label returns the user-facing name of the provider.
func (p Provider) Label() string {
	switch p {
	case ProviderWave:
		return "Wave"
	case ProviderOrangeMoney:
		return "Orange Money"
	case ProviderCard:
		return "Bank card"
	case ProviderCash:
		return "Cash on delivery"
	default:
		return string(p)
	}
}

// AttemptStatus is the payment attempt lifecycle state.
type AttemptStatus string

const (
	StatusPending    AttemptStatus = "pending"
	StatusProcessing AttemptStatus = "processing"
	StatusCompleted  AttemptStatus = "completed"
	StatusFailed     AttemptStatus = "failed"
	StatusCancelled  AttemptStatus = "cancelled"
)

// Terminal reports whether no further transition is valid for s.
func (s AttemptStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Attempt is one outstanding request to a provider for a given order.
type Attempt struct {
	TransactionID string        `json:"transaction_id"`
	Provider      Provider      `json:"provider"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	Status        AttemptStatus `json:"status"`
	CheckoutURL   string        `json:"checkout_url,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
