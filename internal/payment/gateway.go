package payment

import (
	"context"
	"time"

	"github.com/teralab/chatorder/internal/apperr"
)

// Gateway is the uniform entry point over the closed provider set. The
// constructor takes one adapter per provider, so a missing provider is a
// wiring error caught at startup rather than a runtime string mismatch.
type Gateway struct {
	adapters map[Provider]Adapter
	sem      chan struct{}
}

// NewGateway creates a gateway over exactly the four supported providers.
// maxInFlight bounds concurrent outbound initiations across all sessions;
// values outside [1, 64] are clamped.
func NewGateway(wave, orangeMoney, card, cash Adapter, maxInFlight int) *Gateway {
	if wave == nil || orangeMoney == nil || card == nil || cash == nil {
		panic("payment.NewGateway: nil adapter")
	}
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if maxInFlight > 64 {
		maxInFlight = 64
	}
	return &Gateway{
		adapters: map[Provider]Adapter{
			ProviderWave:        wave,
			ProviderOrangeMoney: orangeMoney,
			ProviderCard:        card,
			ProviderCash:        cash,
		},
		sem: make(chan struct{}, maxInFlight),
	}
}

// Initiate opens a payment with the chosen provider and returns the
// resulting attempt. The customer block must be complete before any
// provider is contacted. Provider failures surface as classified errors;
// the attempt a caller holds stays failed, never silently succeeded.
func (g *Gateway) Initiate(ctx context.Context, provider Provider, req InitRequest) (Attempt, error) {
	if !req.Customer.Complete() {
		return Attempt{}, apperr.ErrCustomerIncomplete
	}
	adapter, ok := g.adapters[provider]
	if !ok {
		return Attempt{}, apperr.Validation("choose a payment method from the list")
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return Attempt{}, ctx.Err()
	}
	defer func() { <-g.sem }()

	res, err := adapter.Initiate(ctx, req)
	if err != nil {
		return Attempt{}, apperr.Provider(string(provider), err)
	}

	attempt := Attempt{
		TransactionID: res.TransactionID,
		Provider:      provider,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Status:        StatusPending,
		CheckoutURL:   res.CheckoutURL,
		CreatedAt:     time.Now(),
	}
	if res.Completed {
		attempt.Status = StatusCompleted
	}
	return attempt, nil
}
