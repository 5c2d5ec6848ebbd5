// Package delivery resolves delivery fees by city.
package delivery

import (
	"context"
	"strings"
)

// Pricer returns the delivery fee for a city, in minor units.
type Pricer interface {
	GetCost(ctx context.Context, city string) (int64, error)
}

// FlatRate charges nothing for the free-delivery city and a fixed fee
// everywhere else.
type FlatRate struct {
	FreeCity string
	Fee      int64
}

// NewFlatRate creates a pricer with the given free city and flat fee.
func NewFlatRate(freeCity string, fee int64) *FlatRate {
	return &FlatRate{FreeCity: freeCity, Fee: fee}
}

// GetCost implements Pricer. City matching is case-insensitive.
func (p *FlatRate) GetCost(_ context.Context, city string) (int64, error) {
	if strings.EqualFold(strings.TrimSpace(city), p.FreeCity) {
		return 0, nil
	}
	return p.Fee, nil
}
