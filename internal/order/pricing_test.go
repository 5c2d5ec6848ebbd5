package order

import "testing"

func TestLineTotal(t *testing.T) {
	t.Parallel()

	const unit = int64(15000)

	tests := []struct {
		name     string
		quantity int
		want     int64
	}{
		{name: "zero", quantity: 0, want: 0},
		{name: "negative", quantity: -1, want: 0},
		{name: "single_unit_price", quantity: 1, want: unit},
		{name: "duo_bundle", quantity: 2, want: DuoBundlePrice},
		{name: "trio_bundle", quantity: 3, want: TrioBundlePrice},
		{name: "four_units_20_off", quantity: 4, want: unit * 4 * 80 / 100},
		{name: "ten_units_20_off", quantity: 10, want: unit * 10 * 80 / 100},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := LineTotal(unit, tt.quantity)
			if got != tt.want {
				t.Fatalf("LineTotal(%d, %d) = %d, want %d", unit, tt.quantity, got, tt.want)
			}
		})
	}
}

func TestLineTotal_BundlesIgnoreUnitPrice(t *testing.T) {
	t.Parallel()

	// The duo and trio tiers are fixed business prices, not derived from
	// the unit price.
	for _, unit := range []int64{1000, 15000, 99999} {
		if got := LineTotal(unit, 2); got != DuoBundlePrice {
			t.Fatalf("duo price for unit %d = %d, want %d", unit, got, DuoBundlePrice)
		}
		if got := LineTotal(unit, 3); got != TrioBundlePrice {
			t.Fatalf("trio price for unit %d = %d, want %d", unit, got, TrioBundlePrice)
		}
	}
}
