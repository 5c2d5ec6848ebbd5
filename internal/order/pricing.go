package order

// Bundle prices for two and three units. These are fixed tier prices set by
// the business, independent of the per-item unit price, and intentionally
// not derived from the 20% rule that applies from four units up.
const (
	DuoBundlePrice  int64 = 30000
	TrioBundlePrice int64 = 42000
)

// bulkDiscountNum/Den encode the 20% discount applied at four units and up.
const (
	bulkDiscountNum int64 = 80
	bulkDiscountDen int64 = 100
)

// LineTotal applies the tiered pricing rule for one line.
//
//	q == 1  -> unit price
//	q == 2  -> fixed duo bundle price
//	q == 3  -> fixed trio bundle price
//	q >= 4  -> unitPrice * q * 0.8, rounded down
func LineTotal(unitPrice int64, quantity int) int64 {
	switch {
	case quantity <= 0:
		return 0
	case quantity == 1:
		return unitPrice
	case quantity == 2:
		return DuoBundlePrice
	case quantity == 3:
		return TrioBundlePrice
	default:
		return unitPrice * int64(quantity) * bulkDiscountNum / bulkDiscountDen
	}
}
