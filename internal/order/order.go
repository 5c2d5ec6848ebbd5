// Package order holds the purchase aggregate: line items, customer data,
// totals, and the order status lifecycle. All mutation helpers are pure of
// I/O; collaborator checks happen in the callers that own them.
package order

import (
	"fmt"
	"time"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusFailed          Status = "failed"
	StatusAbandoned       Status = "abandoned"
)

// validTransitions encodes the monotonic lifecycle. The single exception is
// failed -> awaiting_payment, which a payment retry is allowed to take.
var validTransitions = map[Status][]Status{
	StatusDraft:           {StatusAwaitingPayment, StatusAbandoned},
	StatusAwaitingPayment: {StatusPaid, StatusFailed, StatusAbandoned},
	StatusFailed:          {StatusAwaitingPayment, StatusAbandoned},
}

// CanTransition reports whether to is reachable from s.
func (s Status) CanTransition(to Status) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Line is one order line with its computed total.
type Line struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

// Customer is the delivery contact block collected step by step.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	City      string `json:"city"`
	Address   string `json:"address"`
	Country   string `json:"country"`
}

// Complete reports whether every field required for a summary is present.
func (c Customer) Complete() bool {
	return c.FirstName != "" && c.LastName != "" && c.Phone != "" &&
		c.City != "" && c.Address != ""
}

// FullName returns "FirstName LastName".
func (c Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Draft is the accumulating purchase owned by one session.
type Draft struct {
	ID          string    `json:"id"`
	Items       []Line    `json:"items"`
	Customer    Customer  `json:"customer"`
	DeliveryFee int64     `json:"delivery_fee"`
	Subtotal    int64     `json:"subtotal"`
	Total       int64     `json:"total"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// New creates an empty draft with the given id.
func New(id string) *Draft {
	return &Draft{ID: id, Status: StatusDraft, CreatedAt: time.Now()}
}

// Recompute refreshes every line total and the draft totals. Call after any
// change to items or delivery fee.
func (d *Draft) Recompute() {
	var subtotal int64
	for i := range d.Items {
		d.Items[i].LineTotal = LineTotal(d.Items[i].UnitPrice, d.Items[i].Quantity)
		subtotal += d.Items[i].LineTotal
	}
	d.Subtotal = subtotal
	d.Total = subtotal + d.DeliveryFee
}

// AddItem appends a line, or raises the quantity if the product is already
// in the draft, then recomputes totals.
func (d *Draft) AddItem(productID, name string, unitPrice int64, quantity int) {
	for i := range d.Items {
		if d.Items[i].ProductID == productID {
			d.Items[i].Quantity += quantity
			d.Recompute()
			return
		}
	}
	d.Items = append(d.Items, Line{
		ProductID: productID,
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  quantity,
	})
	d.Recompute()
}

// SetQuantity replaces the quantity of an existing line.
func (d *Draft) SetQuantity(productID string, quantity int) error {
	for i := range d.Items {
		if d.Items[i].ProductID == productID {
			d.Items[i].Quantity = quantity
			d.Recompute()
			return nil
		}
	}
	return fmt.Errorf("order: product %s not in draft", productID)
}

// RemoveItem deletes a line and recomputes totals.
func (d *Draft) RemoveItem(productID string) {
	items := d.Items[:0]
	for _, l := range d.Items {
		if l.ProductID != productID {
			items = append(items, l)
		}
	}
	d.Items = items
	d.Recompute()
}

// Quantity returns the current quantity of a product, or 0.
func (d *Draft) Quantity(productID string) int {
	for _, l := range d.Items {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

// ResetCustomer clears the customer block and the delivery fee. Items are
// preserved; the user re-enters contact data from the first step.
func (d *Draft) ResetCustomer() {
	d.Customer = Customer{}
	d.DeliveryFee = 0
	d.Recompute()
}

// Summary is the pure projection used both for the chat summary message and
// for persistence.
type Summary struct {
	Lines       []Line
	Subtotal    int64
	DeliveryFee int64
	Total       int64
	Customer    Customer
}

// Summary projects the draft. The returned value shares no mutable state
// with the draft.
func (d *Draft) Summary() Summary {
	lines := make([]Line, len(d.Items))
	copy(lines, d.Items)
	return Summary{
		Lines:       lines,
		Subtotal:    d.Subtotal,
		DeliveryFee: d.DeliveryFee,
		Total:       d.Total,
		Customer:    d.Customer,
	}
}
