package order

import "testing"

func TestDraftTotals(t *testing.T) {
	t.Parallel()

	d := New("o-1")
	d.AddItem("p1", "Shea Butter 250g", 15000, 1)
	d.AddItem("p2", "Black Soap", 5000, 1)

	if d.Subtotal != 20000 {
		t.Fatalf("subtotal = %d, want 20000", d.Subtotal)
	}

	d.DeliveryFee = 2000
	d.Recompute()
	if d.Total != 22000 {
		t.Fatalf("total = %d, want 22000", d.Total)
	}
}

func TestDraftAddItem_MergesExistingLine(t *testing.T) {
	t.Parallel()

	d := New("o-1")
	d.AddItem("p1", "Shea Butter 250g", 15000, 1)
	d.AddItem("p1", "Shea Butter 250g", 15000, 1)

	if len(d.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(d.Items))
	}
	if d.Items[0].Quantity != 2 {
		t.Fatalf("quantity = %d, want 2", d.Items[0].Quantity)
	}
	if d.Items[0].LineTotal != DuoBundlePrice {
		t.Fatalf("line total = %d, want duo bundle %d", d.Items[0].LineTotal, DuoBundlePrice)
	}
}

func TestDraftSetQuantity(t *testing.T) {
	t.Parallel()

	d := New("o-1")
	d.AddItem("p1", "Shea Butter 250g", 15000, 1)

	if err := d.SetQuantity("p1", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := int64(15000) * 4 * 80 / 100
	if d.Subtotal != want {
		t.Fatalf("subtotal = %d, want %d", d.Subtotal, want)
	}

	if err := d.SetQuantity("missing", 2); err == nil {
		t.Fatal("expected error for unknown product")
	}
}

func TestDraftRemoveItem(t *testing.T) {
	t.Parallel()

	d := New("o-1")
	d.AddItem("p1", "Shea Butter 250g", 15000, 1)
	d.AddItem("p2", "Black Soap", 5000, 1)
	d.RemoveItem("p1")

	if len(d.Items) != 1 || d.Items[0].ProductID != "p2" {
		t.Fatalf("unexpected items after remove: %+v", d.Items)
	}
	if d.Subtotal != 5000 {
		t.Fatalf("subtotal = %d, want 5000", d.Subtotal)
	}
}

func TestDraftResetCustomer_PreservesItems(t *testing.T) {
	t.Parallel()

	d := New("o-1")
	d.AddItem("p1", "Shea Butter 250g", 15000, 2)
	d.Customer = Customer{FirstName: "Jean", LastName: "Dupont", City: "Dakar", Address: "12 Rue Felix", Phone: "771234567"}
	d.DeliveryFee = 2000
	d.Recompute()

	d.ResetCustomer()

	if d.Customer != (Customer{}) {
		t.Fatalf("customer not cleared: %+v", d.Customer)
	}
	if d.DeliveryFee != 0 {
		t.Fatalf("delivery fee = %d, want 0", d.DeliveryFee)
	}
	if len(d.Items) != 1 {
		t.Fatal("items must be preserved on reset")
	}
	if d.Total != DuoBundlePrice {
		t.Fatalf("total = %d, want %d", d.Total, DuoBundlePrice)
	}
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{name: "draft_to_awaiting", from: StatusDraft, to: StatusAwaitingPayment, want: true},
		{name: "awaiting_to_paid", from: StatusAwaitingPayment, to: StatusPaid, want: true},
		{name: "awaiting_to_failed", from: StatusAwaitingPayment, to: StatusFailed, want: true},
		{name: "failed_retry", from: StatusFailed, to: StatusAwaitingPayment, want: true},
		{name: "paid_is_terminal", from: StatusPaid, to: StatusFailed, want: false},
		{name: "draft_cannot_pay", from: StatusDraft, to: StatusPaid, want: false},
		{name: "failed_cannot_pay_directly", from: StatusFailed, to: StatusPaid, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Fatalf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestCustomerComplete(t *testing.T) {
	t.Parallel()

	c := Customer{FirstName: "Jean", LastName: "Dupont", Phone: "771234567", City: "Dakar", Address: "12 Rue Felix"}
	if !c.Complete() {
		t.Fatal("expected complete customer")
	}
	c.Phone = ""
	if c.Complete() {
		t.Fatal("expected incomplete customer without phone")
	}
}

func TestSummaryIsDetached(t *testing.T) {
	t.Parallel()

	d := New("o-1")
	d.AddItem("p1", "Shea Butter 250g", 15000, 1)
	s := d.Summary()

	s.Lines[0].Quantity = 99
	if d.Items[0].Quantity != 1 {
		t.Fatal("summary must not alias draft items")
	}
}
