package conversation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teralab/chatorder/internal/catalog"
	"github.com/teralab/chatorder/internal/delivery"
	"github.com/teralab/chatorder/internal/inventory"
	"github.com/teralab/chatorder/internal/model"
	"github.com/teralab/chatorder/internal/order"
	"github.com/teralab/chatorder/internal/payment"
	"github.com/teralab/chatorder/internal/recommend"
	"github.com/teralab/chatorder/internal/session"
	"github.com/teralab/chatorder/internal/storage"
)

// --- test doubles ---

type stubAdapter struct {
	provider payment.Provider
	err      error
	counter  atomic.Int64
}

func (s *stubAdapter) Provider() payment.Provider { return s.provider }

func (s *stubAdapter) Initiate(_ context.Context, _ payment.InitRequest) (payment.InitResult, error) {
	if s.err != nil {
		return payment.InitResult{}, s.err
	}
	n := s.counter.Add(1)
	if s.provider == payment.ProviderCash {
		return payment.InitResult{TransactionID: fmt.Sprintf("cash-%d", n), Completed: true}, nil
	}
	id := fmt.Sprintf("%s-tx-%d", s.provider, n)
	return payment.InitResult{
		TransactionID: id,
		CheckoutURL:   "https://pay.example/" + id,
	}, nil
}

type errPricer struct{ err error }

func (p errPricer) GetCost(context.Context, string) (int64, error) { return 0, p.err }

// syncBuffer collects engine log output from concurrent goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// --- harness ---

type env struct {
	engine   *Engine
	sessions *session.Manager
	bus      *payment.MemoryBus
	rec      *payment.Reconciler
	stock    *inventory.Memory
	wave     *stubAdapter
	notified chan *model.AssistantMessage
	logs     *syncBuffer
}

type envOpts struct {
	paymentTimeout time.Duration
	pricer         delivery.Pricer
	waveErr        error
	stock          map[string]int
}

func newEnv(t *testing.T, opts envOpts) *env {
	t.Helper()

	store, err := session.NewStore(session.StoreTypeMemory,
		session.WithTTL(time.Minute), session.WithSweepInterval(0))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	sessions := session.NewManager(store)
	t.Cleanup(func() { _ = sessions.Close() })

	stockLevels := opts.stock
	if stockLevels == nil {
		stockLevels = map[string]int{"karite-250": 10, "black-soap": 10, "baobab-oil": 10}
	}
	stock := inventory.NewMemory(stockLevels)

	wave := &stubAdapter{provider: payment.ProviderWave, err: opts.waveErr}
	gateway := payment.NewGateway(
		wave,
		&stubAdapter{provider: payment.ProviderOrangeMoney},
		&stubAdapter{provider: payment.ProviderCard},
		&stubAdapter{provider: payment.ProviderCash},
		4,
	)

	pricer := opts.pricer
	if pricer == nil {
		pricer = delivery.NewFlatRate("Dakar", 2000)
	}

	logs := &syncBuffer{}
	engine := New(Config{
		Sessions:  sessions,
		Catalog:   catalog.NewStatic(testProducts()),
		Inventory: stock,
		Stock:     stock,
		Delivery:  pricer,
		Gateway:   gateway,
		Recommend: recommend.New(testCrossSell(), 4, 0.75),
		Persist:   storage.Noop{},
		Logger:    slog.New(slog.NewTextHandler(logs, nil)),
	})

	timeout := opts.paymentTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	bus := payment.NewMemoryBus()
	rec := payment.NewReconciler(bus, engine.ApplyPaymentOutcome, timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(rec.Close)
	engine.SetWatcher(rec)

	notified := make(chan *model.AssistantMessage, 8)
	engine.SetNotifier(func(_ string, msg *model.AssistantMessage) {
		notified <- msg
	})

	return &env{
		engine:   engine,
		sessions: sessions,
		bus:      bus,
		rec:      rec,
		stock:    stock,
		wave:     wave,
		notified: notified,
		logs:     logs,
	}
}

func testProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "karite-250", Name: "Shea Butter 250g", Price: 15000},
		{ID: "black-soap", Name: "Black Soap", Price: 5000},
		{ID: "baobab-oil", Name: "Baobab Oil 100ml", Price: 12000},
	}
}

func testCrossSell() map[string][]recommend.Candidate {
	return map[string][]recommend.Candidate{
		"karite-250": {
			{ProductID: "baobab-oil", Name: "Baobab Oil 100ml", Reason: "pairs well", Priority: 1},
			{ProductID: "black-soap", Name: "Black Soap", Reason: "popular together", Priority: 2},
		},
	}
}

func (e *env) send(t *testing.T, sessionID, text string) *model.AssistantMessage {
	t.Helper()
	msg, err := e.engine.HandleUserInput(context.Background(), sessionID, text)
	if err != nil {
		t.Fatalf("HandleUserInput(%q): %v", text, err)
	}
	return msg
}

func (e *env) state(t *testing.T, sessionID string) *session.Data {
	t.Helper()
	data, err := e.sessions.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("session get: %v", err)
	}
	if data == nil {
		t.Fatal("session missing")
	}
	return data
}

// walkToSummary drives a fresh session up to the summary step.
func (e *env) walkToSummary(t *testing.T, sessionID string) {
	t.Helper()
	e.send(t, sessionID, "Shea Butter 250g")
	e.send(t, sessionID, "Jean Dupont")
	e.send(t, sessionID, "Dakar")
	e.send(t, sessionID, "12 Rue Felix Faure")
	e.send(t, sessionID, "77 123 45 67")
}

func (e *env) waitNotification(t *testing.T) *model.AssistantMessage {
	t.Helper()
	select {
	case msg := <-e.notified:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for out-of-band message")
		return nil
	}
}

// --- tests ---

func TestStartSession_ProductInterest(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{})
	msg := e.send(t, "s-1", "Shea Butter 250g")

	if !strings.Contains(msg.Text, "first and last name") {
		t.Fatalf("expected contact-info prompt, got %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "Shea Butter 250g for 15000 FCFA") {
		t.Fatalf("expected product and price in greeting, got %q", msg.Text)
	}
	if msg.Metadata.NextStep != string(session.StepContactInfo) {
		t.Fatalf("next step = %s", msg.Metadata.NextStep)
	}
	if len(msg.Metadata.Recommendations) == 0 {
		t.Fatal("expected cross-sell recommendations on session start")
	}

	data := e.state(t, "s-1")
	if data.Order.Items[0].ProductID != "karite-250" {
		t.Fatalf("unexpected item: %+v", data.Order.Items)
	}
}

func TestStartSession_WithQuantity(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{})
	e.send(t, "s-1", "Shea Butter 250g 2")

	data := e.state(t, "s-1")
	if data.Order.Items[0].Quantity != 2 {
		t.Fatalf("quantity = %d, want 2", data.Order.Items[0].Quantity)
	}
	if data.Order.Subtotal != order.DuoBundlePrice {
		t.Fatalf("subtotal = %d, want duo bundle", data.Order.Subtotal)
	}
}

func TestStartSession_UnknownProduct(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{})
	msg := e.send(t, "s-1", "a flying carpet")

	if !strings.Contains(msg.Text, "which product") {
		t.Fatalf("expected product prompt, got %q", msg.Text)
	}
	if data, _ := e.sessions.Get(context.Background(), "s-1"); data != nil {
		t.Fatal("no session should exist after unresolved interest")
	}
}

func TestStartSession_OutOfStock(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{stock: map[string]int{"karite-250": 0}})
	msg := e.send(t, "s-1", "Shea Butter 250g")

	if !strings.Contains(msg.Text, "out of stock") {
		t.Fatalf("expected out-of-stock message, got %q", msg.Text)
	}
}

func TestFullFlow_CashPayment(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{})
	e.walkToSummary(t, "s-1")

	summary := e.state(t, "s-1")
	if summary.CurrentStep != session.StepSummary {
		t.Fatalf("step = %s, want summary", summary.CurrentStep)
	}
	if summary.Order.Customer.FirstName != "Jean" || summary.Order.Customer.LastName != "Dupont" {
		t.Fatalf("customer = %+v", summary.Order.Customer)
	}
	if summary.Order.DeliveryFee != 0 {
		t.Fatalf("delivery fee for Dakar = %d, want 0", summary.Order.DeliveryFee)
	}

	msg := e.send(t, "s-1", "confirmed")
	if msg.Metadata.NextStep != string(session.StepPaymentMethod) {
		t.Fatalf("next step = %s, want payment-method", msg.Metadata.NextStep)
	}
	if len(msg.Choices) != 4 {
		t.Fatalf("expected 4 payment choices, got %d", len(msg.Choices))
	}

	msg = e.send(t, "s-1", "cash")
	if !strings.Contains(msg.Text, "pay") || !strings.Contains(msg.Text, "12 Rue Felix Faure") {
		t.Fatalf("confirmation must mention cash and address, got %q", msg.Text)
	}
	if msg.Metadata.NextStep != string(session.StepPaymentCompleted) {
		t.Fatalf("next step = %s, want payment-completed", msg.Metadata.NextStep)
	}

	data := e.state(t, "s-1")
	if data.Order.Status != order.StatusPaid {
		t.Fatalf("order status = %s, want paid", data.Order.Status)
	}
	if data.Payment == nil || data.Payment.Status != payment.StatusCompleted {
		t.Fatalf("attempt = %+v", data.Payment)
	}

	// Cash decrements stock immediately.
	available, _ := e.stock.CheckAvailability(context.Background(), "karite-250", 10)
	if available {
		t.Fatal("expected stock decremented below 10")
	}
}

func TestFullFlow_MobileMoney(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{})
	e.walkToSummary(t, "s-1")
	e.send(t, "s-1", "confirmed")

	msg := e.send(t, "s-1", "wave")
	if msg.Metadata.NextStep != string(session.StepPaymentProcessing) {
		t.Fatalf("next step = %s, want payment-processing", msg.Metadata.NextStep)
	}
	if msg.Metadata.CheckoutURL == "" {
		t.Fatal("expected checkout url in metadata")
	}
	if msg.Metadata.PaymentStatus != string(payment.StatusPending) {
		t.Fatalf("payment status = %s, want pending", msg.Metadata.PaymentStatus)
	}

	data := e.state(t, "s-1")
	if !data.PaymentPending {
		t.Fatal("expected keep-alive flag while pending")
	}
	txID := data.Payment.TransactionID

	// Asking again while processing answers with status, not an error.
	msg = e.send(t, "s-1", "is it done?")
	if !strings.Contains(msg.Text, "processing") {
		t.Fatalf("expected processing status, got %q", msg.Text)
	}

	if !e.bus.Publish(payment.Event{TransactionID: txID, Success: true}) {
		t.Fatal("expected event delivery")
	}
	final := e.waitNotification(t)
	if !strings.Contains(final.Text, "12 Rue Felix Faure") {
		t.Fatalf("confirmation must contain the delivery address, got %q", final.Text)
	}

	data = e.state(t, "s-1")
	if data.Order.Status != order.StatusPaid {
		t.Fatalf("order status = %s, want paid", data.Order.Status)
	}
	if data.CurrentStep != session.StepPaymentCompleted {
		t.Fatalf("step = %s, want payment-completed", data.CurrentStep)
	}
	if data.PaymentPending {
		t.Fatal("keep-alive flag must clear on terminal outcome")
	}
}

func TestPaymentOutcome_Idempotent(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{})
	e.walkToSummary(t, "s-1")
	e.send(t, "s-1", "confirmed")
	e.send(t, "s-1", "wave")

	txID := e.state(t, "s-1").Payment.TransactionID

	e.engine.ApplyPaymentOutcome(context.Background(), "s-1", txID, true, "")
	first := e.waitNotification(t)
	if first == nil {
		t.Fatal("expected first notification")
	}

	// Second delivery of the same terminal event is a no-op.
	e.engine.ApplyPaymentOutcome(context.Background(), "s-1", txID, true, "")
	select {
	case <-e.notified:
		t.Fatal("duplicate outcome must not notify again")
	case <-time.After(100 * time.Millisecond):
	}

	data := e.state(t, "s-1")
	if data.Order.Status != order.StatusPaid {
		t.Fatalf("order status = %s, want paid", data.Order.Status)
	}
}

func TestPaymentOutcome_MissingSession(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{})
	e.walkToSummary(t, "s-1")
	e.send(t, "s-1", "confirmed")
	e.send(t, "s-1", "wave")

	txID := e.state(t, "s-1").Payment.TransactionID

	// The session is evicted while the attempt is still pending.
	if err := e.sessions.Delete(context.Background(), "s-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	e.engine.ApplyPaymentOutcome(context.Background(), "s-1", txID, true, "")

	select {
	case msg := <-e.notified:
		t.Fatalf("unexpected notification for a missing session: %q", msg.Text)
	case <-time.After(100 * time.Millisecond):
	}
	if !strings.Contains(e.logs.String(), "payment outcome for missing session") {
		t.Fatal("an outcome landing on a missing session must reach the operator log")
	}
}

func TestPaymentFailure_ThenRetryWithCash(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{})
	e.walkToSummary(t, "s-1")
	e.send(t, "s-1", "confirmed")
	e.send(t, "s-1", "wave")

	txID := e.state(t, "s-1").Payment.TransactionID
	e.bus.Publish(payment.Event{TransactionID: txID, Success: false, Reason: "declined"})

	failMsg := e.waitNotification(t)
	if len(failMsg.Choices) == 0 {
		t.Fatal("failure message must offer a way forward")
	}

	data := e.state(t, "s-1")
	if data.CurrentStep != session.StepPaymentFailed {
		t.Fatalf("step = %s, want payment-failed", data.CurrentStep)
	}
	if data.Order.Status != order.StatusFailed {
		t.Fatalf("order status = %s, want failed", data.Order.Status)
	}

	msg := e.send(t, "s-1", "retry")
	if msg.Metadata.NextStep != string(session.StepPaymentMethod) {
		t.Fatalf("next step = %s, want payment-method", msg.Metadata.NextStep)
	}

	msg = e.send(t, "s-1", "cash")
	if msg.Metadata.NextStep != string(session.StepPaymentCompleted) {
		t.Fatalf("next step = %s, want payment-completed", msg.Metadata.NextStep)
	}

	// The failed wave attempt stays on record.
	data = e.state(t, "s-1")
	if len(data.PriorAttempts) != 1 || data.PriorAttempts[0].Status != payment.StatusFailed {
		t.Fatalf("prior attempts = %+v", data.PriorAttempts)
	}
}

func TestPaymentTimeout_FailsOnce(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{paymentTimeout: 50 * time.Millisecond})
	e.walkToSummary(t, "s-1")
	e.send(t, "s-1", "confirmed")
	e.send(t, "s-1", "wave")

	msg := e.waitNotification(t)
	if !strings.Contains(msg.Text, "confirmation in time") {
		t.Fatalf("expected timeout wording, got %q", msg.Text)
	}

	data := e.state(t, "s-1")
	if data.CurrentStep != session.StepPaymentFailed {
		t.Fatalf("step = %s, want payment-failed", data.CurrentStep)
	}
	if data.Payment.Reason != "timeout" {
		t.Fatalf("reason = %q, want timeout", data.Payment.Reason)
	}

	select {
	case <-e.notified:
		t.Fatal("timeout must fire exactly once")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestProviderInitiationFailure_OffersAlternatives(t *testing.T) {
	t.Parallel()

	e := newEnv(t, envOpts{waveErr: errors.New("503 upstream")})
	e.walkToSummary(t, "s-1")
	e.send(t, "s-1", "confirmed")

	msg := e.send(t, "s-1", "wave")
	if !strings.Contains(msg.Text, "pick another") {
		t.Fatalf("expected alternate-provider message, got %q", msg.Text)
	}
	if len(msg.Choices) < 4 {
		t.Fatalf("expected provider choices, got %+v", msg.Choices)
	}

	// Step pointer did not advance; another provider still works.
	data := e.state(t, "s-1")
	if data.CurrentStep != session.StepPaymentMethod {
		t.Fatalf("step = %s, want payment-method", data.CurrentStep)
	}
	final := e.send(t, "s-1", "cash")
	if final.Metadata.NextStep != string(session.StepPaymentCompleted) {
		t.Fatalf("next step = %s, want payment-completed", final.Metadata.NextStep)
	}
}

func TestCollaboratorFailure_RecoveryAndRetry(t *testing.T) {
	t.Parallel()

	pricer := &flakyPricer{failures: 1, fee: 2000}
	e := newEnv(t, envOpts{pricer: pricer})

	e.send(t, "s-1", "Shea Butter 250g")
	e.send(t, "s-1", "Jean Dupont")

	msg := e.send(t, "s-1", "Thiès")
	if msg.Metadata.NextStep != string(session.StepErrorRecovery) {
		t.Fatalf("next step = %s, want error-recovery", msg.Metadata.NextStep)
	}
	if len(msg.Choices) == 0 {
		t.Fatal("recovery message must offer choices")
	}

	msg = e.send(t, "s-1", "retry")
	if msg.Metadata.NextStep != string(session.StepCity) {
		t.Fatalf("next step = %s, want city", msg.Metadata.NextStep)
	}

	msg = e.send(t, "s-1", "Thiès")
	if msg.Metadata.NextStep != string(session.StepAddress) {
		t.Fatalf("next step = %s, want address", msg.Metadata.NextStep)
	}
	if e.state(t, "s-1").Order.DeliveryFee != 2000 {
		t.Fatalf("delivery fee = %d, want 2000", e.state(t, "s-1").Order.DeliveryFee)
	}
}

// flakyPricer fails the first n calls and then succeeds with a fixed fee.
type flakyPricer struct {
	failures int
	fee      int64
}

func (p *flakyPricer) GetCost(_ context.Context, city string) (int64, error) {
	if p.failures > 0 {
		p.failures--
		return 0, errors.New("connection refused")
	}
	if strings.EqualFold(city, "Dakar") {
		return 0, nil
	}
	return p.fee, nil
}
