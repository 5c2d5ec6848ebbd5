// Package conversation implements the scripted purchase funnel: a state
// machine that walks one customer from product interest through data
// collection to payment, and folds asynchronous payment outcomes back into
// the same session state.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/teralab/chatorder/internal/apperr"
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

// Watcher starts payment reconciliation for a pending attempt.
type Watcher interface {
	Watch(sessionID, transactionID string) error
}

// StockDecrementer reduces stock after a paid order. Optional; inventory
// backends that settle stock elsewhere leave it nil.
type StockDecrementer interface {
	Decrement(ctx context.Context, productID string, quantity int) error
}

// Config wires the engine's collaborators.
type Config struct {
	Sessions  *session.Manager
	Catalog   catalog.Catalog
	Inventory inventory.Checker
	Stock     StockDecrementer
	Delivery  delivery.Pricer
	Gateway   *payment.Gateway
	Recommend *recommend.Engine
	Persist   storage.Persistence
	Logger    *slog.Logger
	Currency  string
}

// Engine is the conversation state machine. One instance serves all
// sessions; per-session serialization is enforced by the session manager.
type Engine struct {
	sessions  *session.Manager
	catalog   catalog.Catalog
	inventory inventory.Checker
	stock     StockDecrementer
	delivery  delivery.Pricer
	gateway   *payment.Gateway
	recommend *recommend.Engine
	persist   storage.Persistence
	log       *slog.Logger
	currency  string

	watcher Watcher
	notify  func(sessionID string, msg *model.AssistantMessage)
}

// New creates an engine. Sessions, Catalog, Inventory, Delivery, and
// Gateway are required.
func New(cfg Config) *Engine {
	if cfg.Sessions == nil || cfg.Catalog == nil || cfg.Inventory == nil ||
		cfg.Delivery == nil || cfg.Gateway == nil {
		panic("conversation.New: missing collaborator")
	}
	if cfg.Persist == nil {
		cfg.Persist = storage.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Currency == "" {
		cfg.Currency = "XOF"
	}
	return &Engine{
		sessions:  cfg.Sessions,
		catalog:   cfg.Catalog,
		inventory: cfg.Inventory,
		stock:     cfg.Stock,
		delivery:  cfg.Delivery,
		gateway:   cfg.Gateway,
		recommend: cfg.Recommend,
		persist:   cfg.Persist,
		log:       cfg.Logger,
		currency:  cfg.Currency,
	}
}

// SetWatcher installs the reconciliation watcher. Must be called before
// the first payment initiation; kept out of New because the reconciler's
// apply path points back at this engine.
func (e *Engine) SetWatcher(w Watcher) { e.watcher = w }

// SetNotifier installs the out-of-band message sink used for terminal
// payment messages. Defaults to logging.
func (e *Engine) SetNotifier(fn func(sessionID string, msg *model.AssistantMessage)) {
	e.notify = fn
}

// HandleUserInput is the single entry point for the chat UI. An unknown
// session id starts a new session from a product-interest message. The
// returned message always carries at least one way forward.
func (e *Engine) HandleUserInput(ctx context.Context, sessionID, text string) (*model.AssistantMessage, error) {
	text = strings.TrimSpace(text)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	existing, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, apperr.Collaborator("session lookup", err)
	}
	if existing == nil {
		return e.startSession(ctx, sessionID, text)
	}

	var msg *model.AssistantMessage
	_, err = e.sessions.Mutate(ctx, sessionID, func(data *session.Data) error {
		msg = e.step(ctx, data, text)
		return nil
	})
	if err != nil {
		return nil, apperr.Collaborator("session update", err)
	}
	if msg == nil {
		// Session vanished between Get and Mutate (TTL race); start over.
		return e.startSession(ctx, sessionID, text)
	}
	return msg, nil
}

// step runs the handler for the current step and funnels every failure
// through the recovery policy. It never returns an error: the conversation
// must always answer.
func (e *Engine) step(ctx context.Context, data *session.Data, text string) *model.AssistantMessage {
	msg, err := e.handleStep(ctx, data, text)
	if err == nil {
		return msg
	}
	return e.recover(data, text, err)
}

// startSession interprets the first message as product interest, creates
// the session, and asks for contact info.
func (e *Engine) startSession(ctx context.Context, sessionID, text string) (*model.AssistantMessage, error) {
	product, quantity, err := e.resolveInterest(ctx, text)
	if err != nil {
		// No session exists yet, so there is no step pointer to keep; a
		// plain validation prompt is the whole recovery.
		return &model.AssistantMessage{
			Text:     userMessage(err),
			Metadata: model.Metadata{SessionID: sessionID},
		}, nil
	}

	available, err := e.inventory.CheckAvailability(ctx, product.ID, quantity)
	if err != nil {
		return nil, apperr.Collaborator("inventory check", err)
	}
	if !available {
		return &model.AssistantMessage{
			Text:     fmt.Sprintf("Sorry, %s is currently out of stock.", product.Name),
			Metadata: model.Metadata{SessionID: sessionID},
		}, nil
	}

	draft := order.New(uuid.NewString())
	draft.AddItem(product.ID, product.Name, product.Price, quantity)

	data := &session.Data{
		ID:          sessionID,
		CurrentStep: session.StepContactInfo,
		Order:       *draft,
	}
	if err := e.sessions.Create(ctx, data); err != nil {
		return nil, apperr.Collaborator("session create", err)
	}

	recs := e.recommendations(product.ID, intentScore(text, quantity))
	msg := e.reply(data, fmt.Sprintf(
		"Great choice! %s for %s. To prepare your order, may I have your first and last name?",
		product.Name, e.amount(order.LineTotal(product.Price, quantity))))
	msg.Metadata.Recommendations = recs
	return msg, nil
}

// resolveInterest matches the first message against the catalog. A
// trailing integer token is taken as the quantity.
func (e *Engine) resolveInterest(ctx context.Context, text string) (catalog.Product, int, error) {
	quantity := 1
	fields := strings.Fields(text)
	if len(fields) > 1 {
		if n, err := parseQuantity(fields[len(fields)-1]); err == nil {
			quantity = n
			text = strings.Join(fields[:len(fields)-1], " ")
		}
	}
	product, err := e.catalog.Resolve(ctx, text)
	if err != nil {
		return catalog.Product{}, 0, err
	}
	return product, quantity, nil
}

func (e *Engine) recommendations(productID string, score float64) []model.Recommendation {
	if e.recommend == nil {
		return nil
	}
	candidates := e.recommend.For(productID, score)
	out := make([]model.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, model.Recommendation{
			ProductID: c.ProductID,
			Name:      c.Name,
			Reason:    c.Reason,
			Priority:  c.Priority,
		})
	}
	return out
}

// intentScore is a coarse purchase-intent heuristic: multiple units or
// explicit buying language read as high intent.
func intentScore(text string, quantity int) float64 {
	score := 0.5
	if quantity >= 2 {
		score += 0.2
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, "buy") || strings.Contains(lower, "order") {
		score += 0.2
	}
	return score
}

// parseQuantity accepts pure integer tokens only, so product names ending
// in a size like "250g" are not misread as quantities.
func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("quantity must be at least 1")
	}
	return n, nil
}

// ApplyPaymentOutcome is the reconciliation apply path. It runs through
// the same single-writer session mutation as step handlers and is
// idempotent: an outcome for an already-terminal transaction is logged and
// dropped.
func (e *Engine) ApplyPaymentOutcome(ctx context.Context, sessionID, transactionID string, success bool, reason string) {
	var msg *model.AssistantMessage
	data, err := e.sessions.Mutate(ctx, sessionID, func(data *session.Data) error {
		attempt := data.Payment
		if attempt == nil || attempt.TransactionID != transactionID {
			e.log.Warn("payment outcome for unknown attempt",
				"session_id", sessionID, "transaction_id", transactionID)
			return nil
		}
		if attempt.Status.Terminal() {
			e.log.Info("duplicate payment outcome ignored",
				"session_id", sessionID, "transaction_id", transactionID)
			return nil
		}

		data.PaymentPending = false
		if success {
			attempt.Status = payment.StatusCompleted
			msg = e.completeOrder(ctx, data)
		} else {
			attempt.Status = payment.StatusFailed
			attempt.Reason = reason
			msg = e.failOrder(ctx, data, reason)
		}
		return nil
	})
	if err != nil {
		e.log.Error("payment outcome not applied",
			"session_id", sessionID, "transaction_id", transactionID, "error", err)
		return
	}
	if data == nil {
		// The session is gone; a paid-but-unrecorded order needs an
		// operator, not a silent drop.
		e.log.Error("payment outcome for missing session",
			"session_id", sessionID, "transaction_id", transactionID, "success", success)
		return
	}
	if msg != nil && e.notify != nil {
		e.notify(sessionID, msg)
	}
}

// completeOrder runs the one-time business effect of a successful payment:
// order flips to paid, stock is decremented, persistence is updated, and
// the confirmation message is produced. Callers guarantee at-most-once.
func (e *Engine) completeOrder(ctx context.Context, data *session.Data) *model.AssistantMessage {
	if data.Order.Status.CanTransition(order.StatusPaid) {
		data.Order.Status = order.StatusPaid
	}
	data.CurrentStep = session.StepPaymentCompleted

	if data.Payment != nil {
		if err := e.persist.RecordAttempt(ctx, data.Order.ID, *data.Payment); err != nil {
			e.log.Error("record attempt failed", "order_id", data.Order.ID, "error", err)
		}
		if err := e.persist.MarkPaid(ctx, data.Order.ID, data.Payment.TransactionID); err != nil {
			e.log.Error("mark paid failed", "order_id", data.Order.ID, "error", err)
		}
	}
	if e.stock != nil {
		for _, line := range data.Order.Items {
			if err := e.stock.Decrement(ctx, line.ProductID, line.Quantity); err != nil {
				e.log.Error("stock decrement failed",
					"order_id", data.Order.ID, "product_id", line.ProductID, "error", err)
			}
		}
	}
	return e.confirmationMessage(data)
}

// failOrder flips the order to failed and produces the retry message.
func (e *Engine) failOrder(ctx context.Context, data *session.Data, reason string) *model.AssistantMessage {
	if data.Order.Status.CanTransition(order.StatusFailed) {
		data.Order.Status = order.StatusFailed
	}
	data.CurrentStep = session.StepPaymentFailed

	if data.Payment != nil {
		if err := e.persist.RecordAttempt(ctx, data.Order.ID, *data.Payment); err != nil {
			e.log.Error("record attempt failed", "order_id", data.Order.ID, "error", err)
		}
	}
	if err := e.persist.MarkFailed(ctx, data.Order.ID, reason); err != nil {
		e.log.Error("mark failed failed", "order_id", data.Order.ID, "error", err)
	}
	return e.paymentFailedMessage(data, reason)
}

func (e *Engine) amount(n int64) string {
	if e.currency == "XOF" {
		return fmt.Sprintf("%d FCFA", n)
	}
	return fmt.Sprintf("%d %s", n, e.currency)
}
