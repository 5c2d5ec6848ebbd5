// Package httptransport implements the HTTP transport layer for the
// conversational order engine.
package httptransport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/teralab/chatorder/internal/apperr"
	"github.com/teralab/chatorder/internal/middleware"
	"github.com/teralab/chatorder/internal/model"
	"github.com/teralab/chatorder/internal/payment"
	"github.com/teralab/chatorder/internal/storage"
)

// chatEngine is the single entry point the UI talks to.
type chatEngine interface {
	HandleUserInput(ctx context.Context, sessionID, text string) (*model.AssistantMessage, error)
}

// eventPublisher accepts provider callback events.
type eventPublisher interface {
	Publish(ev payment.Event) bool
}

// orderReader serves the operator order lookup.
type orderReader interface {
	Get(ctx context.Context, orderID string) (*storage.Record, error)
}

// reconcilerStats exposes the pending-watch count for health reporting.
type reconcilerStats interface {
	InFlight() int64
}

// Handler handles HTTP requests to the conversation engine.
type Handler struct {
	engine         chatEngine
	bus            eventPublisher
	orders         orderReader
	stats          reconcilerStats
	requestTimeout time.Duration
}

// New returns a Handler. It panics if engine or bus is nil. If
// requestTimeout is non-positive, a default timeout is applied.
func New(engine chatEngine, bus eventPublisher, orders orderReader, stats reconcilerStats, requestTimeout time.Duration) *Handler {
	if engine == nil {
		panic("httptransport.New: nil engine")
	}
	if bus == nil {
		panic("httptransport.New: nil event bus")
	}
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &Handler{
		engine:         engine,
		bus:            bus,
		orders:         orders,
		stats:          stats,
		requestTimeout: requestTimeout,
	}
}

// Router builds the chi router with logging and panic recovery.
func (h *Handler) Router(logMW func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	if logMW == nil {
		logMW = middleware.Logging(nil)
	}
	r.Use(logMW)
	r.Use(chimw.Recoverer)

	r.Post("/chat", h.HandleChat)
	r.Post("/payments/callback", h.HandleCallback)
	r.Get("/orders/{orderID}", h.HandleGetOrder)
	r.Get("/healthz", h.HandleHealth)
	return r
}

// HandleChat processes one user turn and returns the assistant message.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON")
		return
	}
	if req.Text == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "text is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	msg, err := h.engine.HandleUserInput(ctx, req.SessionID, req.Text)
	if err != nil {
		writeError(w, r, httpStatus(err), apperr.Kind(err), "chat failed")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, msg)
}

// HandleCallback accepts asynchronous payment notifications from
// providers. It always answers 202: providers retry on non-2xx, and a
// duplicate or unknown transaction id is not an error worth a retry loop.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var req model.CallbackRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON")
		return
	}
	if req.TransactionID == "" || req.Status == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "transaction_id and status are required")
		return
	}

	delivered := h.bus.Publish(payment.Event{
		TransactionID: req.TransactionID,
		Success:       req.Status == "success",
		Reason:        req.Reason,
	})

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]bool{"delivered": delivered})
}

// HandleGetOrder returns the persisted order projection.
func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		writeError(w, r, http.StatusNotFound, "not_found", "order lookup disabled")
		return
	}
	orderID := chi.URLParam(r, "orderID")
	rec, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "order not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, apperr.KindInternal, "order lookup failed")
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, rec)
}

// HandleHealth reports liveness and the pending reconciliation count.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.stats != nil {
		resp["pending_reconciliations"] = h.stats.InFlight()
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]*model.ErrorPayload{
		"error": {Kind: kind, Message: msg},
	})
}
