package payment

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ReasonTimeout is the failure reason attached to a pending attempt that
// saw no terminal event within the configured bound.
const ReasonTimeout = "timeout"

// ApplyFunc applies one terminal payment outcome to order and conversation
// state. The reconciler calls it at most once per transaction id; callers
// route it through the same single-writer path used by step handlers.
type ApplyFunc func(ctx context.Context, sessionID, transactionID string, success bool, reason string)

// Reconciler turns asynchronous provider events into exactly one business
// effect per transaction. One watcher goroutine runs per pending attempt:
// it consumes the first terminal event for its transaction id, unsubscribes,
// and applies the outcome. A pending attempt that sees no event within the
// configured timeout is failed with ReasonTimeout.
type Reconciler struct {
	bus     Bus
	apply   ApplyFunc
	timeout time.Duration
	log     *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewReconciler creates a reconciler. If timeout is non-positive a default
// of five minutes is applied.
func NewReconciler(bus Bus, apply ApplyFunc, timeout time.Duration, log *slog.Logger) *Reconciler {
	if bus == nil {
		panic("payment.NewReconciler: nil bus")
	}
	if apply == nil {
		panic("payment.NewReconciler: nil apply func")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		bus:     bus,
		apply:   apply,
		timeout: timeout,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Watch subscribes to the transaction's event channel and starts its
// watcher. It must be called at attempt creation, before the provider can
// deliver. A subscription failure is returned to the caller so the user can
// be told to retry instead of waiting on a stalled payment.
func (r *Reconciler) Watch(sessionID, transactionID string) error {
	ch, err := r.bus.Subscribe(transactionID)
	if err != nil {
		return err
	}

	r.wg.Add(1)
	r.inFlight.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inFlight.Add(-1)
		defer r.bus.Unsubscribe(transactionID)

		timer := time.NewTimer(r.timeout)
		defer timer.Stop()

		select {
		case ev := <-ch:
			r.log.Info("payment event received",
				"transaction_id", transactionID,
				"session_id", sessionID,
				"success", ev.Success,
			)
			r.apply(r.ctx, sessionID, transactionID, ev.Success, ev.Reason)

		case <-timer.C:
			r.log.Warn("payment confirmation timed out",
				"transaction_id", transactionID,
				"session_id", sessionID,
				"timeout", r.timeout,
			)
			r.apply(r.ctx, sessionID, transactionID, false, ReasonTimeout)

		case <-r.ctx.Done():
			// Shutdown: leave the attempt pending, the operational
			// timeout applies again after restart.
		}
	}()
	return nil
}

// InFlight returns the number of watchers currently awaiting an event.
func (r *Reconciler) InFlight() int64 { return r.inFlight.Load() }

// Close stops all watchers and waits for them to exit.
func (r *Reconciler) Close() {
	r.cancel()
	r.wg.Wait()
}
