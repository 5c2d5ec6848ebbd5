package payment

import (
	"fmt"
	"sync"
)

// Event is a terminal payment notification keyed by transaction id.
type Event struct {
	TransactionID string
	Success       bool
	Reason        string
}

// Bus delivers payment events to at most one subscriber per transaction id.
// Subscribe must be called before the provider can possibly deliver, i.e.
// at attempt creation time; Unsubscribe releases the channel.
type Bus interface {
	Subscribe(transactionID string) (<-chan Event, error)
	Unsubscribe(transactionID string)
	Publish(ev Event) bool
}

// MemoryBus is the in-process Bus used by the HTTP callback endpoint.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]chan Event)}
}

// Subscribe implements Bus. A second subscription for a live transaction id
// is an error; each attempt has exactly one reconciliation watcher.
func (b *MemoryBus) Subscribe(transactionID string) (<-chan Event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[transactionID]; ok {
		return nil, fmt.Errorf("payment: transaction %s already subscribed", transactionID)
	}
	// Buffered so a provider retry arriving between the first event and
	// Unsubscribe does not block the publisher.
	ch := make(chan Event, 4)
	b.subs[transactionID] = ch
	return ch, nil
}

// Unsubscribe implements Bus. Safe to call for unknown ids.
func (b *MemoryBus) Unsubscribe(transactionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, transactionID)
}

// Publish implements Bus. It reports whether a subscriber existed for the
// event's transaction id. Events for unknown or already-drained ids are
// dropped; the reconciler has either not started or already consumed its
// terminal event.
func (b *MemoryBus) Publish(ev Event) bool {
	b.mu.Lock()
	ch, ok := b.subs[ev.TransactionID]
	b.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- ev:
		return true
	default:
		// Subscriber buffer full: it has unconsumed events already, so
		// this duplicate carries no new information.
		return false
	}
}
