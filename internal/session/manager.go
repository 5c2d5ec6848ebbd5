package session

import (
	"context"
	"sync"
)

// Manager serializes all mutation of one session behind a per-session
// lock, making the store's update path the single writer of truth. Step
// handlers and payment reconciliation both go through Mutate, so no two
// writers for the same session ever run concurrently.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager wraps a store.
func NewManager(store Store) *Manager {
	if store == nil {
		panic("session.NewManager: nil store")
	}
	return &Manager{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Manager) lock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// Create stores a fresh session under its lock.
func (m *Manager) Create(ctx context.Context, data *Data) error {
	l := m.lock(data.ID)
	l.Lock()
	defer l.Unlock()
	return m.store.Create(ctx, data)
}

// Get returns the current session state, or nil, nil if it does not exist.
func (m *Manager) Get(ctx context.Context, id string) (*Data, error) {
	return m.store.Get(ctx, id)
}

// Mutate loads the session, applies fn, and persists the result, all under
// the session's lock. fn returning an error aborts without persisting.
// Returns nil, nil when the session does not exist.
func (m *Manager) Mutate(ctx context.Context, id string, fn func(*Data) error) (*Data, error) {
	l := m.lock(id)
	l.Lock()
	defer l.Unlock()

	data, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	if err := fn(data); err != nil {
		return nil, err
	}
	if err := m.store.Update(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the session and forgets its lock.
func (m *Manager) Delete(ctx context.Context, id string) error {
	l := m.lock(id)
	l.Lock()
	defer l.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.locks, id)
	m.mu.Unlock()
	return nil
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
