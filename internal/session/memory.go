package session

import (
	"context"
	"sync"
	"time"
)

// memoryStore keeps sessions in a map with TTL-based eviction. The sweep
// never evicts a session whose PaymentPending flag is set: reconciliation
// holds an implicit keep-alive until the attempt reaches a terminal state.
type memoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Data
	ttl      time.Duration

	stop chan struct{}
	once sync.Once
}

func newMemoryStore(ttl, sweepInterval time.Duration) *memoryStore {
	s := &memoryStore{
		sessions: make(map[string]*Data),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweep(sweepInterval)
	}
	return s
}

// Create implements Store.
func (s *memoryStore) Create(_ context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[data.ID]; ok {
		return ErrAlreadyExists
	}
	now := time.Now()
	data.StartedAt = now
	data.LastUpdated = now
	data.Version = 1
	s.sessions[data.ID] = data.Clone()
	return nil
}

// Get implements Store.
func (s *memoryStore) Get(_ context.Context, id string) (*Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if s.expired(data, time.Now()) {
		return nil, nil
	}
	return data.Clone(), nil
}

// Update implements Store.
func (s *memoryStore) Update(_ context.Context, data *Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[data.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != data.Version {
		return ErrVersionConflict
	}

	next := data.Clone()
	next.Version++
	next.LastUpdated = time.Now()
	s.sessions[data.ID] = next

	// Reflect the new version back so the caller can keep mutating.
	data.Version = next.Version
	data.LastUpdated = next.LastUpdated
	return nil
}

// Delete implements Store.
func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Close implements Store.
func (s *memoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *memoryStore) expired(data *Data, now time.Time) bool {
	if data.PaymentPending {
		return false
	}
	return s.ttl > 0 && now.Sub(data.LastUpdated) > s.ttl
}

func (s *memoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, data := range s.sessions {
				if s.expired(data, now) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}
