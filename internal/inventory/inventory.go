// Package inventory exposes stock availability checks.
//
// The engine delegates atomicity to the inventory backend; it only asks
// whether a quantity can currently be fulfilled.
package inventory

import (
	"context"
	"sync"
)

// Checker reports whether a product quantity is currently available.
type Checker interface {
	CheckAvailability(ctx context.Context, productID string, quantity int) (bool, error)
}

// Memory is an in-process stock table guarded by a mutex.
type Memory struct {
	mu    sync.RWMutex
	stock map[string]int
}

// NewMemory creates an inventory with the given initial stock levels.
func NewMemory(stock map[string]int) *Memory {
	s := make(map[string]int, len(stock))
	for id, n := range stock {
		s[id] = n
	}
	return &Memory{stock: s}
}

// CheckAvailability implements Checker.
func (m *Memory) CheckAvailability(_ context.Context, productID string, quantity int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stock[productID] >= quantity, nil
}

// Decrement reduces the stock level after a paid order. Levels never go
// below zero.
func (m *Memory) Decrement(_ context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.stock[productID] - quantity
	if n < 0 {
		n = 0
	}
	m.stock[productID] = n
	return nil
}
