package store

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory, thread-safe implementation of [Store].
type MemoryStore struct {
	mu       sync.RWMutex
	order    []string
	statuses map[string]string
}

// NewMemoryStore creates a new empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: make(map[string]string),
	}
}

// Statuses returns the known entries for numbers in request order.
func (m *MemoryStore) Statuses(ctx context.Context, numbers []string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(numbers))
	for _, n := range numbers {
		if status, ok := m.statuses[n]; ok {
			entries = append(entries, Entry{LetterNumber: n, Status: status})
		}
	}
	return entries, nil
}

// Set changes the status of a known letter.
func (m *MemoryStore) Set(ctx context.Context, number string, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.statuses[number]; !ok {
		return false, nil
	}
	m.statuses[number] = status
	return true, nil
}

// Add stores a new letter.
func (m *MemoryStore) Add(ctx context.Context, number string, status string) error {
	if number == "" {
		return ErrNumberRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.statuses[number]; ok {
		return ErrExists
	}
	m.statuses[number] = status
	m.order = append(m.order, number)
	return nil
}

// All returns a snapshot of every letter in insertion order.
func (m *MemoryStore) All(ctx context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.order))
	for _, n := range m.order {
		entries = append(entries, Entry{LetterNumber: n, Status: m.statuses[n]})
	}
	return entries, nil
}
