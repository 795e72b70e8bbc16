// Package inventory defines the write contract the engine uses to propagate
// mirrored field values into the external inventory record store.
package inventory

import (
	"context"
	"fmt"
	"sync"
)

// Store is the external inventory collaborator. Only the write contract is
// part of the engine; the store's internals are not.
type Store interface {
	// UpdateItemFieldValue writes value into the given field of an
	// inventory item.
	UpdateItemFieldValue(ctx context.Context, itemID, fieldID string, value any) error
}

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]map[string]any
}

// NewMemoryStore creates an empty in-memory inventory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]map[string]any)}
}

func (s *MemoryStore) UpdateItemFieldValue(_ context.Context, itemID, fieldID string, value any) error {
	if itemID == "" || fieldID == "" {
		return fmt.Errorf("inventory update requires item and field ids")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.items[itemID]
	if !ok {
		fields = make(map[string]any)
		s.items[itemID] = fields
	}

	fields[fieldID] = value

	return nil
}

// ItemFieldValue returns the stored value for an item field, with ok
// reporting whether a write happened.
func (s *MemoryStore) ItemFieldValue(itemID, fieldID string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.items[itemID][fieldID]

	return value, ok
}
