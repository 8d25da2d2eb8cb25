package review

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps items for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Item
	order []string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Item)}
}

func (m *MemoryStore) Insert(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[item.ID]; ok {
		return fmt.Errorf("review item %s already exists", item.ID)
	}
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (m *MemoryStore) ListPending(_ context.Context, organizationID string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Item{}
	for _, id := range m.order {
		item := m.items[id]
		if item.Status != StatusPending {
			continue
		}
		if organizationID != "" && item.OrganizationID != organizationID {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *MemoryStore) Decide(_ context.Context, t Transition) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[t.ItemID]
	if !ok {
		return Item{}, ErrNotFound
	}
	if item.Status != StatusPending {
		return Item{}, ErrAlreadyDecided
	}

	decidedAt := t.DecidedAt
	item.Status = t.Status
	item.Action = t.Action
	item.DecidedBy = t.DecidedBy
	item.DecidedAt = &decidedAt
	item.ResolvedAthleteID = t.ResolvedAthleteID
	item.Notes = t.Notes
	m.items[item.ID] = item
	return item, nil
}
