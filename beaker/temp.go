package beaker

import (
	"fmt"
	"sync"
)

// Temp is an in-memory Beaker for transient intermediate stages. Items are
// kept in insertion order and lost when the process exits.
type Temp struct {
	name    string
	factory Factory

	mu    sync.RWMutex
	ids   []string
	items map[string]any
}

// NewTemp returns an empty in-memory beaker.
func NewTemp(name string, factory Factory) *Temp {
	return &Temp{name: name, factory: factory, items: map[string]any{}}
}

func (b *Temp) Name() string { return b.name }

func (b *Temp) NewItem() any { return b.factory() }

func (b *Temp) Len() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ids), nil
}

func (b *Temp) AddItem(item any, id string) (string, error) {
	if id == "" {
		id = newID()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.items[id]; dup {
		return "", fmt.Errorf("%s in %s: %w", id, b.name, ErrDuplicateID)
	}
	b.ids = append(b.ids, id)
	b.items[id] = item
	return id, nil
}

func (b *Temp) GetItem(id string) (any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	item, ok := b.items[id]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", id, b.name, ErrItemNotFound)
	}
	return item, nil
}

func (b *Temp) Items(fn func(id string, item any) error) error {
	b.mu.RLock()
	ids := make([]string, len(b.ids))
	copy(ids, b.ids)
	items := make(map[string]any, len(b.items))
	for id, item := range b.items {
		items[id] = item
	}
	b.mu.RUnlock()

	for _, id := range ids {
		if err := fn(id, items[id]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Temp) IDSet() (map[string]struct{}, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make(map[string]struct{}, len(b.ids))
	for _, id := range b.ids {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (b *Temp) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = nil
	b.items = map[string]any{}
	return nil
}
