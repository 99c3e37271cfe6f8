// Package beaker provides the item stores that pipeline nodes read from and
// write to. A beaker holds JSON-serializable items keyed by UUID; the SQLite
// implementation persists them, the temp implementation does not.
package beaker

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrItemNotFound is returned when a beaker has no item with the given id.
var ErrItemNotFound = errors.New("item not found")

// ErrDuplicateID is returned when adding an item with an id the beaker
// already holds.
var ErrDuplicateID = errors.New("duplicate id")

// Factory produces a fresh zero value of a beaker's item type, used as the
// decode target when items are read back from storage.
type Factory func() any

// For returns a Factory for the given item type.
func For[T any]() Factory {
	return func() any { return new(T) }
}

// Beaker is a named store of items of a single type.
type Beaker interface {
	Name() string

	// NewItem returns a fresh zero value of the beaker's item type.
	NewItem() any

	// Len returns the number of items in the beaker.
	Len() (int, error)

	// AddItem stores an item. An empty id means a new UUID is assigned.
	// The assigned or given id is returned.
	AddItem(item any, id string) (string, error)

	// GetItem returns the item with the given id, or ErrItemNotFound.
	GetItem(id string) (any, error)

	// Items calls fn for every (id, item) pair in insertion order. If fn
	// returns an error, iteration stops and the error is returned.
	Items(fn func(id string, item any) error) error

	// IDSet returns the set of ids currently in the beaker.
	IDSet() (map[string]struct{}, error)

	// Reset removes all items.
	Reset() error
}

// AddItems stores each item from items with a generated id.
func AddItems(b Beaker, items []any) error {
	for _, item := range items {
		if _, err := b.AddItem(item, ""); err != nil {
			return fmt.Errorf("add to %s: %w", b.Name(), err)
		}
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}
