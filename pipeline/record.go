package pipeline

import (
	"fmt"
	"sync"
)

// Record is the view of a single item id across every beaker it has reached.
// Each beaker's slot can only be written once. Records are safe for
// concurrent use; river runs mutate one record from several branches.
type Record struct {
	id   string
	mu   sync.RWMutex
	data map[string]any
}

// NewRecord returns an empty record for the given id.
func NewRecord(id string) *Record {
	return &Record{id: id, data: map[string]any{}}
}

// ID returns the item id this record tracks.
func (r *Record) ID() string { return r.id }

// Get returns the item stored for a beaker, if any.
func (r *Record) Get(beakerName string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.data[beakerName]
	return item, ok
}

// Set stores the item for a beaker. Overwriting a slot is an error, as is
// using the reserved name "id".
func (r *Record) Set(beakerName string, item any) error {
	if beakerName == "id" {
		return fmt.Errorf("record name %q is reserved", beakerName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[beakerName]; exists {
		return fmt.Errorf("record already has %q", beakerName)
	}
	r.data[beakerName] = item
	return nil
}

// SetIfAbsent stores the item unless the slot is already filled.
func (r *Record) SetIfAbsent(beakerName string, item any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[beakerName]; !exists && beakerName != "id" {
		r.data[beakerName] = item
	}
}

// Beakers returns the names of beakers present in the record.
func (r *Record) Beakers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.data))
	for name := range r.data {
		names = append(names, name)
	}
	return names
}
