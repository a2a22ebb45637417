package outcome

import (
	"fmt"
	"sync"
)

// Slot pairs a value with the position of the input item that produced it.
type Slot struct {
	Index int
	Value any
}

// Slots is a fixed-length collection of write-once slots. It is safe for
// concurrent use by writers targeting distinct indices.
type Slots struct {
	mu      sync.Mutex
	values  []any
	written []bool
	count   int
}

// NewSlots creates a collection with n empty slots.
func NewSlots(n int) *Slots {
	return &Slots{
		values:  make([]any, n),
		written: make([]bool, n),
	}
}

// Set stores v at index i. Writing an index twice or outside the collection
// is an error.
func (s *Slots) Set(i int, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.values) {
		return fmt.Errorf("slot index %d out of range [0,%d)", i, len(s.values))
	}
	if s.written[i] {
		return fmt.Errorf("slot %d already written", i)
	}
	s.values[i] = v
	s.written[i] = true
	s.count++
	return nil
}

// Put stores a Slot. See Set.
func (s *Slots) Put(slot Slot) error {
	return s.Set(slot.Index, slot.Value)
}

// Len returns the number of slots.
func (s *Slots) Len() int {
	return len(s.values)
}

// Filled returns the number of slots written so far.
func (s *Slots) Filled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Complete reports whether every slot has been written.
func (s *Slots) Complete() bool {
	return s.Filled() == len(s.values)
}

// Values returns a copy of the slot values in index order.
func (s *Slots) Values() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.values))
	copy(out, s.values)
	return out
}
