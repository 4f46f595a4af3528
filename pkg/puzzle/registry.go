package puzzle

import (
	"fmt"
	"sort"
)

// Flag is the solved state of one puzzle. Only the component that registered
// it holds the pointer, which makes it the single writer.
type Flag struct {
	id     string
	solved bool
}

// ID returns the puzzle identifier the flag was registered under
func (f *Flag) ID() string {
	return f.id
}

// Solved reports whether the owning puzzle has been solved
func (f *Flag) Solved() bool {
	return f != nil && f.solved
}

// MarkSolved flips the flag to true. It never flips back on its own.
func (f *Flag) MarkSolved() {
	f.solved = true
}

// Clear returns the flag to unsolved. Used only by an explicit puzzle reset.
func (f *Flag) Clear() {
	f.solved = false
}

// Registry maps puzzle identifiers to solved flags so puzzles can gate on
// each other without shared globals. Reads are open to everyone, writes go
// through the Flag handed out by Register.
type Registry struct {
	flags map[string]*Flag
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{flags: make(map[string]*Flag)}
}

// Register claims id and returns its writer handle
func (r *Registry) Register(id string) (*Flag, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty puzzle id", ErrInvalidConfig)
	}
	if _, exists := r.flags[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	f := &Flag{id: id}
	r.flags[id] = f
	return f, nil
}

// Known reports whether id has been registered
func (r *Registry) Known(id string) bool {
	_, ok := r.flags[id]
	return ok
}

// Solved returns the latest value of id's flag. Unknown ids read as unsolved.
func (r *Registry) Solved(id string) bool {
	if r == nil {
		return false
	}
	return r.flags[id].Solved()
}

// AllSolved reports whether every listed puzzle is solved. An empty list is satisfied.
func (r *Registry) AllSolved(ids ...string) bool {
	for _, id := range ids {
		if !r.Solved(id) {
			return false
		}
	}
	return true
}

// IDs returns the registered identifiers in sorted order
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.flags))
	for id := range r.flags {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot copies every flag value
func (r *Registry) Snapshot() map[string]bool {
	out := make(map[string]bool, len(r.flags))
	for id, f := range r.flags {
		out[id] = f.solved
	}
	return out
}

// Restore applies saved flag values to registered ids and returns the ids it
// could not place.
func (r *Registry) Restore(saved map[string]bool) []string {
	var unknown []string
	for id, solved := range saved {
		f, ok := r.flags[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		f.solved = solved
	}
	sort.Strings(unknown)
	return unknown
}
