package domain

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Delta is the partial output of a step. Steps never write state directly;
// the executor folds their delta through a Registry exactly once.
//
// History fields accept either a json.RawMessage or a []json.RawMessage.
type Delta map[Field]any

// Reducer combines the current value of a field with an update.
type Reducer func(field Field, current, update any) (any, error)

// Replace discards the current value.
func Replace(_ Field, _ any, update any) (any, error) {
	return update, nil
}

// AppendHistory concatenates update after current, preserving order.
// Entries are never deduplicated or reordered.
func AppendHistory(field Field, current, update any) (any, error) {
	var existing []json.RawMessage
	switch c := current.(type) {
	case nil:
	case []json.RawMessage:
		existing = c
	default:
		return nil, fieldTypeError(field, "[]json.RawMessage", current)
	}

	var added []json.RawMessage
	switch u := update.(type) {
	case nil:
	case json.RawMessage:
		added = []json.RawMessage{u}
	case []json.RawMessage:
		added = u
	default:
		return nil, fieldTypeError(field, "json.RawMessage or []json.RawMessage", update)
	}

	out := make([]json.RawMessage, 0, len(existing)+len(added))
	out = append(out, existing...)
	out = append(out, added...)
	return out, nil
}

// Registry maps state fields to reducers. Fields without an entry use Replace.
type Registry struct {
	mu       sync.RWMutex
	reducers map[Field]Reducer
}

// NewRegistry returns a registry in which every field is replaced.
func NewRegistry() *Registry {
	return &Registry{reducers: make(map[Field]Reducer)}
}

// DefaultRegistry returns a registry with the history fields set to append.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, f := range fieldOrder {
		if f.IsHistory() {
			r.reducers[f] = AppendHistory
		}
	}
	return r
}

// Register assigns a reducer to a field.
func (r *Registry) Register(f Field, reducer Reducer) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	if reducer == nil {
		return fmt.Errorf("nil reducer for field %s", f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reducers[f] = reducer
	return nil
}

// ReducerFor returns the reducer bound to f.
func (r *Registry) ReducerFor(f Field) Reducer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if red, ok := r.reducers[f]; ok {
		return red
	}
	return Replace
}

// Fold applies delta to a copy of state in canonical field order.
// The input state is left untouched.
func (r *Registry) Fold(state ConversationState, delta Delta) (ConversationState, error) {
	for f := range delta {
		if !f.Valid() {
			return state, fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}

	next := state.Clone()
	for _, f := range fieldOrder {
		update, ok := delta[f]
		if !ok {
			continue
		}
		current, err := next.Get(f)
		if err != nil {
			return state, err
		}
		merged, err := r.ReducerFor(f)(f, current, update)
		if err != nil {
			return state, fmt.Errorf("reduce %s: %w", f, err)
		}
		if err := next.Set(f, merged); err != nil {
			return state, err
		}
	}
	return next, nil
}
