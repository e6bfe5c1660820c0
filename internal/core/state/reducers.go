package state

import (
	"fmt"
)

// ReducerType names how an update is folded into a field
type ReducerType string

const (
	// ReducerReplace replaces values completely
	ReducerReplace ReducerType = "replace"
	// ReducerAppend appends values to lists; the field becomes append-only
	ReducerAppend ReducerType = "append"
	// ReducerMerge merges map values recursively
	ReducerMerge ReducerType = "merge"
	// ReducerMax keeps the maximum value
	ReducerMax ReducerType = "max"
	// ReducerMin keeps the minimum value
	ReducerMin ReducerType = "min"
)

// FieldReducer folds an update into the current value of one field
// PRINCIPLES:
// - ISP: one fold operation plus a capability check
// - SRP: Single responsibility - value reduction
type FieldReducer interface {
	// Reduce combines the current value with update; current is never modified
	Reduce(kind Kind, current, update any) (any, error)

	// Supports reports whether the reducer can operate on kind
	Supports(kind Kind) bool
}

// NewFieldReducer creates a reducer by type
func NewFieldReducer(reducerType ReducerType) (FieldReducer, error) {
	switch reducerType {
	case ReducerReplace:
		return NewReplaceReducer(), nil
	case ReducerAppend:
		return NewAppendReducer(), nil
	case ReducerMerge:
		return NewMergeReducer(), nil
	case ReducerMax:
		return NewMaxReducer(), nil
	case ReducerMin:
		return NewMinReducer(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownReducer, reducerType)
	}
}

// ReplaceReducer replaces values completely
type ReplaceReducer struct{}

// NewReplaceReducer creates a new replace reducer
func NewReplaceReducer() *ReplaceReducer {
	return &ReplaceReducer{}
}

// Reduce returns the normalized update
func (r *ReplaceReducer) Reduce(kind Kind, _, update any) (any, error) {
	return normalize(kind, update)
}

// Supports reports true for every kind except messages, which must only grow
func (r *ReplaceReducer) Supports(kind Kind) bool {
	return kind != KindMessages
}

// AppendReducer appends values to lists
// PRINCIPLES:
// - KISS: Simple append operation
// - SRP: Only handles list appending
type AppendReducer struct{}

// NewAppendReducer creates a new append reducer
func NewAppendReducer() *AppendReducer {
	return &AppendReducer{}
}

// Reduce appends one element or a slice of elements to a fresh copy of current
func (r *AppendReducer) Reduce(kind Kind, current, update any) (any, error) {
	switch kind {
	case KindStrings:
		cur, _ := current.([]string)
		var add []string
		switch u := update.(type) {
		case string:
			add = []string{u}
		case []string:
			add = u
		default:
			return nil, fmt.Errorf("%w: cannot append %T to %s", ErrKindMismatch, update, kind)
		}
		out := make([]string, 0, len(cur)+len(add))
		out = append(out, cur...)
		return append(out, add...), nil
	case KindMessages:
		cur, _ := current.([]Message)
		var add []Message
		switch u := update.(type) {
		case Message:
			add = []Message{u}
		case []Message:
			add = u
		default:
			return nil, fmt.Errorf("%w: cannot append %T to %s", ErrKindMismatch, update, kind)
		}
		out := make([]Message, 0, len(cur)+len(add))
		out = append(out, cur...)
		return append(out, add...), nil
	default:
		return nil, fmt.Errorf("%w: append on %s", ErrReducerMismatch, kind)
	}
}

// Supports reports true for list kinds
func (r *AppendReducer) Supports(kind Kind) bool {
	return kind == KindStrings || kind == KindMessages
}

// MergeReducer merges map values
// PRINCIPLES:
// - KISS: Simple map merging
// - SRP: Only handles map merging
type MergeReducer struct{}

// NewMergeReducer creates a new merge reducer
func NewMergeReducer() *MergeReducer {
	return &MergeReducer{}
}

// Reduce merges the update map into a copy of the current map
func (r *MergeReducer) Reduce(kind Kind, current, update any) (any, error) {
	if kind != KindMap {
		return nil, fmt.Errorf("%w: merge on %s", ErrReducerMismatch, kind)
	}
	u, ok := update.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: cannot merge %T", ErrKindMismatch, update)
	}
	cur, _ := current.(map[string]any)
	return r.mergeValues(cur, u), nil
}

// Supports reports true for maps
func (r *MergeReducer) Supports(kind Kind) bool {
	return kind == KindMap
}

// mergeValues merges two maps, recursing into nested maps
func (r *MergeReducer) mergeValues(current, update map[string]any) map[string]any {
	merged := copyMap(current)
	for k, v := range update {
		existing, exists := merged[k]
		em, eok := existing.(map[string]any)
		vm, vok := v.(map[string]any)
		if exists && eok && vok {
			merged[k] = r.mergeValues(em, vm)
			continue
		}
		if vok {
			merged[k] = copyMap(vm)
			continue
		}
		merged[k] = v
	}
	return merged
}

// MaxReducer keeps the maximum value
type MaxReducer struct{}

// NewMaxReducer creates a new max reducer
func NewMaxReducer() *MaxReducer {
	return &MaxReducer{}
}

// Reduce keeps the maximum value between current and update
func (r *MaxReducer) Reduce(kind Kind, current, update any) (any, error) {
	u, err := normalize(kind, update)
	if err != nil {
		return nil, err
	}
	if less(kind, current, u) {
		return u, nil
	}
	return current, nil
}

// Supports reports true for ordered kinds
func (r *MaxReducer) Supports(kind Kind) bool { return ordered(kind) }

// MinReducer keeps the minimum value
type MinReducer struct{}

// NewMinReducer creates a new min reducer
func NewMinReducer() *MinReducer {
	return &MinReducer{}
}

// Reduce keeps the minimum value between current and update
func (r *MinReducer) Reduce(kind Kind, current, update any) (any, error) {
	u, err := normalize(kind, update)
	if err != nil {
		return nil, err
	}
	if less(kind, u, current) {
		return u, nil
	}
	return current, nil
}

// Supports reports true for ordered kinds
func (r *MinReducer) Supports(kind Kind) bool { return ordered(kind) }

func ordered(kind Kind) bool {
	return kind == KindInt || kind == KindFloat || kind == KindString
}

// less compares two normalized values of an ordered kind
func less(kind Kind, a, b any) bool {
	switch kind {
	case KindInt:
		return a.(int) < b.(int)
	case KindFloat:
		return a.(float64) < b.(float64)
	case KindString:
		return a.(string) < b.(string)
	default:
		return false
	}
}
