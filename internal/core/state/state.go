package state

import (
	"encoding/json"
	"fmt"
	"sort"
)

// State is an immutable value of a Schema.
// Mutators return a new State and never share maps or slices with the receiver.
type State struct {
	schema *Schema
	values map[string]any
}

// IsZero reports whether s was never built from a schema.
func (s State) IsZero() bool {
	return s.schema == nil
}

// Schema returns the schema the state belongs to.
func (s State) Schema() *Schema {
	return s.schema
}

// Get returns a copy of the value of field name.
func (s State) Get(name string) (any, bool) {
	if s.schema == nil {
		return nil, false
	}
	f, ok := s.schema.fields[name]
	if !ok {
		return nil, false
	}
	return cloneValue(f.Kind, s.values[name]), true
}

// String returns a string field, or "" when absent or of another kind.
func (s State) String(name string) string {
	v, _ := s.values[name].(string)
	return v
}

// Strings returns a copy of a []string field.
func (s State) Strings(name string) []string {
	v, _ := s.values[name].([]string)
	return append([]string{}, v...)
}

// Int returns an int field.
func (s State) Int(name string) int {
	v, _ := s.values[name].(int)
	return v
}

// Float returns a float64 field.
func (s State) Float(name string) float64 {
	v, _ := s.values[name].(float64)
	return v
}

// Bool returns a bool field.
func (s State) Bool(name string) bool {
	v, _ := s.values[name].(bool)
	return v
}

// Map returns a copy of a map field.
func (s State) Map(name string) map[string]any {
	v, _ := s.values[name].(map[string]any)
	return copyMap(v)
}

// Messages returns a copy of a message log field.
func (s State) Messages(name string) []Message {
	v, _ := s.values[name].([]Message)
	return append([]Message{}, v...)
}

// Values returns a deep copy of every field keyed by name.
func (s State) Values() map[string]any {
	out := make(map[string]any, len(s.values))
	if s.schema == nil {
		return out
	}
	for _, name := range s.schema.order {
		out[name] = cloneValue(s.schema.fields[name].Kind, s.values[name])
	}
	return out
}

// Set replaces the value of a field. Append-only fields cannot be set.
func (s State) Set(name string, value any) (State, error) {
	f, err := s.field(name)
	if err != nil {
		return State{}, err
	}
	if f.AppendOnly() {
		return State{}, fmt.Errorf("set %q: %w", name, ErrAppendOnly)
	}
	nv, err := normalize(f.Kind, value)
	if err != nil {
		return State{}, fmt.Errorf("field %q: %w", name, err)
	}
	next := s.clone()
	next.values[name] = nv
	return next, nil
}

// MustSet is like Set but panics on error.
func (s State) MustSet(name string, value any) State {
	next, err := s.Set(name, value)
	if err != nil {
		panic(err)
	}
	return next
}

// Append adds items to the end of a strings or messages field.
func (s State) Append(name string, items ...any) (State, error) {
	f, err := s.field(name)
	if err != nil {
		return State{}, err
	}
	reducer := NewAppendReducer()
	if !reducer.Supports(f.Kind) {
		return State{}, fmt.Errorf("append %q: %w: %s", name, ErrKindMismatch, f.Kind)
	}
	current := s.values[name]
	for _, item := range items {
		current, err = reducer.Reduce(f.Kind, current, item)
		if err != nil {
			return State{}, fmt.Errorf("field %q: %w", name, err)
		}
	}
	next := s.clone()
	next.values[name] = current
	return next, nil
}

// Update folds each value into its field with the field's reducer.
// Either every field is applied or the receiver is returned unchanged with an error.
func (s State) Update(values map[string]any) (State, error) {
	if s.schema == nil {
		return State{}, ErrInvalidState
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	next := s.clone()
	for _, name := range names {
		f, ok := s.schema.fields[name]
		if !ok {
			return s, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		reducer, err := NewFieldReducer(f.Reducer)
		if err != nil {
			return s, err
		}
		nv, err := reducer.Reduce(f.Kind, next.values[name], values[name])
		if err != nil {
			return s, fmt.Errorf("field %q: %w", name, err)
		}
		next.values[name] = nv
	}
	return next, nil
}

// MarshalJSON encodes the state as an object of its fields.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

// Validate checks a node's output next against its input prev.
func Validate(prev, next State) error {
	if next.IsZero() {
		return ErrInvalidState
	}
	if prev.schema != next.schema {
		return fmt.Errorf("%w: %s != %s", ErrSchemaMismatch, schemaName(prev.schema), schemaName(next.schema))
	}
	for _, name := range next.schema.order {
		f := next.schema.fields[name]
		if !f.AppendOnly() {
			continue
		}
		if !hasPrefix(f.Kind, prev.values[name], next.values[name]) {
			return fmt.Errorf("field %q: %w", name, ErrAppendOnly)
		}
	}
	return nil
}

func (s State) field(name string) (Field, error) {
	if s.schema == nil {
		return Field{}, ErrInvalidState
	}
	f, ok := s.schema.fields[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// clone copies the top-level map; stored values are replaced, never mutated in place.
func (s State) clone() State {
	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return State{schema: s.schema, values: values}
}

func cloneValue(k Kind, v any) any {
	switch k {
	case KindStrings:
		ss, _ := v.([]string)
		return append([]string{}, ss...)
	case KindMessages:
		ms, _ := v.([]Message)
		return append([]Message{}, ms...)
	case KindMap:
		m, _ := v.(map[string]any)
		return copyMap(m)
	default:
		return v
	}
}

func hasPrefix(k Kind, prev, next any) bool {
	switch k {
	case KindStrings:
		p, _ := prev.([]string)
		n, _ := next.([]string)
		if len(n) < len(p) {
			return false
		}
		for i := range p {
			if p[i] != n[i] {
				return false
			}
		}
	case KindMessages:
		p, _ := prev.([]Message)
		n, _ := next.([]Message)
		if len(n) < len(p) {
			return false
		}
		for i := range p {
			if p[i] != n[i] {
				return false
			}
		}
	}
	return true
}

func schemaName(s *Schema) string {
	if s == nil {
		return "<nil>"
	}
	return s.name
}
