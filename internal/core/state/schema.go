// Package state provides the typed, immutable record threaded through a graph run.
// A Schema fixes the field set and value kinds; a State is a value of that schema.
package state

import (
	"fmt"
)

// Kind is the value kind of a state field
type Kind string

const (
	// KindString holds a string
	KindString Kind = "string"
	// KindStrings holds an ordered []string
	KindStrings Kind = "strings"
	// KindInt holds an int
	KindInt Kind = "int"
	// KindFloat holds a float64
	KindFloat Kind = "float"
	// KindBool holds a bool
	KindBool Kind = "bool"
	// KindMap holds a map[string]any
	KindMap Kind = "map"
	// KindMessages holds an ordered []Message
	KindMessages Kind = "messages"
	// KindAny holds any value; the engine never inspects it
	KindAny Kind = "any"
)

// Field declares one named state field
type Field struct {
	Name    string      `json:"name"`
	Kind    Kind        `json:"kind"`
	Reducer ReducerType `json:"reducer"`
}

// StringField declares a replaceable string field.
func StringField(name string) Field { return Field{Name: name, Kind: KindString, Reducer: ReducerReplace} }

// StringsField declares a replaceable []string field.
func StringsField(name string) Field { return Field{Name: name, Kind: KindStrings, Reducer: ReducerReplace} }

// IntField declares a replaceable int field.
func IntField(name string) Field { return Field{Name: name, Kind: KindInt, Reducer: ReducerReplace} }

// FloatField declares a replaceable float64 field.
func FloatField(name string) Field { return Field{Name: name, Kind: KindFloat, Reducer: ReducerReplace} }

// BoolField declares a replaceable bool field.
func BoolField(name string) Field { return Field{Name: name, Kind: KindBool, Reducer: ReducerReplace} }

// MapField declares a map field merged on update.
func MapField(name string) Field { return Field{Name: name, Kind: KindMap, Reducer: ReducerMerge} }

// AnyField declares an opaque replaceable field.
func AnyField(name string) Field { return Field{Name: name, Kind: KindAny, Reducer: ReducerReplace} }

// MessagesField declares an append-only conversation log.
func MessagesField(name string) Field {
	return Field{Name: name, Kind: KindMessages, Reducer: ReducerAppend}
}

// WithReducer returns a copy of the field using reducer r.
func (f Field) WithReducer(r ReducerType) Field {
	f.Reducer = r
	return f
}

// AppendOnly reports whether values of the field may only grow.
func (f Field) AppendOnly() bool {
	return f.Reducer == ReducerAppend
}

// Schema is the fixed, ordered field set shared by every node of a graph.
// A Schema never changes after NewSchema returns.
type Schema struct {
	name   string
	fields map[string]Field
	order  []string
}

// NewSchema validates fields and builds a schema.
func NewSchema(name string, fields ...Field) (*Schema, error) {
	if name == "" {
		return nil, ErrInvalidSchemaName
	}
	s := &Schema{
		name:   name,
		fields: make(map[string]Field, len(fields)),
		order:  make([]string, 0, len(fields)),
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, ErrInvalidFieldName
		}
		if _, dup := s.fields[f.Name]; dup {
			return nil, fmt.Errorf("field %q: %w", f.Name, ErrDuplicateField)
		}
		if !validKind(f.Kind) {
			return nil, fmt.Errorf("field %q: %w: %q", f.Name, ErrInvalidKind, f.Kind)
		}
		if f.Reducer == "" {
			f.Reducer = ReducerReplace
		}
		reducer, err := NewFieldReducer(f.Reducer)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if !reducer.Supports(f.Kind) {
			return nil, fmt.Errorf("field %q: %w: %s on %s", f.Name, ErrReducerMismatch, f.Reducer, f.Kind)
		}
		s.fields[f.Name] = f
		s.order = append(s.order, f.Name)
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error; meant for package-level vars.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(fmt.Sprintf("state: %v", err))
	}
	return s
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}

// Zero returns a State with every field at its zero value.
func (s *Schema) Zero() State {
	values := make(map[string]any, len(s.order))
	for _, name := range s.order {
		values[name] = zeroValue(s.fields[name].Kind)
	}
	return State{schema: s, values: values}
}

// New builds a State from values; omitted fields hold their zero value.
func (s *Schema) New(values map[string]any) (State, error) {
	st := s.Zero()
	for name, v := range values {
		f, ok := s.fields[name]
		if !ok {
			return State{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		nv, err := normalize(f.Kind, v)
		if err != nil {
			return State{}, fmt.Errorf("field %q: %w", name, err)
		}
		st.values[name] = nv
	}
	return st, nil
}

func validKind(k Kind) bool {
	switch k {
	case KindString, KindStrings, KindInt, KindFloat, KindBool, KindMap, KindMessages, KindAny:
		return true
	default:
		return false
	}
}

func zeroValue(k Kind) any {
	switch k {
	case KindString:
		return ""
	case KindStrings:
		return []string{}
	case KindInt:
		return 0
	case KindFloat:
		return 0.0
	case KindBool:
		return false
	case KindMap:
		return map[string]any{}
	case KindMessages:
		return []Message{}
	default:
		return nil
	}
}

// normalize checks v against kind and returns a private copy safe to store.
func normalize(k Kind, v any) (any, error) {
	switch k {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindStrings:
		if ss, ok := v.([]string); ok {
			return append([]string{}, ss...), nil
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int32:
			return int(n), nil
		case int64:
			return int(n), nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindMap:
		if m, ok := v.(map[string]any); ok {
			return copyMap(m), nil
		}
	case KindMessages:
		switch m := v.(type) {
		case []Message:
			return append([]Message{}, m...), nil
		case Message:
			return []Message{m}, nil
		}
	case KindAny:
		return v, nil
	}
	return nil, fmt.Errorf("%w: want %s, got %T", ErrKindMismatch, k, v)
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = copyMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
