package state

import (
	"fmt"
	"math"
)

// Decode builds a State from loosely typed input such as a decoded JSON object.
// JSON numbers, arrays and message objects are coerced to the field kinds.
func (s *Schema) Decode(input map[string]any) (State, error) {
	values := make(map[string]any, len(input))
	for name, raw := range input {
		f, ok := s.fields[name]
		if !ok {
			return State{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		v, err := coerce(f.Kind, raw)
		if err != nil {
			return State{}, fmt.Errorf("field %q: %w", name, err)
		}
		values[name] = v
	}
	return s.New(values)
}

func coerce(k Kind, raw any) (any, error) {
	if raw == nil {
		return zeroValue(k), nil
	}
	switch k {
	case KindInt:
		if f, ok := raw.(float64); ok {
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("%w: %v is not integral", ErrKindMismatch, f)
			}
			// float64(math.MaxInt) rounds up to 2^63, which int cannot hold
			if f >= math.MaxInt || f < math.MinInt {
				return nil, fmt.Errorf("%w: %v is out of int range", ErrKindMismatch, f)
			}
			return int(f), nil
		}
	case KindStrings:
		switch v := raw.(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				str, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: list item %T", ErrKindMismatch, item)
				}
				out = append(out, str)
			}
			return out, nil
		case string:
			return []string{v}, nil
		}
	case KindMessages:
		if v, ok := raw.([]any); ok {
			out := make([]Message, 0, len(v))
			for _, item := range v {
				m, err := coerceMessage(item)
				if err != nil {
					return nil, err
				}
				out = append(out, m)
			}
			return out, nil
		}
	}
	return raw, nil
}

func coerceMessage(item any) (Message, error) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Message{}, fmt.Errorf("%w: message %T", ErrKindMismatch, item)
	}
	role, _ := obj["role"].(string)
	content, _ := obj["content"].(string)
	name, _ := obj["name"].(string)
	if role == "" {
		return Message{}, fmt.Errorf("%w: message without role", ErrKindMismatch)
	}
	return Message{Role: Role(role), Content: content, Name: name}, nil
}
