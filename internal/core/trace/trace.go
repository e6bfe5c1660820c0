// Package trace records what happened during one graph run
package trace

import (
	"reflect"
	"time"

	"github.com/wandermind/stategraph/internal/core/state"
)

// Op is the kind of change a node made to a field
type Op string

const (
	// OpSet means the field value was replaced
	OpSet Op = "set"
	// OpAppend means items were added to the end of a list field
	OpAppend Op = "append"
)

// Change describes one field a node changed
type Change struct {
	Field string `json:"field" msgpack:"field"`
	Op    Op     `json:"op" msgpack:"op"`
	// Value is the new value for OpSet and the appended items for OpAppend
	Value any `json:"value" msgpack:"value"`
}

// Record is one successful node invocation
// PRINCIPLES:
// - KISS: snapshot plus diff, nothing else
// - SRP: Only describes a single step
type Record struct {
	Step      int           `json:"step"`
	NodeID    string        `json:"node_id"`
	State     state.State   `json:"state"`
	Changes   []Change      `json:"changes"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Trace is the ordered list of records of one run
type Trace []Record

// Len returns the number of records
func (t Trace) Len() int { return len(t) }

// NodeIDs returns the visited node ids in order
func (t Trace) NodeIDs() []string {
	ids := make([]string, 0, len(t))
	for _, r := range t {
		ids = append(ids, r.NodeID)
	}
	return ids
}

// Last returns the most recent record
func (t Trace) Last() (Record, bool) {
	if len(t) == 0 {
		return Record{}, false
	}
	return t[len(t)-1], true
}

// Visited reports whether id appears in the trace
func (t Trace) Visited(id string) bool {
	for _, r := range t {
		if r.NodeID == id {
			return true
		}
	}
	return false
}

// Clone returns a copy whose backing array is not shared
func (t Trace) Clone() Trace {
	if t == nil {
		return Trace{}
	}
	return append(Trace{}, t...)
}

// Diff lists the fields that differ between prev and next in schema order.
// Both states must share a schema.
func Diff(prev, next state.State) []Change {
	schema := next.Schema()
	if schema == nil {
		return nil
	}
	var changes []Change
	for _, f := range schema.Fields() {
		before, _ := prev.Get(f.Name)
		after, _ := next.Get(f.Name)
		if reflect.DeepEqual(before, after) {
			continue
		}
		if f.AppendOnly() {
			if added, ok := appended(before, after); ok {
				changes = append(changes, Change{Field: f.Name, Op: OpAppend, Value: added})
				continue
			}
		}
		changes = append(changes, Change{Field: f.Name, Op: OpSet, Value: after})
	}
	return changes
}

// appended returns the tail of after beyond before when before is a prefix
func appended(before, after any) (any, bool) {
	switch b := before.(type) {
	case []string:
		a, ok := after.([]string)
		if !ok || len(a) < len(b) || !reflect.DeepEqual(b, a[:len(b)]) {
			return nil, false
		}
		return append([]string{}, a[len(b):]...), true
	case []state.Message:
		a, ok := after.([]state.Message)
		if !ok || len(a) < len(b) || !reflect.DeepEqual(b, a[:len(b)]) {
			return nil, false
		}
		return append([]state.Message{}, a[len(b):]...), true
	case nil:
		return after, true
	}
	return nil, false
}
