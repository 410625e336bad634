package jsonvalue

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// Object is the order-preserving object variant of a Value. Plain
// map[string]interface{} loses insertion order on decode (both
// encoding/json and goccy/go-json), so every object that flows through the
// executor's merge path is represented as Object instead: decode produces
// one (see Decode), DeepMerge produces one (see value.go), and
// MarshalJSON/pruning re-serialize in the same order every time — the
// stability §4.1 requires.
type Object struct {
	keys   []string
	values map[string]interface{}
}

// NewObject returns an empty Object; keys keep the order in which Set first
// inserts them.
func NewObject() *Object {
	return &Object{values: make(map[string]interface{})}
}

// Set inserts or overwrites key, appending it to the key order on first
// insertion.
func (o *Object) Set(key string, value interface{}) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value at key and whether it was present.
func (o *Object) Get(key string) (interface{}, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order. Callers must not mutate it.
func (o *Object) Keys() []string { return o.keys }

// Len reports the number of keys.
func (o *Object) Len() int { return len(o.keys) }

// Clone returns a shallow copy (substructure is shared, safe to pass to
// DeepMerge which never mutates its operands).
func (o *Object) Clone() *Object {
	if o == nil {
		return NewObject()
	}
	out := &Object{
		keys:   append([]string(nil), o.keys...),
		values: make(map[string]interface{}, len(o.values)),
	}
	for k, v := range o.values {
		out.values[k] = v
	}
	return out
}

// MarshalJSON renders the object preserving key order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToMap converts to a plain map, discarding order. Used at boundaries that
// genuinely don't care (e.g. building subgraph variables).
func (o *Object) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(o.values))
	for k, v := range o.values {
		out[k] = v
	}
	return out
}

// FromMap builds an Object from a plain map. Key order is the map's
// iteration order, which Go randomizes — callers that need determinism
// should build the Object incrementally with Set instead.
func FromMap(m map[string]interface{}) *Object {
	o := NewObject()
	for k, v := range m {
		o.Set(k, v)
	}
	return o
}
