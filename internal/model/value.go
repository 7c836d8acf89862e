// Package model holds the records shared by the pattern store, the delegation
// controller and the persistence backends.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ValueKind identifies which variant a Value carries.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a context field: a string, a number, a bool or null.
// Values are comparable with ==.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value. NaN and infinities have no JSON form and
// would not equal themselves, so they become null.
func Number(n float64) Value {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Null()
	}
	return Value{kind: KindNumber, num: n}
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Null returns the null value.
func Null() Value { return Value{} }

// Kind reports the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// IsString reports whether v holds a string.
func (v Value) IsString() bool { return v.kind == KindString }

// Str returns the string payload, or "" for non-string values.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload, or 0 for non-numeric values.
func (v Value) Num() float64 { return v.num }

// Truth returns the boolean payload, or false for non-bool values.
func (v Value) Truth() bool { return v.b }

// Equal reports whether v and o hold the same variant and payload.
func (v Value) Equal(o Value) bool { return v == o }

// Text renders the value for display.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return "null"
	}
}

// MarshalJSON encodes the value as a plain JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar. Arrays and objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(t)
	case float64:
		*v = Number(t)
	case bool:
		*v = Bool(t)
	default:
		return fmt.Errorf("context value must be a scalar, got %T", raw)
	}
	return nil
}

// Context describes the situation a pattern was learned in.
type Context map[string]Value

// Keys returns the context keys in sorted order.
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of c.
func (c Context) Clone() Context {
	if c == nil {
		return nil
	}
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// FromMap converts a loosely typed map into a Context. Strings, numbers,
// bools and nil map directly; anything else is stored as its %v text.
func FromMap(m map[string]any) Context {
	out := make(Context, len(m))
	for k, raw := range m {
		out[k] = ValueOf(raw)
	}
	return out
}

// ValueOf converts a single Go value into a Value.
func ValueOf(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	case fmt.Stringer:
		return String(t.String())
	default:
		return String(fmt.Sprintf("%v", raw))
	}
}
