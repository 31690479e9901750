package filter

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Kind tags the variant held by a Value
type Kind int

const (
	KindMissing Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// Value is a JSON-shaped record or a part of one. The zero Value is missing.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	obj  map[string]Value
	arr  []Value
}

func Missing() Value { return Value{} }
func Null() Value { return Value{kind: KindNull} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }
func Array(a []Value) Value { return Value{kind: KindArray, arr: a} }

func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value is missing or explicitly null
func (v Value) IsAbsent() bool {
	return v.kind == KindMissing || v.kind == KindNull
}

// Lookup walks a slash- or dot-delimited path. Any missing or non-object
// intermediate yields a missing value. A segment that has no exact match
// falls back to a case-insensitive key match; among several such keys the
// lexically smallest wins.
func (v Value) Lookup(path string) Value {
	cur := v
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '.' }) {
		if cur.kind != KindObject {
			return Missing()
		}
		next, ok := cur.obj[seg]
		if !ok {
			next = foldLookup(cur.obj, seg)
		}
		cur = next
	}
	return cur
}

func foldLookup(obj map[string]Value, seg string) Value {
	var keys []string
	for k := range obj {
		if strings.EqualFold(k, seg) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return Missing()
	}
	slices.Sort(keys)
	return obj[keys[0]]
}

// text renders scalars as strings; ok is false for absent and structured values
func (v Value) text() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64), true
	case KindBool:
		return strconv.FormatBool(v.b), true
	}
	return "", false
}

// FromAny converts decoded JSON (or any JSON-marshalable Go value) into a Value
func FromAny(x any) Value {
	switch t := x.(type) {
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
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return String(t.String())
	case time.Time:
		return String(t.UTC().Format(time.RFC3339Nano))
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, val := range t {
			m[k] = FromAny(val)
		}
		return Object(m)
	case []any:
		a := make([]Value, len(t))
		for i, val := range t {
			a[i] = FromAny(val)
		}
		return Array(a)
	case json.RawMessage:
		return fromJSON(t)
	case []byte:
		return fromJSON(t)
	}

	// Structs and typed maps go through their JSON representation
	data, err := json.Marshal(x)
	if err != nil {
		return Missing()
	}
	return fromJSON(data)
}

func fromJSON(data []byte) Value {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Missing()
	}
	return FromAny(decoded)
}
