package provenance

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Value is a tagged JSON-like value used for transition params and history
// tree payloads. It exists so canonical hashing has one concrete type to
// walk instead of hashing ad-hoc string concatenations.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

// Kind identifies the concrete shape a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func Null() Value                  { return Value{kind: KindNull} }
func Bool(b bool) Value            { return Value{kind: KindBool, b: b} }
func Number(n float64) Value       { return Value{kind: KindNumber, n: n} }
func String(s string) Value        { return Value{kind: KindString, s: s} }
func Array(items ...Value) Value   { return Value{kind: KindArray, arr: items} }
func Object(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindObject, obj: m}
}

func (v Value) Kind() Kind { return v.kind }

// FromAny converts a plain Go value (as produced by encoding/json.Unmarshal
// into interface{}, or built by hand from map[string]interface{}, []any,
// string, float64, bool, nil) into a Value. It panics on unsupported types;
// use it only where the caller controls the shape (tests, internal
// construction). For values originating outside the process — an HTTP
// request body, a file read from disk — use TryFromAny instead, since a
// caller-supplied type it can't represent is not a programmer error.
func FromAny(in interface{}) Value {
	v, err := TryFromAny(in)
	if err != nil {
		panic(err)
	}
	return v
}

// TryFromAny is FromAny without the panic: an unsupported type is reported
// as a CanonicalizationError rather than crashing the caller.
func TryFromAny(in interface{}) (Value, error) {
	switch t := in.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			v, err := TryFromAny(e)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			v, err := TryFromAny(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return Object(m), nil
	case Value:
		return t, nil
	default:
		return Value{}, &CanonicalizationError{Reason: fmt.Sprintf("unsupported param type %T", in)}
	}
}

// canon serializes v deterministically: object keys sorted lexicographically,
// no insignificant whitespace, arrays in given order, numbers in shortest
// round-tripping decimal form, strings normalized via Go's default quoting.
func (v Value) canon(buf *[]byte) {
	switch v.kind {
	case KindNull:
		*buf = append(*buf, "null"...)
	case KindBool:
		if v.b {
			*buf = append(*buf, "true"...)
		} else {
			*buf = append(*buf, "false"...)
		}
	case KindNumber:
		*buf = append(*buf, strconv.FormatFloat(v.n, 'g', -1, 64)...)
	case KindString:
		*buf = append(*buf, strconv.Quote(v.s)...)
	case KindArray:
		*buf = append(*buf, '[')
		for i, e := range v.arr {
			if i > 0 {
				*buf = append(*buf, ',')
			}
			e.canon(buf)
		}
		*buf = append(*buf, ']')
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		*buf = append(*buf, '{')
		for i, k := range keys {
			if i > 0 {
				*buf = append(*buf, ',')
			}
			*buf = append(*buf, strconv.Quote(k)...)
			*buf = append(*buf, ':')
			v.obj[k].canon(buf)
		}
		*buf = append(*buf, '}')
	}
}

// Canon returns v's canonical byte encoding.
func (v Value) Canon() []byte {
	buf := make([]byte, 0, 64)
	v.canon(&buf)
	return buf
}

// MarshalJSON satisfies encoding/json so Value can be embedded in ordinary
// structs (transition params on the wire, persona.Node.Data) without callers
// needing to know about the tagged-variant internals.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		return json.Marshal(v.arr)
	case KindObject:
		return json.Marshal(v.obj)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON value into its tagged-variant form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}
