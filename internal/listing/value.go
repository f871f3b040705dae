package listing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Payload is a single untyped JSON object returned by, or derived from, a
// provider response.
type Payload map[string]any

// Kind classifies a decoded JSON value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindScalar
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "null"
	}
}

// Value wraps a decoded JSON value and exposes kind-checked accessors.
// The zero Value is Null.
type Value struct {
	raw any
}

// ValueOf wraps v. Unsupported Go types are treated as Null.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case Value:
		return t
	case Payload:
		return Value{raw: map[string]any(t)}
	case []Payload:
		items := make([]any, len(t))
		for i, p := range t {
			items[i] = map[string]any(p)
		}
		return Value{raw: items}
	case []map[string]any:
		items := make([]any, len(t))
		for i, m := range t {
			items[i] = m
		}
		return Value{raw: items}
	case []string:
		items := make([]any, len(t))
		for i, s := range t {
			items[i] = s
		}
		return Value{raw: items}
	}
	return Value{raw: v}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind {
	switch v.raw.(type) {
	case map[string]any, Payload:
		return KindMapping
	case []any:
		return KindSequence
	case string, bool, float64, float32, int, int32, int64, json.Number:
		return KindScalar
	default:
		return KindNull
	}
}

// Raw returns the wrapped value.
func (v Value) Raw() any {
	return v.raw
}

func (v Value) mapping() map[string]any {
	switch t := v.raw.(type) {
	case map[string]any:
		return t
	case Payload:
		return t
	}
	return nil
}

// Get looks up key in a Mapping. Any other kind yields Null.
func (v Value) Get(key string) Value {
	m := v.mapping()
	if m == nil {
		return Value{}
	}
	return ValueOf(m[key])
}

// Path follows keys through nested Mappings.
func (v Value) Path(keys ...string) Value {
	cur := v
	for _, k := range keys {
		cur = cur.Get(k)
	}
	return cur
}

// Items returns the elements of a Sequence, or nil for any other kind.
func (v Value) Items() []Value {
	seq, ok := v.raw.([]any)
	if !ok {
		return nil
	}
	out := make([]Value, len(seq))
	for i, item := range seq {
		out[i] = ValueOf(item)
	}
	return out
}

// Index returns the i-th element of a Sequence, or Null.
func (v Value) Index(i int) Value {
	seq, ok := v.raw.([]any)
	if !ok || i < 0 || i >= len(seq) {
		return Value{}
	}
	return ValueOf(seq[i])
}

// Len returns the number of entries in a Mapping or Sequence.
func (v Value) Len() int {
	if m := v.mapping(); m != nil {
		return len(m)
	}
	if seq, ok := v.raw.([]any); ok {
		return len(seq)
	}
	return 0
}

// Text renders a Scalar as a string. Strings are returned trimmed.
func (v Value) Text() (string, bool) {
	switch t := v.raw.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

// Number returns a numeric Scalar as float64. Strings and booleans are not
// numbers.
func (v Value) Number() (float64, bool) {
	switch t := v.raw.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// IsEmpty reports whether v carries no usable data: Null, a blank string,
// or an empty Mapping or Sequence. Zero and false are not empty.
func (v Value) IsEmpty() bool {
	switch v.Kind() {
	case KindNull:
		return true
	case KindScalar:
		if s, ok := v.raw.(string); ok {
			return strings.TrimSpace(s) == ""
		}
		return false
	default:
		return v.Len() == 0
	}
}

// Truthy reports whether v is non-empty and, for scalars, non-zero and
// not false.
func (v Value) Truthy() bool {
	if v.IsEmpty() {
		return false
	}
	if b, ok := v.raw.(bool); ok {
		return b
	}
	if f, ok := v.Number(); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// FirstPresent returns the first non-empty value, with strings trimmed.
func FirstPresent(values ...Value) Value {
	for _, v := range values {
		if v.IsEmpty() {
			continue
		}
		if s, ok := v.raw.(string); ok {
			return Value{raw: strings.TrimSpace(s)}
		}
		return v
	}
	return Value{}
}

// Lookup returns the first non-empty value stored under one of keys.
func (v Value) Lookup(keys ...string) Value {
	for _, k := range keys {
		if got := FirstPresent(v.Get(k)); !got.IsEmpty() {
			return got
		}
	}
	return Value{}
}

// FirstText returns the text of the first non-empty scalar stored under one
// of keys.
func (v Value) FirstText(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := v.Get(k).Text(); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Strings flattens v into a list of non-empty strings. A Scalar becomes a
// one-element list; Sequence elements contribute their text or, for
// Mappings, the first of their url/src fields.
func Strings(v Value) []string {
	switch v.Kind() {
	case KindScalar:
		if s, ok := v.Text(); ok && s != "" {
			return []string{s}
		}
	case KindSequence:
		var out []string
		for _, item := range v.Items() {
			switch item.Kind() {
			case KindScalar:
				if s, ok := item.Text(); ok && s != "" {
					out = append(out, s)
				}
			case KindMapping:
				if s, ok := item.FirstText(mediaURLKeys...); ok {
					out = append(out, s)
				}
			}
		}
		return out
	}
	return nil
}

// Get is a convenience for ValueOf(p).Get(key).
func (p Payload) Get(key string) Value {
	return ValueOf(p).Get(key)
}

// HasData reports whether at least one field of p is truthy.
func (p Payload) HasData() bool {
	for _, v := range p {
		if ValueOf(v).Truthy() {
			return true
		}
	}
	return false
}
