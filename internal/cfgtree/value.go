package cfgtree

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "null"
	}
}

// Value is one node of a configuration tree. The zero Value is null.
type Value struct {
	kind   Kind
	scalar any
	items  []Value
	m      *Map
}

// Null returns the null value.
func Null() Value { return Value{} }

// Scalar wraps a string, bool, number or timestamp. A nil v yields Null.
func Scalar(v any) Value {
	if v == nil {
		return Value{}
	}
	return Value{kind: KindScalar, scalar: v}
}

// Sequence builds a sequence value from items.
func Sequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, items: items}
}

// Mapping wraps m. A nil m yields an empty mapping.
func Mapping(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMapping, m: m}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsScalar() bool    { return v.kind == KindScalar }
func (v Value) IsSequence() bool  { return v.kind == KindSequence }
func (v Value) IsMapping() bool   { return v.kind == KindMapping }
func (v Value) ScalarValue() any  { return v.scalar }
func (v Value) Items() []Value    { return v.items }

// Map returns the mapping held by v, or nil if v is not a mapping.
func (v Value) Map() *Map {
	if v.kind != KindMapping {
		return nil
	}
	return v.m
}

// AsString returns the scalar as a string if it is one.
func (v Value) AsString() (string, bool) {
	s, ok := v.scalar.(string)
	return s, ok && v.kind == KindScalar
}

// AsBool interprets the scalar as a boolean.
func (v Value) AsBool() (bool, bool) {
	switch s := v.scalar.(type) {
	case bool:
		return s, true
	case string:
		b, err := strconv.ParseBool(s)
		return b, err == nil
	}
	return false, false
}

// Text renders a scalar as plain text. Null renders as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindScalar:
		if s, ok := v.scalar.(string); ok {
			return s
		}
		return fmt.Sprint(v.scalar)
	default:
		return fmt.Sprint(v.Interface())
	}
}

// Interface converts v to plain Go values: map[string]any, []any, scalars and nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindSequence:
		out := make([]any, len(v.items))
		for i, it := range v.items {
			out[i] = it.Interface()
		}
		return out
	case KindMapping:
		return v.m.Interface()
	default:
		return nil
	}
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSequence:
		items := make([]Value, len(v.items))
		for i, it := range v.items {
			items[i] = it.Clone()
		}
		return Value{kind: KindSequence, items: items}
	case KindMapping:
		return Value{kind: KindMapping, m: v.m.Clone()}
	default:
		return v
	}
}

// Equal reports structural equality, ignoring mapping key order.
func (v Value) Equal(o Value) bool {
	return reflect.DeepEqual(v.Interface(), o.Interface())
}

// FromAny converts plain Go values into a Value. Maps are ordered by sorted key.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t.Clone()
	case *Map:
		return Mapping(t.Clone())
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, FromAny(t[k]))
		}
		return Mapping(m)
	case []any:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = FromAny(it)
		}
		return Sequence(items...)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := fmt.Sprint(iter.Key().Interface())
			keys = append(keys, k)
			byKey[k] = iter.Value()
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, FromAny(byKey[k].Interface()))
		}
		return Mapping(m)
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = FromAny(rv.Index(i).Interface())
		}
		return Sequence(items...)
	case reflect.Pointer:
		if rv.IsNil() {
			return Null()
		}
		return FromAny(rv.Elem().Interface())
	}
	return Scalar(x)
}
