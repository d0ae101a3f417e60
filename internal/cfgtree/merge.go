package cfgtree

import (
	"strconv"
	"strings"
)

// Merge combines old and new, right-biased. When both are mappings the result
// merges them key by key, recursing into nested mappings. In every other case,
// sequences included, new replaces old outright. Neither input is modified.
func Merge(old, new Value) Value {
	if old.kind == KindMapping && new.kind == KindMapping {
		return Mapping(MergeMaps(old.m, new.m))
	}
	return new.Clone()
}

// MergeMaps is Merge for two mappings.
func MergeMaps(old, new *Map) *Map {
	out := old.Clone()
	new.Range(func(k string, nv Value) bool {
		if ov, ok := out.vals[k]; ok && ov.kind == KindMapping && nv.kind == KindMapping {
			out.Set(k, Mapping(MergeMaps(ov.m, nv.m)))
			return true
		}
		out.Set(k, nv.Clone())
		return true
	})
	return out
}

// Lookup resolves a dot-separated path. Sequence elements are addressed by index.
func Lookup(v Value, path string) (Value, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, part := range strings.Split(path, ".") {
		switch cur.kind {
		case KindMapping:
			next, ok := cur.m.Get(part)
			if !ok {
				return Value{}, false
			}
			cur = next
		case KindSequence:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(cur.items) {
				return Value{}, false
			}
			cur = cur.items[i]
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// MapStrings returns a copy of v with fn applied to every string scalar.
func MapStrings(v Value, fn func(string) string) Value {
	switch v.kind {
	case KindScalar:
		if s, ok := v.scalar.(string); ok {
			return Scalar(fn(s))
		}
		return v
	case KindSequence:
		items := make([]Value, len(v.items))
		for i, it := range v.items {
			items[i] = MapStrings(it, fn)
		}
		return Sequence(items...)
	case KindMapping:
		m := NewMap()
		v.m.Range(func(k string, child Value) bool {
			m.Set(k, MapStrings(child, fn))
			return true
		})
		return Mapping(m)
	}
	return v
}
