package cfgtree

// Map is a string-keyed mapping that remembers insertion order.
// A nil *Map behaves as an empty, read-only mapping.
type Map struct {
	keys []string
	vals map[string]Value
}

// NewMap returns an empty mapping.
func NewMap() *Map {
	return &Map{vals: map[string]Value{}}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present, even with a null value.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// GetString returns the string scalar under key, or "".
func (m *Map) GetString(key string) string {
	v, _ := m.Get(key)
	s, _ := v.AsString()
	return s
}

// Set stores v under key. New keys are appended; existing keys keep their position.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.vals[key]; !ok {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (m *Map) Clone() *Map {
	out := NewMap()
	if m == nil {
		return out
	}
	out.keys = make([]string, len(m.keys))
	copy(out.keys, m.keys)
	for k, v := range m.vals {
		out.vals[k] = v.Clone()
	}
	return out
}

// Interface converts the mapping to map[string]any.
func (m *Map) Interface() map[string]any {
	out := make(map[string]any, m.Len())
	m.Range(func(k string, v Value) bool {
		out[k] = v.Interface()
		return true
	})
	return out
}
