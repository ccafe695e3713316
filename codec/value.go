package codec

// Kind discriminates the variant held by a Value. Looker API responses are
// trees built from exactly these eight shapes (spec §4.1).
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindArray
	KindMap
)

// Value is a single node in a decoded Looker API tree. Exactly one of the
// typed fields is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
	Array []Value
	Map   *OrderedMap
}

func Null() Value           { return Value{Kind: KindNull} }
func Bool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Bytes(b []byte) Value  { return Value{Kind: KindBytes, Bytes: b} }
func Array(v []Value) Value { return Value{Kind: KindArray, Array: v} }
func Map(m *OrderedMap) Value {
	return Value{Kind: KindMap, Map: m}
}

// Equal performs a deep structural comparison, used by tests asserting
// round-trip fidelity (decode(encode(x)) == x).
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	case KindBytes:
		if len(v.Bytes) != len(other.Bytes) {
			return false
		}
		for i := range v.Bytes {
			if v.Bytes[i] != other.Bytes[i] {
				return false
			}
		}
		return true
	case KindArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.Map.Equal(other.Map)
	default:
		return false
	}
}

// OrderedMap is a string-keyed map that preserves insertion order, since
// the codec's determinism and key-order invariants (spec §4.1, §8) cannot
// be satisfied by Go's native map iteration order.
type OrderedMap struct {
	keys []string
	vals map[string]Value
}

// NewOrderedMap creates an empty ordered map.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{vals: make(map[string]Value)}
}

// Set inserts or replaces the value for key. Replacing an existing key
// keeps its original position.
func (m *OrderedMap) Set(key string, v Value) {
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (Value, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	return m.keys
}

// Len returns the number of entries.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// Equal performs a deep, order-sensitive comparison.
func (m *OrderedMap) Equal(other *OrderedMap) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.keys) != len(other.keys) {
		return false
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		v1 := m.vals[k]
		v2, ok := other.vals[k]
		if !ok || !v1.Equal(v2) {
			return false
		}
	}
	return true
}
