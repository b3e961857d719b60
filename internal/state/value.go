package state

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing constrained state value types.
// Only Null, String, Int, Bool, Array, and Object implement it.
// There is deliberately no float variant - floats break deterministic
// serialization and are rejected at the mapping layer.
type Value interface {
	stateValue() // Sealed - only these types implement it
}

// Null represents an absent property value in a state snapshot.
// Null is allowed inside snapshots (a loaded property may be null) but is
// forbidden in canonical output; callers strip nulls before persisting.
type Null struct{}

func (Null) stateValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string property value.
type String string

func (String) stateValue() {}

// Int represents an integer property value. Always int64.
type Int int64

func (Int) stateValue() {}

// Bool represents a boolean property value.
type Bool bool

func (Bool) stateValue() {}

// Array represents an ordered sequence of values, e.g. an element
// collection snapshot.
type Array []Value

func (Array) stateValue() {}

// Object represents a map of property names to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) stateValue() {}

// Pair is a key-value pair for typed Object construction.
type Pair struct {
	Key   string
	Value Value
}

// NewObject creates an Object from typed key-value pairs.
// Provides compile-time type safety - cannot pass floats.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// P is a shorthand Pair constructor.
// Example: NewObject(P("status", String("open")), P("total", Int(5)))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// Equal reports deep equality of two values.
// Used by the collection delta computation to classify same-identity
// elements as modified or unchanged.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, present := bv[k]
			if !present || !Equal(v, ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order for
// characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))

	n := len(ua)
	if len(ub) < n {
		n = len(ub)
	}
	for i := 0; i < n; i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	default:
		return 0
	}
}
