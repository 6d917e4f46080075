package record

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Optional holds a value that may be absent. The zero Optional is unset,
// which is distinct from a set zero value such as false or 0.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a set Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None returns an unset Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// FromPtr returns None for nil and Some(*p) otherwise.
func FromPtr[T any](p *T) Optional[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Get returns the value and whether it is set.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether a value is present.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// OrElse returns the value if set, def otherwise.
func (o Optional[T]) OrElse(def T) T {
	if o.set {
		return o.value
	}
	return def
}

// Ptr returns a pointer to a copy of the value, or nil when unset.
func (o Optional[T]) Ptr() *T {
	if !o.set {
		return nil
	}
	v := o.value
	return &v
}

// Any returns the value boxed, or nil when unset.
func (o Optional[T]) Any() any {
	if !o.set {
		return nil
	}
	return o.value
}

func (o Optional[T]) String() string {
	if !o.set {
		return "<unset>"
	}
	return fmt.Sprint(o.value)
}

// MarshalJSON encodes an unset value as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON treats null as unset.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Assign sets o from a boxed value. nil unsets it; any other value must have
// type T.
func (o *Optional[T]) Assign(v any) error {
	if v == nil {
		*o = None[T]()
		return nil
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return fmt.Errorf("cannot assign %T to Optional[%T]", v, zero)
	}
	*o = Some(t)
	return nil
}

// MarshalYAML encodes an unset value as null.
func (o Optional[T]) MarshalYAML() (any, error) {
	return o.Any(), nil
}

// UnmarshalYAML treats null as unset.
func (o *Optional[T]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null" {
		*o = None[T]()
		return nil
	}
	var v T
	if err := node.Decode(&v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
