// Package record holds decoded or application-built message instances. Every
// field of a Record is either unset or holds a value of the field's type;
// unset is never represented by a zero value.
package record

import (
	"errors"
	"fmt"

	"github.com/anirudhraja/devwire/schema"
)

var (
	// ErrUnknownField is returned when a name does not belong to the schema.
	ErrUnknownField = errors.New("record: unknown field")
	// ErrInvalidValue is returned when a value cannot be stored in a field.
	ErrInvalidValue = errors.New("record: invalid value")
)

// Resolver looks up the schemas of nested messages and enums.
// *registry.Registry satisfies it.
type Resolver interface {
	GetMessage(name string) (*schema.Message, error)
	GetEnum(name string) (*schema.Enum, error)
}

// Record is one instance of a message schema. It is not safe for concurrent
// mutation.
type Record struct {
	msg     *schema.Message
	res     Resolver
	values  map[int32]any
	unknown []byte
}

// New returns a record with every field unset.
func New(msg *schema.Message) *Record {
	return &Record{msg: msg, values: make(map[int32]any)}
}

// NewWithResolver is New with a resolver for nested messages and enum names.
func NewWithResolver(msg *schema.Message, res Resolver) *Record {
	r := New(msg)
	r.res = res
	return r
}

// Construct builds a record from values keyed by field name or JSON name.
// Fields missing from values stay unset and read as their declared default,
// exactly like fields absent from a decoded buffer. A nil entry in values
// also leaves the field unset. Supplying a field under both of its names is
// an error.
func Construct(msg *schema.Message, values map[string]any, res Resolver) (*Record, error) {
	r := NewWithResolver(msg, res)
	for _, f := range msg.Fields {
		v, ok := values[f.Name]
		if f.JSONName != "" && f.JSONName != f.Name {
			if jv, has := values[f.JSONName]; has {
				if ok {
					return nil, fmt.Errorf("%w: %s.%s given as both %s and %s", ErrInvalidValue, msg.Name, f.Name, f.Name, f.JSONName)
				}
				v = jv
			}
		}
		if v == nil {
			continue
		}
		if err := r.setField(f, v); err != nil {
			return nil, err
		}
	}
	for name := range values {
		if _, ok := msg.FieldByName(name); ok {
			continue
		}
		if !hasJSONName(msg, name) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, msg.Name, name)
		}
	}
	return r, nil
}

func hasJSONName(msg *schema.Message, name string) bool {
	for _, f := range msg.Fields {
		if f.JSONName != "" && f.JSONName == name {
			return true
		}
	}
	return false
}

// Schema returns the message schema this record was built for.
func (r *Record) Schema() *schema.Message { return r.msg }

// Resolver returns the resolver attached to the record, if any.
func (r *Record) Resolver() Resolver { return r.res }

// Get returns the value of a field, falling back to its declared default
// when unset. ok is false when the field is unset and has no default.
func (r *Record) Get(name string) (any, bool) {
	f, ok := r.msg.FieldByName(name)
	if !ok {
		return nil, false
	}
	if v, ok := r.values[f.Number]; ok {
		return v, true
	}
	return r.defaultOf(f)
}

// defaultOf returns the declared default of f in the field's Go type.
func (r *Record) defaultOf(f *schema.Field) (any, bool) {
	if f.DefaultValue == nil {
		return nil, false
	}
	v, err := r.coerce(f, f.DefaultValue)
	if err != nil {
		return nil, false
	}
	return v, true
}

// GetByNumber returns the value stored under a tag and whether it is set.
func (r *Record) GetByNumber(n int32) (any, bool) {
	v, ok := r.values[n]
	return v, ok
}

// IsSet reports whether the named field holds a value. A declared default
// does not count.
func (r *Record) IsSet(name string) bool {
	f, ok := r.msg.FieldByName(name)
	if !ok {
		return false
	}
	_, ok = r.values[f.Number]
	return ok
}

// Set stores v in the named field. A nil v clears the field.
func (r *Record) Set(name string, v any) error {
	f, ok := r.msg.FieldByName(name)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, r.msg.Name, name)
	}
	if v == nil {
		delete(r.values, f.Number)
		return nil
	}
	return r.setField(f, v)
}

// SetByNumber stores v under tag n. A nil v clears the field.
func (r *Record) SetByNumber(n int32, v any) error {
	f, ok := r.msg.FieldByNumber(n)
	if !ok {
		return fmt.Errorf("%w: %s tag %d", ErrUnknownField, r.msg.Name, n)
	}
	if v == nil {
		delete(r.values, f.Number)
		return nil
	}
	return r.setField(f, v)
}

// AppendByNumber adds one element to the repeated field with tag n.
func (r *Record) AppendByNumber(n int32, v any) error {
	f, ok := r.msg.FieldByNumber(n)
	if !ok {
		return fmt.Errorf("%w: %s tag %d", ErrUnknownField, r.msg.Name, n)
	}
	if !f.IsRepeated() {
		return fmt.Errorf("%w: %s.%s is not repeated", ErrInvalidValue, r.msg.Name, f.Name)
	}
	c, err := r.coerceSingle(f, v)
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrInvalidValue, r.msg.Name, f.Name, err)
	}
	list, _ := r.values[f.Number].([]any)
	r.values[f.Number] = append(list, c)
	return nil
}

func (r *Record) setField(f *schema.Field, v any) error {
	c, err := r.coerce(f, v)
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrInvalidValue, r.msg.Name, f.Name, err)
	}
	r.values[f.Number] = c
	return nil
}

// Clear unsets the named field.
func (r *Record) Clear(name string) {
	if f, ok := r.msg.FieldByName(name); ok {
		delete(r.values, f.Number)
	}
}

// Len returns the number of set fields.
func (r *Record) Len() int { return len(r.values) }

// Range calls fn for every field in declaration order, set or not. It stops
// when fn returns false.
func (r *Record) Range(fn func(f *schema.Field, v any, set bool) bool) {
	for _, f := range r.msg.Fields {
		v, ok := r.values[f.Number]
		if !fn(f, v, ok) {
			return
		}
	}
}

// Unknown returns the raw bytes of fields the schema did not recognise,
// retained only when the decoder was configured to preserve them.
func (r *Record) Unknown() []byte { return r.unknown }

// SetUnknown replaces the retained unknown-field bytes.
func (r *Record) SetUnknown(b []byte) { r.unknown = b }

// AsMap returns every field keyed by name. Unset fields map to their
// declared default, or nil when there is none. Nested records become maps.
func (r *Record) AsMap() map[string]any {
	out := make(map[string]any, len(r.msg.Fields))
	r.Range(func(f *schema.Field, v any, set bool) bool {
		if !set {
			d, _ := r.defaultOf(f)
			out[f.Name] = d
			return true
		}
		out[f.Name] = plain(v)
		return true
	})
	return out
}

// SetMap returns only the set fields keyed by name.
func (r *Record) SetMap() map[string]any {
	out := make(map[string]any, len(r.values))
	r.Range(func(f *schema.Field, v any, set bool) bool {
		if set {
			out[f.Name] = plain(v)
		}
		return true
	})
	return out
}

func plain(v any) any {
	switch t := v.(type) {
	case *Record:
		return t.AsMap()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

// GetString returns the named string field.
func (r *Record) GetString(name string) Optional[string] { return typed[string](r, name) }

// GetBytes returns the named bytes field.
func (r *Record) GetBytes(name string) Optional[[]byte] { return typed[[]byte](r, name) }

// GetBool returns the named bool field.
func (r *Record) GetBool(name string) Optional[bool] { return typed[bool](r, name) }

// GetUint32 returns the named uint32 field.
func (r *Record) GetUint32(name string) Optional[uint32] { return typed[uint32](r, name) }

// GetUint64 returns the named uint64 field.
func (r *Record) GetUint64(name string) Optional[uint64] { return typed[uint64](r, name) }

// GetInt32 returns the named int32, sint32 or enum field.
func (r *Record) GetInt32(name string) Optional[int32] { return typed[int32](r, name) }

// GetInt64 returns the named int64 or sint64 field.
func (r *Record) GetInt64(name string) Optional[int64] { return typed[int64](r, name) }

// GetMessage returns the named nested message field.
func (r *Record) GetMessage(name string) Optional[*Record] { return typed[*Record](r, name) }

func typed[T any](r *Record, name string) Optional[T] {
	v, ok := r.Get(name)
	if !ok {
		return None[T]()
	}
	t, ok := v.(T)
	if !ok {
		return None[T]()
	}
	return Some(t)
}

// Put stores an optional value: unset clears the field.
func Put[T any](r *Record, name string, o Optional[T]) error {
	v, ok := o.Get()
	if !ok {
		return r.Set(name, nil)
	}
	return r.Set(name, v)
}
