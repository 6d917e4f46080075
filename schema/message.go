package schema

import (
	"errors"
	"fmt"

	"github.com/iancoleman/strcase"
	"go.uber.org/multierr"
)

var (
	// ErrRetiredFieldReuse is returned when a retired tag or name is bound to a field again.
	ErrRetiredFieldReuse = errors.New("schema: retired field reused")
	// ErrFieldRedefined is returned when a published tag changes name or type.
	ErrFieldRedefined = errors.New("schema: field redefined")
	// ErrDuplicateField is returned when two fields share a tag or a name.
	ErrDuplicateField = errors.New("schema: duplicate field")
	// ErrFieldDropped is returned when a published field disappears without a reservation.
	ErrFieldDropped = errors.New("schema: field dropped without reservation")
	// ErrInvalidTag is returned for tags outside 1..MaxFieldNumber.
	ErrInvalidTag = errors.New("schema: invalid tag")
)

// MaxFieldNumber is the largest tag the wire key can carry.
const MaxFieldNumber = 1<<29 - 1

// JSONName returns the lowerCamel form used for a field's JSON name.
func JSONName(name string) string {
	return strcase.ToLowerCamel(name)
}

// DescribeFields returns the canonical field list in declaration order.
// The returned slice is a copy; the fields themselves are shared and must not
// be modified.
func (m *Message) DescribeFields() []*Field {
	out := make([]*Field, len(m.Fields))
	copy(out, m.Fields)
	return out
}

// WireIdentity returns the discriminator a framing layer uses to route a
// buffer to this schema.
func (m *Message) WireIdentity() uint32 {
	return m.WireTypeID
}

func (m *Message) index() {
	m.once.Do(func() {
		m.byNumber = make(map[int32]*Field, len(m.Fields))
		m.byName = make(map[string]*Field, len(m.Fields))
		for _, f := range m.Fields {
			if _, ok := m.byNumber[f.Number]; !ok {
				m.byNumber[f.Number] = f
			}
			if _, ok := m.byName[f.Name]; !ok {
				m.byName[f.Name] = f
			}
		}
	})
}

// FieldByNumber looks a field up by tag.
func (m *Message) FieldByNumber(n int32) (*Field, bool) {
	m.index()
	f, ok := m.byNumber[n]
	return f, ok
}

// FieldByName looks a field up by its schema name.
func (m *Message) FieldByName(name string) (*Field, bool) {
	m.index()
	f, ok := m.byName[name]
	return f, ok
}

// IsReserved reports whether tag n has been retired.
func (m *Message) IsReserved(n int32) bool {
	for _, r := range m.Reserved {
		if r.Contains(n) {
			return true
		}
	}
	return false
}

func (m *Message) isReservedName(name string) bool {
	for _, n := range m.ReservedNames {
		if n == name {
			return true
		}
	}
	return false
}

// Validate checks the field table for duplicate tags or names, out of range
// tags and reuse of retired tags or names. All violations are reported.
func (m *Message) Validate() error {
	var err error
	numbers := make(map[int32]string, len(m.Fields))
	names := make(map[string]struct{}, len(m.Fields))

	for _, f := range m.Fields {
		if f.Number < 1 || f.Number > MaxFieldNumber {
			err = multierr.Append(err, fmt.Errorf("%w: %s.%s has tag %d", ErrInvalidTag, m.Name, f.Name, f.Number))
		}
		if prev, ok := numbers[f.Number]; ok {
			err = multierr.Append(err, fmt.Errorf("%w: %s tag %d used by %s and %s", ErrDuplicateField, m.Name, f.Number, prev, f.Name))
		} else {
			numbers[f.Number] = f.Name
		}
		if _, ok := names[f.Name]; ok {
			err = multierr.Append(err, fmt.Errorf("%w: %s name %q declared twice", ErrDuplicateField, m.Name, f.Name))
		}
		names[f.Name] = struct{}{}

		if m.IsReserved(f.Number) {
			err = multierr.Append(err, fmt.Errorf("%w: %s.%s uses reserved tag %d", ErrRetiredFieldReuse, m.Name, f.Name, f.Number))
		}
		if m.isReservedName(f.Name) {
			err = multierr.Append(err, fmt.Errorf("%w: %s.%s uses a reserved name", ErrRetiredFieldReuse, m.Name, f.Name))
		}
	}

	for _, r := range m.Reserved {
		if r.Start < 1 || r.End < r.Start {
			err = multierr.Append(err, fmt.Errorf("%w: %s reserved range %d-%d", ErrInvalidTag, m.Name, r.Start, r.End))
		}
	}

	for _, nested := range m.NestedTypes {
		err = multierr.Append(err, nested.Validate())
	}
	return err
}

// CheckEvolution compares a new version of a schema against the previously
// published one. A published tag must keep its name and type, and a tag the
// previous version retired, or dropped without reserving, must not come back.
func CheckEvolution(prev, next *Message) error {
	if err := next.Validate(); err != nil {
		return err
	}

	var err error
	for _, f := range next.Fields {
		old, ok := prev.FieldByNumber(f.Number)
		switch {
		case ok && old.Name != f.Name:
			err = multierr.Append(err, fmt.Errorf("%w: %s tag %d renamed %s -> %s", ErrFieldRedefined, next.Name, f.Number, old.Name, f.Name))
		case ok && !sameType(old, f):
			err = multierr.Append(err, fmt.Errorf("%w: %s.%s (tag %d) changed type", ErrFieldRedefined, next.Name, f.Name, f.Number))
		case !ok && prev.IsReserved(f.Number):
			err = multierr.Append(err, fmt.Errorf("%w: %s.%s reuses tag %d retired in the previous version", ErrRetiredFieldReuse, next.Name, f.Name, f.Number))
		}
	}

	for _, old := range prev.Fields {
		if _, ok := next.FieldByNumber(old.Number); ok {
			continue
		}
		if !next.IsReserved(old.Number) {
			err = multierr.Append(err, fmt.Errorf("%w: %s dropped %s (tag %d)", ErrFieldDropped, next.Name, old.Name, old.Number))
		}
	}
	return err
}

func sameType(a, b *Field) bool {
	return a.Type == b.Type && a.IsRepeated() == b.IsRepeated()
}
