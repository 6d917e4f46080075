package schema

import "sync"

// ProtoFile represents a single .proto file
type ProtoFile struct {
	Name     string     `json:"name"`     // file.proto
	Package  string     `json:"package"`  // package name
	Syntax   string     `json:"syntax"`   // proto2 or proto3
	Messages []*Message `json:"messages"` // message definitions
	Enums    []*Enum    `json:"enums"`    // enum definitions
}

// Message describes one record type: its fields in declaration order, the
// tags it has retired, and the identity used to route framed buffers to it.
type Message struct {
	Name          string          `json:"name"`           // "Features"
	WireTypeID    uint32          `json:"wire_type_id"`   // envelope discriminator, 0 if unassigned
	Fields        []*Field        `json:"fields"`         // declaration order
	Reserved      []ReservedRange `json:"reserved"`       // retired tag ranges
	ReservedNames []string        `json:"reserved_names"` // retired field names
	NestedTypes   []*Message      `json:"nested_types"`   // nested messages
	NestedEnums   []*Enum         `json:"nested_enums"`   // nested enums

	once     sync.Once
	byNumber map[int32]*Field
	byName   map[string]*Field
}

// Field represents a message field
type Field struct {
	Name         string     `json:"name"`          // "passphrase_cached"
	Number       int32      `json:"number"`        // 17
	Label        FieldLabel `json:"label"`         // optional, required, repeated
	Type         FieldType  `json:"type"`          // field type information
	DefaultValue any        `json:"default_value"` // nil means unset
	JSONName     string     `json:"json_name"`     // "passphraseCached"
}

// IsRepeated reports whether occurrences accumulate into a sequence.
func (f *Field) IsRepeated() bool { return f.Label == LabelRepeated }

// ReservedRange is an inclusive range of retired tag numbers.
type ReservedRange struct {
	Start int32 `json:"start"`
	End   int32 `json:"end"`
}

// Contains reports whether n falls inside the range.
func (r ReservedRange) Contains(n int32) bool { return n >= r.Start && n <= r.End }

// FieldLabel represents field labels
type FieldLabel string

const (
	LabelOptional FieldLabel = "optional"
	LabelRequired FieldLabel = "required"
	LabelRepeated FieldLabel = "repeated"
)

// FieldType represents field type information
type FieldType struct {
	Kind          TypeKind      `json:"kind"`                     // primitive, message, enum
	PrimitiveType PrimitiveType `json:"primitive_type,omitempty"` // for primitive types
	MessageType   string        `json:"message_type,omitempty"`   // for message types
	EnumType      string        `json:"enum_type,omitempty"`      // for enum types
}

// TypeKind represents the kind of field type
type TypeKind string

const (
	KindPrimitive TypeKind = "primitive"
	KindMessage   TypeKind = "message"
	KindEnum      TypeKind = "enum"
)

// PrimitiveType represents the scalar types the codec understands.
type PrimitiveType string

const (
	TypeString PrimitiveType = "string"
	TypeBytes  PrimitiveType = "bytes"
	TypeBool   PrimitiveType = "bool"
	TypeUint32 PrimitiveType = "uint32"
	TypeUint64 PrimitiveType = "uint64"
	TypeInt32  PrimitiveType = "int32"
	TypeInt64  PrimitiveType = "int64"
	TypeSint32 PrimitiveType = "sint32"
	TypeSint64 PrimitiveType = "sint64"
)

var primitiveNames = map[string]PrimitiveType{
	"string": TypeString,
	"bytes":  TypeBytes,
	"bool":   TypeBool,
	"uint32": TypeUint32,
	"uint64": TypeUint64,
	"int32":  TypeInt32,
	"int64":  TypeInt64,
	"sint32": TypeSint32,
	"sint64": TypeSint64,
}

// LookupPrimitive maps a .proto scalar keyword to its PrimitiveType.
func LookupPrimitive(name string) (PrimitiveType, bool) {
	p, ok := primitiveNames[name]
	return p, ok
}

var packedEligible = map[PrimitiveType]struct{}{
	TypeBool:   {},
	TypeUint32: {},
	TypeUint64: {},
	TypeInt32:  {},
	TypeInt64:  {},
	TypeSint32: {},
	TypeSint64: {},
}

// IsPackedType checks and returns if the Primitive type is packed for repeated label
func IsPackedType(t PrimitiveType) bool {
	_, ok := packedEligible[t]
	return ok
}

// Enum represents an enum definition
type Enum struct {
	Name   string       `json:"name"`   // "MessageType"
	Values []*EnumValue `json:"values"` // enum values
}

// EnumValue represents an enum value
type EnumValue struct {
	Name   string `json:"name"`   // "MessageType_Features"
	Number int32  `json:"number"` // 17
}

// ValueByNumber returns the enum value with the given number, if declared.
func (e *Enum) ValueByNumber(n int32) (*EnumValue, bool) {
	for _, v := range e.Values {
		if v.Number == n {
			return v, true
		}
	}
	return nil, false
}

// String builds a primitive string FieldType; the helpers below do the same
// for the other scalars and keep hand-written schema tables short.
func String() FieldType { return Primitive(TypeString) }
func Bytes() FieldType  { return Primitive(TypeBytes) }
func Bool() FieldType   { return Primitive(TypeBool) }
func Uint32() FieldType { return Primitive(TypeUint32) }
func Uint64() FieldType { return Primitive(TypeUint64) }

// Primitive builds a FieldType for the given scalar.
func Primitive(p PrimitiveType) FieldType {
	return FieldType{Kind: KindPrimitive, PrimitiveType: p}
}

// MessageOf builds a nested-message FieldType.
func MessageOf(name string) FieldType {
	return FieldType{Kind: KindMessage, MessageType: name}
}

// EnumOf builds an enum FieldType.
func EnumOf(name string) FieldType {
	return FieldType{Kind: KindEnum, EnumType: name}
}
