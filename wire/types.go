package wire

// ===== WIRE FORMAT TYPES =====

// WireType represents the payload-shape code carried in each field key
type WireType int32

const (
	WireVarint     WireType = 0 // uint32, uint64, int32, int64, sint32, sint64, bool, enum
	WireFixed64    WireType = 1 // skipped only: no schema type maps here
	WireBytes      WireType = 2 // string, bytes, embedded messages, packed repeated fields
	WireStartGroup WireType = 3 // deprecated groups, rejected
	WireEndGroup   WireType = 4 // deprecated groups, rejected
	WireFixed32    WireType = 5 // skipped only: no schema type maps here
)

func (wt WireType) String() string {
	switch wt {
	case WireVarint:
		return "varint"
	case WireFixed64:
		return "fixed64"
	case WireBytes:
		return "bytes"
	case WireStartGroup:
		return "start_group"
	case WireEndGroup:
		return "end_group"
	case WireFixed32:
		return "fixed32"
	default:
		return "invalid"
	}
}

// FieldNumber represents a field tag number
type FieldNumber int32

// Tag represents a field key (field number + wire type)
type Tag uint64

// MakeTag creates a tag from field number and wire type
func MakeTag(fieldNumber FieldNumber, wireType WireType) Tag {
	return Tag(uint64(fieldNumber)<<3 | uint64(wireType))
}

// ParseTag parses a tag into field number and wire type
func ParseTag(tag Tag) (FieldNumber, WireType) {
	return FieldNumber(tag >> 3), WireType(tag & 0x7)
}

// RawValue represents a raw (undecoded) field as it appeared on the wire
type RawValue struct {
	FieldNumber FieldNumber
	WireType    WireType
	Offset      int    // offset of the field key
	RawData     []byte // key and payload
	Value       any    // uint64 for varints and fixed widths, []byte for length-delimited
}
