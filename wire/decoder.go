package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/anirudhraja/devwire/logger"
	"github.com/anirudhraja/devwire/record"
	"github.com/anirudhraja/devwire/schema"
)

// Decoder handles low-level wire format decoding
type Decoder struct {
	buf      []byte
	pos      int
	base     int // offset of buf[0] within the outermost buffer
	depth    int
	resolver record.Resolver
	cfg      Config
}

// NewDecoder creates a new wire format decoder
func NewDecoder(data []byte) *Decoder {
	return &Decoder{
		buf: data,
		cfg: CurrentConfig(),
	}
}

// NewDecoderWithResolver creates a decoder that can resolve nested message
// and enum types, typically through a *registry.Registry
func NewDecoderWithResolver(data []byte, resolver record.Resolver) *Decoder {
	d := NewDecoder(data)
	d.resolver = resolver
	return d
}

// WithConfig overrides the global configuration for this decoder.
func (d *Decoder) WithConfig(c Config) *Decoder {
	d.cfg = c
	return d
}

// Offset returns the absolute position of the next byte to be read.
func (d *Decoder) Offset() int { return d.base + d.pos }

// DecodeMessage decodes bytes using schema - main entry point
func DecodeMessage(data []byte, msg *schema.Message, resolver record.Resolver) (*record.Record, error) {
	return NewDecoderWithResolver(data, resolver).DecodeWithSchema(msg)
}

// DecodeWithSchema decodes every field in the buffer into a record of msg.
// Unknown tags are skipped; fields absent from the buffer stay unset and read
// as their declared default.
func (d *Decoder) DecodeWithSchema(msg *schema.Message) (*record.Record, error) {
	rec := record.NewWithResolver(msg, d.resolver)
	var unknown []byte

	for d.pos < len(d.buf) {
		start := d.pos
		key, err := d.DecodeVarint()
		if err != nil {
			return nil, d.malformed(msg, nil, 0, start, fmt.Errorf("%w: %v", ErrInvalidFieldKey, err))
		}

		fieldNumber, wireType := ParseTag(Tag(key))
		if fieldNumber < 1 || key>>3 > schema.MaxFieldNumber {
			return nil, d.malformed(msg, nil, 0, start, fmt.Errorf("%w: field number %d", ErrInvalidFieldKey, key>>3))
		}

		field, ok := msg.FieldByNumber(int32(fieldNumber))
		if !ok {
			// Unknown field - skip it
			if err := d.skipField(wireType); err != nil {
				return nil, d.malformed(msg, nil, fieldNumber, start, err)
			}
			logger.Logger.Debug("skipped unknown field",
				zap.String("message", msg.Name),
				zap.Int32("tag", int32(fieldNumber)),
				zap.Stringer("wire_type", wireType),
				zap.Int("offset", d.base+start))
			if d.cfg.PreserveUnknownBytesOnDecode {
				unknown = append(unknown, d.buf[start:d.pos]...)
			}
			continue
		}

		if err := d.decodeField(rec, field, wireType); err != nil {
			return nil, d.malformed(msg, field, fieldNumber, start, err)
		}
	}

	if len(unknown) > 0 {
		rec.SetUnknown(unknown)
	}
	return rec, nil
}

// malformed builds the error for a failure at start. Errors already produced
// by a nested decoder keep their own offset and gain the enclosing field name.
func (d *Decoder) malformed(msg *schema.Message, field *schema.Field, n FieldNumber, start int, err error) error {
	var me *MalformedError
	if field != nil && errors.As(err, &me) {
		me.Message = msg.Name
		me.Path = append([]string{field.Name}, me.Path...)
		return me
	}
	name := ""
	if field != nil {
		name = field.Name
	}
	merr := &MalformedError{
		Message: msg.Name,
		Field:   name,
		Tag:     n,
		Offset:  d.base + start,
		Err:     err,
	}
	logger.Logger.Debug("decode failed", zap.Error(merr))
	return merr
}

// decodeField decodes one occurrence of a known field into rec
func (d *Decoder) decodeField(rec *record.Record, field *schema.Field, wireType WireType) error {
	expected := WireTypeOf(&field.Type)

	if field.IsRepeated() && wireType == WireBytes && packable(field) {
		return d.decodePacked(rec, field)
	}
	if wireType != expected {
		return fmt.Errorf("%w: got %s, field is %s", ErrWireTypeMismatch, wireType, expected)
	}

	value, err := d.DecodeTypedField(field)
	if err != nil {
		return err
	}

	if field.IsRepeated() {
		return rec.AppendByNumber(field.Number, value)
	}
	return rec.SetByNumber(field.Number, value)
}

// packable reports whether a repeated field may arrive as a packed run
func packable(field *schema.Field) bool {
	switch field.Type.Kind {
	case schema.KindEnum:
		return true
	case schema.KindPrimitive:
		return schema.IsPackedType(field.Type.PrimitiveType)
	default:
		return false
	}
}

// decodePacked reads a packed run of varint elements
func (d *Decoder) decodePacked(rec *record.Record, field *schema.Field) error {
	raw, err := NewBytesDecoder(d).DecodeRawBytes()
	if err != nil {
		return err
	}
	inner := d.sub(raw, d.pos-len(raw))
	for inner.pos < len(inner.buf) {
		value, err := inner.DecodeTypedField(field)
		if err != nil {
			return err
		}
		if err := rec.AppendByNumber(field.Number, value); err != nil {
			return err
		}
	}
	return nil
}

// sub returns a decoder over a payload that starts at pos within d.buf
func (d *Decoder) sub(buf []byte, pos int) *Decoder {
	return &Decoder{
		buf:      buf,
		base:     d.base + pos,
		depth:    d.depth,
		resolver: d.resolver,
		cfg:      d.cfg,
	}
}

// DecodeTypedField routes to the appropriate decoder based on field type
func (d *Decoder) DecodeTypedField(field *schema.Field) (any, error) {
	switch field.Type.Kind {
	case schema.KindPrimitive:
		return d.decodePrimitive(field.Type.PrimitiveType)
	case schema.KindMessage:
		return NewMessageDecoder(d).DecodeMessage(field.Type.MessageType)
	case schema.KindEnum:
		return d.decodeEnum(field.Type.EnumType)
	default:
		return nil, fmt.Errorf("unsupported field kind: %s", field.Type.Kind)
	}
}

// decodePrimitive decodes a scalar payload
func (d *Decoder) decodePrimitive(primitiveType schema.PrimitiveType) (any, error) {
	switch primitiveType {
	case schema.TypeString:
		raw, err := NewBytesDecoder(d).DecodeRawBytes()
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(raw) {
			return nil, ErrInvalidUTF8
		}
		return string(raw), nil
	case schema.TypeBytes:
		return NewBytesDecoder(d).DecodeBytes()
	}

	raw, err := d.DecodeVarint()
	if err != nil {
		return nil, err
	}
	switch primitiveType {
	case schema.TypeBool:
		if raw > 1 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidBool, raw)
		}
		return raw == 1, nil
	case schema.TypeUint32:
		if raw > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %d does not fit uint32", ErrValueOverflow, raw)
		}
		return uint32(raw), nil
	case schema.TypeUint64:
		return raw, nil
	case schema.TypeInt32:
		return int32(raw), nil
	case schema.TypeInt64:
		return int64(raw), nil
	case schema.TypeSint32:
		return DecodeZigZag32(raw), nil
	case schema.TypeSint64:
		return DecodeZigZag64(raw), nil
	default:
		return nil, fmt.Errorf("unsupported primitive type: %s", primitiveType)
	}
}

// decodeEnum decodes an enum number and checks it against the definition
// when one can be resolved
func (d *Decoder) decodeEnum(enumType string) (any, error) {
	raw, err := d.DecodeVarint()
	if err != nil {
		return nil, err
	}
	n := int32(raw)
	if d.resolver == nil || d.cfg.AllowUnknownEnumNumberDecode {
		return n, nil
	}
	enum, err := d.resolver.GetEnum(enumType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvedType, err)
	}
	if _, ok := enum.ValueByNumber(n); !ok {
		return nil, fmt.Errorf("%w: %d for %s", ErrUnknownEnumValue, n, enumType)
	}
	return n, nil
}

// skipField skips a field based on wire type
func (d *Decoder) skipField(wireType WireType) error {
	switch wireType {
	case WireVarint:
		return NewVarintDecoder(d).SkipVarint()
	case WireFixed64:
		return d.skipFixed(8)
	case WireBytes:
		return NewBytesDecoder(d).SkipBytes()
	case WireFixed32:
		return d.skipFixed(4)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidWireType, wireType)
	}
}

func (d *Decoder) skipFixed(n int) error {
	if len(d.buf)-d.pos < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrUnexpectedEOF, n, len(d.buf)-d.pos)
	}
	d.pos += n
	return nil
}

// ScanFields splits a buffer into its raw fields without a schema. It is
// used for inspection of buffers whose type is not known.
func ScanFields(data []byte) ([]RawValue, error) {
	d := NewDecoder(data)
	var out []RawValue
	for d.pos < len(d.buf) {
		start := d.Offset()
		key, err := d.DecodeVarint()
		if err != nil {
			return nil, &MalformedError{Message: "<raw>", Offset: start, Err: fmt.Errorf("%w: %v", ErrInvalidFieldKey, err)}
		}
		fieldNumber, wireType := ParseTag(Tag(key))
		if fieldNumber < 1 {
			return nil, &MalformedError{Message: "<raw>", Offset: start, Err: ErrInvalidFieldKey}
		}

		rv := RawValue{FieldNumber: fieldNumber, WireType: wireType, Offset: start}
		switch wireType {
		case WireVarint:
			rv.Value, err = d.DecodeVarint()
		case WireBytes:
			rv.Value, err = d.DecodeBytes()
		case WireFixed32, WireFixed64:
			width := 4
			if wireType == WireFixed64 {
				width = 8
			}
			if err = d.skipFixed(width); err == nil {
				if width == 4 {
					rv.Value = uint64(binary.LittleEndian.Uint32(d.buf[d.pos-width:]))
				} else {
					rv.Value = binary.LittleEndian.Uint64(d.buf[d.pos-width:])
				}
			}
		default:
			err = fmt.Errorf("%w: %d", ErrInvalidWireType, wireType)
		}
		if err != nil {
			return nil, &MalformedError{Message: "<raw>", Tag: fieldNumber, Offset: start, Err: err}
		}
		rv.RawData = d.buf[start:d.pos]
		out = append(out, rv)
	}
	return out, nil
}
