package wire

import (
	"fmt"

	"github.com/anirudhraja/devwire/record"
	"github.com/anirudhraja/devwire/schema"
)

// MessageDecoder handles nested message decoding operations
type MessageDecoder struct {
	decoder *Decoder
}

// MessageEncoder handles message encoding operations
type MessageEncoder struct {
	encoder *Encoder
	scratch *Encoder // reused for nested message payloads
}

// NewMessageDecoder creates a new message decoder
func NewMessageDecoder(d *Decoder) *MessageDecoder {
	return &MessageDecoder{decoder: d}
}

// NewMessageEncoder creates a new message encoder
func NewMessageEncoder(e *Encoder) *MessageEncoder {
	return &MessageEncoder{encoder: e}
}

// DECODER METHODS

// DecodeMessage decodes a length-delimited nested message
func (md *MessageDecoder) DecodeMessage(messageType string) (*record.Record, error) {
	d := md.decoder
	if d.depth+1 > d.cfg.maxDepth() {
		return nil, fmt.Errorf("%w (%d)", ErrMaxDepth, d.cfg.maxDepth())
	}
	if d.resolver == nil {
		return nil, fmt.Errorf("%w: %s (no resolver)", ErrUnresolvedType, messageType)
	}
	msg, err := d.resolver.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvedType, err)
	}

	raw, err := NewBytesDecoder(d).DecodeRawBytes()
	if err != nil {
		return nil, err
	}

	nested := d.sub(raw, d.pos-len(raw))
	nested.depth++
	return nested.DecodeWithSchema(msg)
}

// ENCODER METHODS

// EncodeRecord appends every set field of rec in declaration order, then any
// unknown bytes the record retained.
func (me *MessageEncoder) EncodeRecord(rec *record.Record) error {
	var err error
	rec.Range(func(f *schema.Field, v any, set bool) bool {
		if !set {
			return true
		}
		if f.IsRepeated() {
			err = me.encodeRepeatedField(v, f)
		} else {
			err = me.encodeField(v, f)
		}
		err = wrapWithField(err, f.Name)
		return err == nil
	})
	if err != nil {
		return err
	}

	me.encoder.buf = append(me.encoder.buf, rec.Unknown()...)
	return nil
}

// encodeRepeatedField emits one key and value per element
func (me *MessageEncoder) encodeRepeatedField(value any, field *schema.Field) error {
	items, ok := value.([]any)
	if !ok {
		return newFieldError("repeated field value must be []any, got %T", value)
	}
	for i, item := range items {
		if err := me.encodeField(item, field); err != nil {
			return wrapWithField(err, fmt.Sprintf("[%d]", i))
		}
	}
	return nil
}

// encodeField emits the key for field followed by its payload
func (me *MessageEncoder) encodeField(value any, field *schema.Field) error {
	e := me.encoder
	e.EncodeVarint(uint64(MakeTag(FieldNumber(field.Number), WireTypeOf(&field.Type))))

	switch field.Type.Kind {
	case schema.KindPrimitive:
		return me.encodePrimitiveField(value, field.Type.PrimitiveType)
	case schema.KindMessage:
		return me.encodeMessageField(value)
	case schema.KindEnum:
		n, ok := value.(int32)
		if !ok {
			return newFieldError("enum value must be int32, got %T", value)
		}
		NewVarintEncoder(e).EncodeInt32(n)
		return nil
	default:
		return newFieldError("unsupported field type: %s", field.Type.Kind)
	}
}

// encodePrimitiveField encodes a scalar payload
func (me *MessageEncoder) encodePrimitiveField(value any, primitiveType schema.PrimitiveType) error {
	e := me.encoder
	ve := NewVarintEncoder(e)
	ok := true
	switch primitiveType {
	case schema.TypeString:
		var s string
		if s, ok = value.(string); ok {
			e.EncodeString(s)
		}
	case schema.TypeBytes:
		var b []byte
		if b, ok = value.([]byte); ok {
			e.EncodeBytes(b)
		}
	case schema.TypeBool:
		var b bool
		if b, ok = value.(bool); ok {
			ve.EncodeBool(b)
		}
	case schema.TypeUint32:
		var u uint32
		if u, ok = value.(uint32); ok {
			ve.EncodeVarint(uint64(u))
		}
	case schema.TypeUint64:
		var u uint64
		if u, ok = value.(uint64); ok {
			ve.EncodeVarint(u)
		}
	case schema.TypeInt32:
		var i int32
		if i, ok = value.(int32); ok {
			ve.EncodeInt32(i)
		}
	case schema.TypeInt64:
		var i int64
		if i, ok = value.(int64); ok {
			ve.EncodeInt64(i)
		}
	case schema.TypeSint32:
		var i int32
		if i, ok = value.(int32); ok {
			ve.EncodeSint32(i)
		}
	case schema.TypeSint64:
		var i int64
		if i, ok = value.(int64); ok {
			ve.EncodeSint64(i)
		}
	default:
		return newFieldError("unsupported primitive type: %s", primitiveType)
	}
	if !ok {
		return newFieldError("expected %s value, got %T", primitiveType, value)
	}
	return nil
}

// encodeMessageField encodes a nested record as a length-delimited payload
func (me *MessageEncoder) encodeMessageField(value any) error {
	nested, ok := value.(*record.Record)
	if !ok {
		return newFieldError("message value must be *record.Record, got %T", value)
	}

	if me.scratch == nil {
		me.scratch = NewEncoderWithResolver(me.encoder.resolver)
	}
	me.scratch.Reset()
	if err := NewMessageEncoder(me.scratch).EncodeRecord(nested); err != nil {
		return err
	}
	payload := me.scratch.Bytes()
	me.encoder.grow(BytesSize(payload))
	me.encoder.EncodeBytes(payload)
	return nil
}

// UTILITY METHODS

// WireTypeOf returns the wire type used for a field type
func WireTypeOf(fieldType *schema.FieldType) WireType {
	switch fieldType.Kind {
	case schema.KindPrimitive:
		switch fieldType.PrimitiveType {
		case schema.TypeString, schema.TypeBytes:
			return WireBytes
		default:
			return WireVarint
		}
	case schema.KindMessage:
		return WireBytes
	default:
		return WireVarint
	}
}
