package wire

import (
	"slices"

	"github.com/anirudhraja/devwire/record"
	"github.com/anirudhraja/devwire/schema"
)

// Encoder handles low-level wire format encoding
type Encoder struct {
	buf      []byte
	resolver record.Resolver
}

// NewEncoder creates a new wire format encoder
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0),
	}
}

// NewEncoderWithResolver creates an encoder that can build nested messages
// supplied as maps
func NewEncoderWithResolver(resolver record.Resolver) *Encoder {
	return &Encoder{
		buf:      make([]byte, 0),
		resolver: resolver,
	}
}

// Bytes returns the encoded bytes
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Reset clears the encoder buffer
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// grow makes room for n more bytes
func (e *Encoder) grow(n int) {
	e.buf = slices.Grow(e.buf, n)
}

// EncodeRecord encodes a record - main entry point
func EncodeRecord(rec *record.Record) ([]byte, error) {
	encoder := NewEncoderWithResolver(rec.Resolver())
	if err := NewMessageEncoder(encoder).EncodeRecord(rec); err != nil {
		return nil, err
	}
	return encoder.Bytes(), nil
}

// EncodeMessage encodes a map keyed by field name using schema
func EncodeMessage(data map[string]any, msg *schema.Message, resolver record.Resolver) ([]byte, error) {
	rec, err := record.Construct(msg, data, resolver)
	if err != nil {
		return nil, &FieldError{FieldPath: []string{msg.Name}, Err: err}
	}
	return EncodeRecord(rec)
}
