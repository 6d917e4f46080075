package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Decode failure causes wrapped by MalformedError.
var (
	// ErrMalformedPayload matches every *MalformedError through errors.Is.
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidBool      = errors.New("boolean payload is not 0 or 1")
	ErrInvalidUTF8      = errors.New("string payload is not valid UTF-8")
	ErrValueOverflow    = errors.New("value overflows field type")
	ErrWireTypeMismatch = errors.New("wire type does not match field type")
	ErrInvalidWireType  = errors.New("invalid wire type")
	ErrInvalidFieldKey  = errors.New("invalid field key")
	ErrUnknownEnumValue = errors.New("unknown enum value")
	ErrUnresolvedType   = errors.New("unresolved message type")
	ErrMaxDepth         = errors.New("message nesting exceeds limit")
)

// MalformedError reports bytes that could not be decoded. Offset is the
// absolute position of the offending field key in the outermost buffer.
// Field is empty when the key itself, or the payload of an unknown tag,
// could not be read.
type MalformedError struct {
	Message string      // message type being decoded
	Field   string      // field name, "" for unknown tags and broken keys
	Path    []string    // enclosing field names for nested messages
	Tag     FieldNumber // field number, 0 if the key could not be read
	Offset  int
	Err     error
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	var b strings.Builder
	b.WriteString("malformed payload in ")
	b.WriteString(e.Message)
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	fmt.Fprintf(&b, " (tag %d, offset %d): %v", e.Tag, e.Offset, e.Err)
	return b.String()
}

// Unwrap returns the underlying error.
func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Is matches ErrMalformedPayload.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedPayload
}

// FieldError represents an encoding error with a field path.
type FieldError struct {
	FieldPath []string // e.g., ["device", "features", "label"]
	Err       error    // underlying error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.FieldPath) == 0 {
		return e.Err.Error()
	}

	return fmt.Sprintf("error at field path %s: %v", strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// wrapWithField prefixes the field path of err with fieldName
func wrapWithField(err error, fieldName string) error {
	if err == nil {
		return nil
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{
			FieldPath: append([]string{fieldName}, fe.FieldPath...),
			Err:       fe.Err,
		}
	}

	return &FieldError{
		FieldPath: []string{fieldName},
		Err:       err,
	}
}

// newFieldError creates a path-less FieldError from a format string
func newFieldError(format string, args ...any) error {
	return &FieldError{Err: fmt.Errorf(format, args...)}
}
