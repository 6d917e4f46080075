package devwire

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/anirudhraja/devwire/envelope"
	"github.com/anirudhraja/devwire/features"
	"github.com/anirudhraja/devwire/record"
	"github.com/anirudhraja/devwire/registry"
	"github.com/anirudhraja/devwire/schema"
	"github.com/anirudhraja/devwire/wire"
)

// ===== SCHEMA-AWARE API =====

// Devwire provides schema-driven encoding and decoding of device records
// without generated code
type Devwire struct {
	registry   *registry.Registry
	dispatcher *envelope.Dispatcher
}

// New creates a Devwire instance with an empty registry
func New() *Devwire {
	reg := registry.NewRegistry()
	return &Devwire{
		registry:   reg,
		dispatcher: envelope.NewDispatcher(reg),
	}
}

// NewWithFeatures creates a Devwire instance with the Features schema registered
func NewWithFeatures() (*Devwire, error) {
	p := New()
	if err := p.Register(features.Schema()); err != nil {
		return nil, err
	}
	return p, nil
}

// WithConfig sets the codec configuration used by this instance
func (p *Devwire) WithConfig(c wire.Config) *Devwire {
	p.dispatcher.Config = c
	return p
}

// LoadSchema loads every .proto file under path
func (p *Devwire) LoadSchema(path string) error {
	return p.registry.LoadSchema(path)
}

// LoadSource loads one .proto document held in memory
func (p *Devwire) LoadSource(name string, src []byte) error {
	return p.registry.LoadSource(name, src)
}

// Register adds a hand-built schema
func (p *Devwire) Register(msg *schema.Message) error {
	return p.registry.Register(msg)
}

// Decode decodes bytes into a record of messageType
func (p *Devwire) Decode(data []byte, messageType string) (*record.Record, error) {
	msg, err := p.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %w", err)
	}
	return wire.NewDecoderWithResolver(data, p.registry).WithConfig(p.dispatcher.Config).DecodeWithSchema(msg)
}

// Encode encodes a record
func (p *Devwire) Encode(rec *record.Record) ([]byte, error) {
	return wire.EncodeRecord(rec)
}

// Parse decodes bytes into a map keyed by field name; unset fields map to nil
func (p *Devwire) Parse(data []byte, messageType string) (map[string]any, error) {
	rec, err := p.Decode(data, messageType)
	if err != nil {
		return nil, err
	}
	return rec.AsMap(), nil
}

// Marshal encodes a map keyed by field name; missing and nil entries stay unset
func (p *Devwire) Marshal(data map[string]any, messageType string) ([]byte, error) {
	msg, err := p.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %w", err)
	}
	return wire.EncodeMessage(data, msg, p.registry)
}

// NewRecord builds a record of messageType from values
func (p *Devwire) NewRecord(messageType string, values map[string]any) (*record.Record, error) {
	msg, err := p.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %w", err)
	}
	return record.Construct(msg, values, p.registry)
}

// ===== FRAMED API =====

// DecodeFrame routes a framed buffer by its wire identity and decodes it
func (p *Devwire) DecodeFrame(frame []byte) (*record.Record, error) {
	return p.dispatcher.Decode(frame)
}

// EncodeFrame encodes rec and frames it with its wire identity
func (p *Devwire) EncodeFrame(rec *record.Record) ([]byte, error) {
	return p.dispatcher.Encode(rec)
}

// ===== STRUCT API =====

// Unmarshal decodes bytes into a Go struct using reflection. The struct's
// type name selects the message type. Fields are matched by `devwire` tag,
// then `json` tag, then the snake_case form of the Go field name.
func (p *Devwire) Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("unmarshal target must be a pointer to struct")
	}

	messageType := rv.Elem().Type().Name()
	rec, err := p.Decode(data, messageType)
	if err != nil {
		return err
	}

	return p.recordToStruct(rec, rv.Elem())
}

type assigner interface {
	Assign(v any) error
}

// recordToStruct maps a decoded record to struct fields
func (p *Devwire) recordToStruct(rec *record.Record, rv reflect.Value) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		fieldValue := rv.Field(i)

		if !fieldValue.CanSet() {
			continue
		}
		name := structFieldName(field)
		if name == "-" {
			continue
		}

		value, ok := rec.Get(name)
		if !ok {
			continue
		}
		if err := p.setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}
	return nil
}

func structFieldName(field reflect.StructField) string {
	for _, key := range []string{"devwire", "json"} {
		if tag, ok := field.Tag.Lookup(key); ok {
			if name, _, _ := strings.Cut(tag, ","); name != "" {
				return name
			}
		}
	}
	return strcase.ToSnake(field.Name)
}

// setFieldValue sets a struct field with type conversion
func (p *Devwire) setFieldValue(fieldValue reflect.Value, value any) error {
	if value == nil {
		return nil
	}

	if a, ok := fieldValue.Addr().Interface().(assigner); ok {
		return a.Assign(value)
	}

	if nested, ok := value.(*record.Record); ok {
		target := fieldValue
		if target.Kind() == reflect.Ptr {
			target.Set(reflect.New(target.Type().Elem()))
			target = target.Elem()
		}
		if target.Kind() != reflect.Struct {
			return fmt.Errorf("cannot store message %s in %s", nested.Schema().Name, fieldValue.Type())
		}
		return p.recordToStruct(nested, target)
	}

	if fieldValue.Kind() == reflect.Ptr {
		ptr := reflect.New(fieldValue.Type().Elem())
		if err := p.setFieldValue(ptr.Elem(), value); err != nil {
			return err
		}
		fieldValue.Set(ptr)
		return nil
	}

	if items, ok := value.([]any); ok && fieldValue.Kind() == reflect.Slice {
		out := reflect.MakeSlice(fieldValue.Type(), len(items), len(items))
		for i, item := range items {
			if err := p.setFieldValue(out.Index(i), item); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		fieldValue.Set(out)
		return nil
	}

	sourceValue := reflect.ValueOf(value)
	if sourceValue.Type().AssignableTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue)
		return nil
	}

	if sourceValue.Type().ConvertibleTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue.Convert(fieldValue.Type()))
		return nil
	}

	return fmt.Errorf("cannot convert %T to %s", value, fieldValue.Type())
}

// ===== REGISTRY ACCESS =====

// Fields returns the field table of messageType in declaration order
func (p *Devwire) Fields(messageType string) ([]*schema.Field, error) {
	msg, err := p.registry.GetMessage(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type not found: %w", err)
	}
	return msg.DescribeFields(), nil
}

func (p *Devwire) GetRegistry() *registry.Registry { return p.registry }
func (p *Devwire) ListMessages() []string          { return p.registry.ListMessages() }
func (p *Devwire) ListEnums() []string             { return p.registry.ListEnums() }
