package registry

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	protoparser "github.com/yoheimuta/go-protoparser/v4"
	"github.com/yoheimuta/go-protoparser/v4/parser"
	"go.uber.org/zap"

	"github.com/anirudhraja/devwire/logger"
	"github.com/anirudhraja/devwire/schema"
)

// parseProtoFile parses .proto text into a ProtoFile. Field types that are
// not scalars are left unresolved (Kind == "") with the raw name in
// MessageType until resolveFile runs.
func parseProtoFile(name string, src []byte) (*schema.ProtoFile, error) {
	proto, err := protoparser.Parse(
		bytes.NewReader(src),
		protoparser.WithFilename(name),
		protoparser.WithPermissive(true),
	)
	if err != nil {
		return nil, err
	}

	file := &schema.ProtoFile{
		Name:   name,
		Syntax: "proto2",
	}
	if proto.Syntax != nil && proto.Syntax.ProtobufVersion != "" {
		file.Syntax = proto.Syntax.ProtobufVersion
	}

	for _, body := range proto.ProtoBody {
		switch b := body.(type) {
		case *parser.Package:
			file.Package = b.Name
		case *parser.Message:
			msg, err := parseMessage(b)
			if err != nil {
				return nil, err
			}
			file.Messages = append(file.Messages, msg)
		case *parser.Enum:
			enum, err := parseEnum(b)
			if err != nil {
				return nil, err
			}
			file.Enums = append(file.Enums, enum)
		case *parser.Import:
			logger.Logger.Debug("import not followed; load the imported file explicitly",
				zap.String("file", name), zap.String("import", b.Location))
		}
	}
	return file, nil
}

func parseMessage(m *parser.Message) (*schema.Message, error) {
	msg := &schema.Message{Name: m.MessageName}

	for _, body := range m.MessageBody {
		switch b := body.(type) {
		case *parser.Field:
			f, err := parseField(b.FieldName, b.Type, b.FieldNumber, b.FieldOptions)
			if err != nil {
				return nil, errors.Wrapf(err, "message %s", m.MessageName)
			}
			switch {
			case b.IsRepeated:
				f.Label = schema.LabelRepeated
			case b.IsRequired:
				f.Label = schema.LabelRequired
			}
			msg.Fields = append(msg.Fields, f)
		case *parser.Oneof:
			// oneof members are plain optional fields on the wire
			for _, of := range b.OneofFields {
				f, err := parseField(of.FieldName, of.Type, of.FieldNumber, of.FieldOptions)
				if err != nil {
					return nil, errors.Wrapf(err, "message %s", m.MessageName)
				}
				msg.Fields = append(msg.Fields, f)
			}
		case *parser.Reserved:
			ranges, err := parseReservedRanges(b.Ranges)
			if err != nil {
				return nil, errors.Wrapf(err, "message %s", m.MessageName)
			}
			msg.Reserved = append(msg.Reserved, ranges...)
			for _, n := range b.FieldNames {
				msg.ReservedNames = append(msg.ReservedNames, strings.Trim(n, `"'`))
			}
		case *parser.Message:
			nested, err := parseMessage(b)
			if err != nil {
				return nil, err
			}
			msg.NestedTypes = append(msg.NestedTypes, nested)
		case *parser.Enum:
			nested, err := parseEnum(b)
			if err != nil {
				return nil, err
			}
			msg.NestedEnums = append(msg.NestedEnums, nested)
		case *parser.MapField:
			return nil, errors.Wrapf(ErrUnsupportedProto, "map field %s.%s", m.MessageName, b.MapName)
		case *parser.GroupField:
			return nil, errors.Wrapf(ErrUnsupportedProto, "group %s.%s", m.MessageName, b.GroupName)
		}
	}
	return msg, nil
}

func parseField(name, typ, number string, options []*parser.FieldOption) (*schema.Field, error) {
	n, err := strconv.ParseInt(number, 0, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "field %s: invalid number %q", name, number)
	}

	f := &schema.Field{
		Name:     name,
		Number:   int32(n),
		Label:    schema.LabelOptional,
		JSONName: schema.JSONName(name),
	}

	if p, ok := schema.LookupPrimitive(typ); ok {
		f.Type = schema.Primitive(p)
	} else if _, scalar := unsupportedScalars[typ]; scalar {
		return nil, errors.Wrapf(ErrUnsupportedProto, "field %s: scalar type %s", name, typ)
	} else {
		// resolved later against the symbol table
		f.Type = schema.FieldType{MessageType: typ}
	}

	for _, opt := range options {
		switch opt.OptionName {
		case "default":
			v, err := parseDefault(f.Type, opt.Constant)
			if err != nil {
				return nil, errors.Wrapf(err, "field %s: default %s", name, opt.Constant)
			}
			f.DefaultValue = v
		case "json_name":
			f.JSONName = unquote(opt.Constant)
		}
	}
	return f, nil
}

var unsupportedScalars = map[string]struct{}{
	"double":   {},
	"float":    {},
	"fixed32":  {},
	"fixed64":  {},
	"sfixed32": {},
	"sfixed64": {},
}

// parseDefault converts a default constant. Enum defaults stay as the value
// identifier and are resolved by name when a record is constructed.
func parseDefault(t schema.FieldType, raw string) (any, error) {
	switch t.PrimitiveType {
	case schema.TypeString:
		return unquote(raw), nil
	case schema.TypeBytes:
		return []byte(unquote(raw)), nil
	case schema.TypeBool:
		return strconv.ParseBool(raw)
	case schema.TypeUint32, schema.TypeUint64:
		return strconv.ParseUint(raw, 0, 64)
	case schema.TypeInt32, schema.TypeInt64, schema.TypeSint32, schema.TypeSint64:
		return strconv.ParseInt(raw, 0, 64)
	default:
		return raw, nil
	}
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return strings.Trim(s, `"'`)
}

func parseReservedRanges(ranges []*parser.Range) ([]schema.ReservedRange, error) {
	out := make([]schema.ReservedRange, 0, len(ranges))
	for _, rg := range ranges {
		begin, err := strconv.ParseInt(rg.Begin, 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "reserved range %q", rg.Begin)
		}
		end := begin
		switch rg.End {
		case "":
		case "max":
			end = schema.MaxFieldNumber
		default:
			if end, err = strconv.ParseInt(rg.End, 0, 32); err != nil {
				return nil, errors.Wrapf(err, "reserved range %q", rg.End)
			}
		}
		out = append(out, schema.ReservedRange{Start: int32(begin), End: int32(end)})
	}
	return out, nil
}

func parseEnum(e *parser.Enum) (*schema.Enum, error) {
	enum := &schema.Enum{Name: e.EnumName}
	for _, body := range e.EnumBody {
		ef, ok := body.(*parser.EnumField)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(ef.Number, 0, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "enum %s value %s", e.EnumName, ef.Ident)
		}
		enum.Values = append(enum.Values, &schema.EnumValue{Name: ef.Ident, Number: int32(n)})
	}
	return enum, nil
}
