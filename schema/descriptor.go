package schema

import (
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

var descriptorTypes = map[PrimitiveType]descriptorpb.FieldDescriptorProto_Type{
	TypeString: descriptorpb.FieldDescriptorProto_TYPE_STRING,
	TypeBytes:  descriptorpb.FieldDescriptorProto_TYPE_BYTES,
	TypeBool:   descriptorpb.FieldDescriptorProto_TYPE_BOOL,
	TypeUint32: descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	TypeUint64: descriptorpb.FieldDescriptorProto_TYPE_UINT64,
	TypeInt32:  descriptorpb.FieldDescriptorProto_TYPE_INT32,
	TypeInt64:  descriptorpb.FieldDescriptorProto_TYPE_INT64,
	TypeSint32: descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	TypeSint64: descriptorpb.FieldDescriptorProto_TYPE_SINT64,
}

// DescriptorProto exports the schema as a proto2 descriptor so it can be fed
// to google.golang.org/protobuf (protodesc, dynamicpb). Message and enum
// references not already qualified by pkg are qualified with it.
func (m *Message) DescriptorProto(pkg string) *descriptorpb.DescriptorProto {
	d := &descriptorpb.DescriptorProto{
		Name:         proto.String(m.Name),
		ReservedName: append([]string(nil), m.ReservedNames...),
	}
	for _, r := range m.Reserved {
		// descriptor ranges are end-exclusive
		d.ReservedRange = append(d.ReservedRange, &descriptorpb.DescriptorProto_ReservedRange{
			Start: proto.Int32(r.Start),
			End:   proto.Int32(r.End + 1),
		})
	}
	for _, f := range m.Fields {
		d.Field = append(d.Field, f.descriptorProto(pkg))
	}
	for _, nested := range m.NestedTypes {
		d.NestedType = append(d.NestedType, nested.DescriptorProto(pkg))
	}
	for _, e := range m.NestedEnums {
		d.EnumType = append(d.EnumType, e.DescriptorProto())
	}
	return d
}

func (f *Field) descriptorProto(pkg string) *descriptorpb.FieldDescriptorProto {
	fd := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(f.Name),
		Number: proto.Int32(f.Number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
	if f.JSONName != "" {
		fd.JsonName = proto.String(f.JSONName)
	}
	switch f.Label {
	case LabelRepeated:
		fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	case LabelRequired:
		fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum()
	}

	switch f.Type.Kind {
	case KindMessage:
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		fd.TypeName = proto.String(qualify(pkg, f.Type.MessageType))
	case KindEnum:
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum()
		fd.TypeName = proto.String(qualify(pkg, f.Type.EnumType))
	default:
		fd.Type = descriptorTypes[f.Type.PrimitiveType].Enum()
	}
	return fd
}

// DescriptorProto exports the enum definition.
func (e *Enum) DescriptorProto() *descriptorpb.EnumDescriptorProto {
	d := &descriptorpb.EnumDescriptorProto{Name: proto.String(e.Name)}
	for _, v := range e.Values {
		d.Value = append(d.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name),
			Number: proto.Int32(v.Number),
		})
	}
	return d
}

// FileDescriptorProto wraps messages and enums into a proto2 file descriptor.
func FileDescriptorProto(name, pkg string, messages []*Message, enums []*Enum) *descriptorpb.FileDescriptorProto {
	fd := &descriptorpb.FileDescriptorProto{
		Name:   proto.String(name),
		Syntax: proto.String("proto2"),
	}
	if pkg != "" {
		fd.Package = proto.String(pkg)
	}
	for _, m := range messages {
		fd.MessageType = append(fd.MessageType, m.DescriptorProto(pkg))
	}
	for _, e := range enums {
		fd.EnumType = append(fd.EnumType, e.DescriptorProto())
	}
	return fd
}

func qualify(pkg, name string) string {
	if len(name) > 0 && name[0] == '.' {
		return name
	}
	if pkg == "" || strings.HasPrefix(name, pkg+".") {
		return "." + name
	}
	return "." + pkg + "." + name
}
