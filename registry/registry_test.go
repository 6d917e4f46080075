package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhraja/devwire/schema"
	"github.com/anirudhraja/devwire/wire"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()
	require.NotNil(t, registry)

	assert.Empty(t, registry.ListMessages())
	assert.Empty(t, registry.ListEnums())

	_, err := registry.GetMessage("Features")
	assert.ErrorIs(t, err, ErrMessageNotFound)
	_, err = registry.GetEnum("MessageType")
	assert.ErrorIs(t, err, ErrEnumNotFound)
	_, err = registry.GetMessageByWireID(17)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func pingSchema() *schema.Message {
	return &schema.Message{
		Name:       "Ping",
		WireTypeID: 1,
		Fields: []*schema.Field{
			{Name: "message", Number: 1, Type: schema.String()},
			{Name: "button_protection", Number: 2, Type: schema.Bool()},
		},
	}
}

func TestRegister(t *testing.T) {
	registry := NewRegistry()
	ping := pingSchema()
	require.NoError(t, registry.Register(ping))

	got, err := registry.GetMessage("Ping")
	require.NoError(t, err)
	assert.Same(t, ping, got)

	got, err = registry.GetMessageByWireID(1)
	require.NoError(t, err)
	assert.Same(t, ping, got)

	t.Run("duplicate name", func(t *testing.T) {
		err := registry.Register(pingSchema())
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("duplicate wire id", func(t *testing.T) {
		other := &schema.Message{Name: "Pong", WireTypeID: 1}
		err := registry.Register(other)
		assert.ErrorIs(t, err, ErrDuplicateWireID)
		_, err = registry.GetMessage("Pong")
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})

	t.Run("reserved tag reuse", func(t *testing.T) {
		bad := &schema.Message{
			Name:     "Bad",
			Fields:   []*schema.Field{{Name: "flags", Number: 20, Type: schema.Uint32()}},
			Reserved: []schema.ReservedRange{{Start: 18, End: 20}},
		}
		err := registry.Register(bad)
		assert.ErrorIs(t, err, schema.ErrRetiredFieldReuse)
	})

	t.Run("enum", func(t *testing.T) {
		enum := &schema.Enum{Name: "Color", Values: []*schema.EnumValue{{Name: "RED", Number: 0}}}
		require.NoError(t, registry.RegisterEnum(enum))
		got, err := registry.GetEnum("Color")
		require.NoError(t, err)
		assert.Same(t, enum, got)
		assert.ErrorIs(t, registry.RegisterEnum(enum), ErrDuplicateName)
	})
}

func TestRegisterNested(t *testing.T) {
	registry := NewRegistry()
	outer := &schema.Message{
		Name:   "Outer",
		Fields: []*schema.Field{{Name: "inner", Number: 1, Type: schema.MessageOf("Outer.Inner")}},
		NestedTypes: []*schema.Message{
			{Name: "Inner", Fields: []*schema.Field{{Name: "x", Number: 1, Type: schema.Uint32()}}},
		},
		NestedEnums: []*schema.Enum{{Name: "Mode"}},
	}
	require.NoError(t, registry.Register(outer))

	assert.Equal(t, []string{"Outer", "Outer.Inner"}, registry.ListMessages())
	assert.Equal(t, []string{"Outer.Mode"}, registry.ListEnums())

	inner, err := registry.GetMessage("Inner")
	require.NoError(t, err)
	assert.Equal(t, "Inner", inner.Name)
}

func TestLoadSchema_Directory(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.LoadSchema("testdata"))

	assert.Equal(t, []string{
		"common.Revision",
		"hw.device.Features",
		"hw.device.Features.Info",
		"hw.device.Ping",
	}, registry.ListMessages())
	assert.Equal(t, []string{
		"hw.device.Features.Capability",
		"hw.device.MessageType",
	}, registry.ListEnums())

	features, err := registry.GetMessageByWireID(17)
	require.NoError(t, err)
	assert.Equal(t, "Features", features.Name)
	assert.EqualValues(t, 17, features.WireIdentity())

	ping, err := registry.GetMessage("hw.device.Ping")
	require.NoError(t, err)
	assert.EqualValues(t, 1, ping.WireIdentity())

	// Revision has no MessageType entry
	revision, err := registry.GetMessage("common.Revision")
	require.NoError(t, err)
	assert.Zero(t, revision.WireIdentity())

	t.Run("fields", func(t *testing.T) {
		fields := features.DescribeFields()
		require.Len(t, fields, 6)

		assert.Equal(t, "vendor", fields[0].Name)
		assert.Equal(t, schema.String(), fields[0].Type)
		assert.Equal(t, schema.LabelOptional, fields[0].Label)

		assert.Equal(t, "majorVersion", fields[1].JSONName)
		assert.Equal(t, schema.Uint32(), fields[1].Type)

		assert.Equal(t, schema.EnumOf("hw.device.Features.Capability"), fields[2].Type)

		assert.Equal(t, schema.MessageOf("hw.device.Features.Info"), fields[3].Type)
		assert.True(t, fields[3].IsRepeated())

		assert.Equal(t, "english", fields[4].DefaultValue)
		assert.EqualValues(t, 9, fields[4].Number)

		assert.Equal(t, schema.MessageOf("common.Revision"), fields[5].Type)
	})

	t.Run("reserved", func(t *testing.T) {
		assert.Equal(t, []schema.ReservedRange{{Start: 11, End: 11}, {Start: 18, End: 20}}, features.Reserved)
		assert.Equal(t, []string{"flags"}, features.ReservedNames)
		assert.True(t, features.IsReserved(19))
		assert.False(t, features.IsReserved(21))
	})

	t.Run("json_name option", func(t *testing.T) {
		f, ok := ping.FieldByName("button_protection")
		require.True(t, ok)
		assert.Equal(t, "buttonProt", f.JSONName)
	})

	t.Run("file metadata", func(t *testing.T) {
		file, ok := registry.File(filepath.Join("testdata", "messages.proto"))
		require.True(t, ok)
		assert.Equal(t, "hw.device", file.Package)
		assert.Equal(t, "proto2", file.Syntax)
	})
}

func TestLoadSchema_DecodeWithLoadedTypes(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.LoadSchema("testdata"))

	features, err := registry.GetMessage("Features")
	require.NoError(t, err)

	data, err := wire.EncodeMessage(map[string]any{
		"vendor":     "acme",
		"capability": "Capability_Bitcoin",
		"infos":      []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}},
		"revision":   map[string]any{"build": 7},
	}, features, registry)
	require.NoError(t, err)

	rec, err := wire.DecodeMessage(data, features, registry)
	require.NoError(t, err)

	assert.Equal(t, "acme", rec.GetString("vendor").OrElse(""))
	assert.Equal(t, int32(1), rec.GetInt32("capability").OrElse(-1))
	// not on the wire; reads as the declared default
	assert.Equal(t, "english", rec.GetString("language").OrElse(""))
	assert.False(t, rec.IsSet("language"))

	infos, ok := rec.Get("infos")
	require.True(t, ok)
	require.Len(t, infos, 2)

	revision := rec.GetMessage("revision")
	require.True(t, revision.IsSet())
	rev, _ := revision.Get()
	assert.Equal(t, uint32(7), rev.GetUint32("build").OrElse(0))
}

func TestLoadSchema_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		err := NewRegistry().LoadSchema(filepath.Join("testdata", "missing"))
		assert.Error(t, err)
	})

	t.Run("not a proto file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
		assert.Error(t, NewRegistry().LoadSchema(path))
	})

	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{
			name: "map field",
			src: `syntax = "proto3";
message M { map<string, string> labels = 1; }`,
			wantErr: ErrUnsupportedProto,
		},
		{
			name: "fixed width scalar",
			src: `syntax = "proto3";
message M { double ratio = 1; }`,
			wantErr: ErrUnsupportedProto,
		},
		{
			name: "reserved tag reused",
			src: `syntax = "proto2";
message M { optional bool flags = 20; reserved 18 to 20; }`,
			wantErr: schema.ErrRetiredFieldReuse,
		},
		{
			name: "duplicate tag",
			src: `syntax = "proto2";
message M { optional bool a = 1; optional bool b = 1; }`,
			wantErr: schema.ErrDuplicateField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().LoadSource("m.proto", []byte(tt.src))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("unresolved type", func(t *testing.T) {
		err := NewRegistry().LoadSource("m.proto", []byte(`syntax = "proto2";
message M { optional Missing m = 1; }`))
		assert.ErrorContains(t, err, "unable to resolve type name: Missing")
	})
}

func TestLoadSource_FailedLoadLeavesRegistryUnchanged(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(pingSchema()))

	const good = `syntax = "proto2";
package p;
enum MessageType { MessageType_Good = 5; }
message Good { optional string a = 1; }
`
	bad := good + `message Bad { optional bool b = 3; reserved 3; }
`
	err := registry.LoadSource("p.proto", []byte(bad))
	require.ErrorIs(t, err, schema.ErrRetiredFieldReuse)

	assert.Equal(t, []string{"Ping"}, registry.ListMessages())
	assert.Empty(t, registry.ListEnums())
	_, err = registry.GetMessageByWireID(5)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	_, ok := registry.File("p.proto")
	assert.False(t, ok)

	// the corrected source loads cleanly after the failure
	fixed := good + `message Bad { optional bool b = 4; reserved 3; }
`
	require.NoError(t, registry.LoadSource("p.proto", []byte(fixed)))
	assert.Equal(t, []string{"Ping", "p.Bad", "p.Good"}, registry.ListMessages())
	msg, err := registry.GetMessageByWireID(5)
	require.NoError(t, err)
	assert.Equal(t, "Good", msg.Name)
}

func TestLoadSchema_DuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	src := []byte(`syntax = "proto2";
package dup;
message Same { optional string a = 1; }
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.proto"), src, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.proto"), src, 0o644))

	registry := NewRegistry()
	assert.ErrorIs(t, registry.LoadSchema(dir), ErrDuplicateName)
	assert.Empty(t, registry.ListMessages())
}

func TestRegister_NestedFailureRegistersNothing(t *testing.T) {
	registry := NewRegistry()
	outer := &schema.Message{
		Name:        "Outer",
		WireTypeID:  9,
		NestedEnums: []*schema.Enum{{Name: "Mode"}},
		NestedTypes: []*schema.Message{
			{Name: "Mode"},
		},
	}
	assert.ErrorIs(t, registry.Register(outer), ErrDuplicateName)
	assert.Empty(t, registry.ListMessages())
	assert.Empty(t, registry.ListEnums())
	_, err := registry.GetMessageByWireID(9)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestLoadSource_Proto3(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.LoadSource("v.proto", []byte(`syntax = "proto3";
message Version {
  uint32 major = 1;
  oneof build {
    string tag = 2;
    uint64 number = 3;
  }
}`)))

	msg, err := registry.GetMessage("Version")
	require.NoError(t, err)
	require.Len(t, msg.Fields, 3)
	assert.Equal(t, schema.LabelOptional, msg.Fields[0].Label)
	assert.Equal(t, "tag", msg.Fields[1].Name)
	assert.Equal(t, schema.Uint64(), msg.Fields[2].Type)

	file, ok := registry.File("v.proto")
	require.True(t, ok)
	assert.Equal(t, "proto3", file.Syntax)
}

func TestGetMessage_Ambiguous(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.LoadSource("a.proto", []byte(`syntax = "proto2";
package a;
message Info { optional string x = 1; }`)))
	require.NoError(t, registry.LoadSource("b.proto", []byte(`syntax = "proto2";
package b;
message Info { optional string y = 1; }`)))

	_, err := registry.GetMessage("Info")
	assert.ErrorIs(t, err, ErrAmbiguousName)

	msg, err := registry.GetMessage(".b.Info")
	require.NoError(t, err)
	assert.Equal(t, "y", msg.Fields[0].Name)
}

func TestGetReferencedType(t *testing.T) {
	symbols := map[string]schema.TypeKind{
		"hw.device.Features":            schema.KindMessage,
		"hw.device.Features.Capability": schema.KindEnum,
		"common.Revision":               schema.KindMessage,
	}

	tests := []struct {
		typeName string
		prefix   string
		want     string
		wantErr  bool
	}{
		{"Capability", "hw.device.Features", "hw.device.Features.Capability", false},
		{"Features.Capability", "hw.device.Ping", "hw.device.Features.Capability", false},
		{"common.Revision", "hw.device.Features", "common.Revision", false},
		{".common.Revision", "hw.device", "common.Revision", false},
		{".Revision", "common", "", true},
		{"Missing", "hw.device", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			got, err := getReferencedType(tt.typeName, tt.prefix, symbols)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
