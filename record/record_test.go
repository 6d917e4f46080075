package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/devwire/schema"
)

type mapResolver struct {
	messages map[string]*schema.Message
	enums    map[string]*schema.Enum
}

func (m mapResolver) GetMessage(name string) (*schema.Message, error) {
	if msg, ok := m.messages[name]; ok {
		return msg, nil
	}
	return nil, ErrUnknownField
}

func (m mapResolver) GetEnum(name string) (*schema.Enum, error) {
	if enum, ok := m.enums[name]; ok {
		return enum, nil
	}
	return nil, ErrUnknownField
}

func field(name string, n int32, t schema.FieldType) *schema.Field {
	return &schema.Field{Name: name, Number: n, Label: schema.LabelOptional, Type: t, JSONName: schema.JSONName(name)}
}

func fixture() (*schema.Message, mapResolver) {
	child := &schema.Message{
		Name:   "Child",
		Fields: []*schema.Field{field("name", 1, schema.String())},
	}
	counts := field("counts", 3, schema.Uint32())
	counts.Label = schema.LabelRepeated
	language := field("language", 9, schema.String())
	language.DefaultValue = "english"

	device := &schema.Message{
		Name: "Device",
		Fields: []*schema.Field{
			field("vendor", 1, schema.String()),
			field("major_version", 2, schema.Uint32()),
			counts,
			field("child", 4, schema.MessageOf("Child")),
			field("bootloader_mode", 5, schema.Bool()),
			field("kind", 6, schema.EnumOf("Kind")),
			field("offset", 7, schema.Primitive(schema.TypeSint32)),
			language,
			field("revision", 13, schema.Bytes()),
		},
	}
	res := mapResolver{
		messages: map[string]*schema.Message{"Child": child, "Device": device},
		enums: map[string]*schema.Enum{"Kind": {
			Name: "Kind",
			Values: []*schema.EnumValue{
				{Name: "KIND_A", Number: 1},
				{Name: "KIND_B", Number: 2},
			},
		}},
	}
	return device, res
}

func TestNew_AllUnset(t *testing.T) {
	msg, _ := fixture()
	r := New(msg)

	assert.Equal(t, 0, r.Len())
	assert.False(t, r.IsSet("vendor"))
	assert.False(t, r.IsSet("language"))
	for name, v := range r.AsMap() {
		if name == "language" {
			assert.Equal(t, "english", v)
			continue
		}
		assert.Nil(t, v, name)
	}
	assert.Len(t, r.AsMap(), len(msg.Fields))
	assert.Empty(t, r.SetMap())

	v, ok := r.Get("language")
	assert.True(t, ok)
	assert.Equal(t, "english", v)
	_, ok = r.Get("vendor")
	assert.False(t, ok)
}

func TestConstruct(t *testing.T) {
	msg, res := fixture()

	t.Run("defaults", func(t *testing.T) {
		r, err := Construct(msg, nil, res)
		require.NoError(t, err)
		assert.Equal(t, 0, r.Len())
		assert.Equal(t, Some("english"), r.GetString("language"))
		assert.False(t, r.IsSet("language"))
		assert.False(t, r.GetBool("bootloader_mode").IsSet())
	})

	t.Run("nil entry stays unset", func(t *testing.T) {
		r, err := Construct(msg, map[string]any{"language": nil}, res)
		require.NoError(t, err)
		assert.False(t, r.IsSet("language"))
		assert.Equal(t, Some("english"), r.GetString("language"))
	})

	t.Run("explicit value overrides default", func(t *testing.T) {
		r, err := Construct(msg, map[string]any{"language": "german"}, res)
		require.NoError(t, err)
		assert.True(t, r.IsSet("language"))
		assert.Equal(t, Some("german"), r.GetString("language"))
	})

	t.Run("both names for one field", func(t *testing.T) {
		_, err := Construct(msg, map[string]any{"major_version": 1, "majorVersion": 2}, res)
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("json names", func(t *testing.T) {
		r, err := Construct(msg, map[string]any{"majorVersion": 2, "bootloaderMode": false}, res)
		require.NoError(t, err)
		assert.Equal(t, Some(uint32(2)), r.GetUint32("major_version"))
		assert.Equal(t, Some(false), r.GetBool("bootloader_mode"))
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := Construct(msg, map[string]any{"nope": 1}, res)
		assert.ErrorIs(t, err, ErrUnknownField)
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := Construct(msg, map[string]any{"vendor": 1}, res)
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestSet_Coercion(t *testing.T) {
	msg, res := fixture()

	tests := []struct {
		name    string
		field   string
		in      any
		want    any
		wantErr bool
	}{
		{"uint32 from int", "major_version", 7, uint32(7), false},
		{"uint32 from integral float", "major_version", 7.0, uint32(7), false},
		{"uint32 from json.Number", "major_version", json.Number("7"), uint32(7), false},
		{"uint32 from string", "major_version", "7", uint32(7), false},
		{"uint32 negative", "major_version", -1, nil, true},
		{"uint32 overflow", "major_version", uint64(1) << 32, nil, true},
		{"uint32 fraction", "major_version", 1.5, nil, true},
		{"sint32", "offset", -3, int32(-3), false},
		{"bytes", "revision", []byte{1, 2}, []byte{1, 2}, false},
		{"bytes from base64", "revision", "AQI=", []byte{1, 2}, false},
		{"bytes bad base64", "revision", "!!", nil, true},
		{"bool", "bootloader_mode", true, true, false},
		{"bool from string", "bootloader_mode", "true", nil, true},
		{"enum by number", "kind", 2, int32(2), false},
		{"enum by name", "kind", "KIND_A", int32(1), false},
		{"enum unknown name", "kind", "KIND_Z", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewWithResolver(msg, res)
			err := r.Set(tt.field, tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
				assert.False(t, r.IsSet(tt.field))
				return
			}
			require.NoError(t, err)
			got, ok := r.Get(tt.field)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSet_NilClears(t *testing.T) {
	msg, _ := fixture()
	r := New(msg)

	require.NoError(t, r.Set("vendor", "acme"))
	assert.True(t, r.IsSet("vendor"))
	require.NoError(t, r.Set("vendor", nil))
	assert.False(t, r.IsSet("vendor"))

	require.NoError(t, r.SetByNumber(1, "acme"))
	r.Clear("vendor")
	assert.False(t, r.IsSet("vendor"))

	assert.ErrorIs(t, r.Set("nope", 1), ErrUnknownField)
	assert.ErrorIs(t, r.SetByNumber(99, 1), ErrUnknownField)
}

func TestRepeated(t *testing.T) {
	msg, _ := fixture()
	r := New(msg)

	require.NoError(t, r.Set("counts", []int{1, 2}))
	require.NoError(t, r.AppendByNumber(3, uint32(3)))
	v, ok := r.Get("counts")
	require.True(t, ok)
	assert.Equal(t, []any{uint32(1), uint32(2), uint32(3)}, v)

	assert.ErrorIs(t, r.AppendByNumber(1, "x"), ErrInvalidValue, "vendor is not repeated")
	assert.ErrorIs(t, r.Set("counts", 1), ErrInvalidValue)
}

func TestNestedMessage(t *testing.T) {
	msg, res := fixture()

	r := NewWithResolver(msg, res)
	require.NoError(t, r.Set("child", map[string]any{"name": "inner"}))
	child := r.GetMessage("child")
	require.True(t, child.IsSet())
	assert.Equal(t, Some("inner"), child.OrElse(nil).GetString("name"))
	assert.Equal(t, map[string]any{"name": "inner"}, r.SetMap()["child"])

	noRes := New(msg)
	assert.ErrorIs(t, noRes.Set("child", map[string]any{"name": "inner"}), ErrInvalidValue)

	other := New(msg)
	assert.ErrorIs(t, r.Set("child", other), ErrInvalidValue, "Device is not a Child")
}

func TestRange_DeclarationOrder(t *testing.T) {
	msg, _ := fixture()
	r := New(msg)
	require.NoError(t, r.Set("revision", []byte{1}))
	require.NoError(t, r.Set("vendor", "acme"))

	var names []string
	r.Range(func(f *schema.Field, _ any, set bool) bool {
		if set {
			names = append(names, f.Name)
		}
		return true
	})
	assert.Equal(t, []string{"vendor", "revision"}, names)

	var visited int
	r.Range(func(*schema.Field, any, bool) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

func TestTypedGetters(t *testing.T) {
	msg, _ := fixture()
	r := New(msg)
	require.NoError(t, r.Set("major_version", uint32(4)))

	assert.Equal(t, Some(uint32(4)), r.GetUint32("major_version"))
	assert.False(t, r.GetUint64("major_version").IsSet(), "type mismatch reads as unset")
	assert.False(t, r.GetString("nope").IsSet())

	require.NoError(t, Put(r, "vendor", Some("acme")))
	assert.Equal(t, Some("acme"), r.GetString("vendor"))
	require.NoError(t, Put(r, "vendor", None[string]()))
	assert.False(t, r.IsSet("vendor"))
}

func TestOptional(t *testing.T) {
	five := 5
	assert.Equal(t, 5, Some(5).OrElse(0))
	assert.Equal(t, 0, None[int]().OrElse(0))
	assert.Equal(t, Some(5), FromPtr(&five))
	assert.Equal(t, None[int](), FromPtr[int](nil))
	assert.Nil(t, None[int]().Ptr())
	assert.Equal(t, 5, *Some(5).Ptr())
	assert.Nil(t, None[int]().Any())
	assert.Equal(t, "<unset>", None[int]().String())
	assert.Equal(t, "5", Some(5).String())

	var o Optional[uint32]
	require.NoError(t, o.Assign(uint32(3)))
	assert.Equal(t, Some(uint32(3)), o)
	require.NoError(t, o.Assign(nil))
	assert.False(t, o.IsSet())
	assert.Error(t, o.Assign("3"))
}

func TestOptional_Marshalling(t *testing.T) {
	type view struct {
		A Optional[int]    `json:"a" yaml:"a"`
		B Optional[string] `json:"b" yaml:"b"`
	}

	data, err := json.Marshal(view{A: Some(0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 0, "b": null}`, string(data))

	var back view
	require.NoError(t, json.Unmarshal([]byte(`{"a": null, "b": ""}`), &back))
	assert.False(t, back.A.IsSet())
	assert.Equal(t, Some(""), back.B)

	out, err := yaml.Marshal(view{A: Some(3)})
	require.NoError(t, err)
	assert.Equal(t, "a: 3\nb: null\n", string(out))

	var fromYAML view
	require.NoError(t, yaml.Unmarshal(out, &fromYAML))
	assert.Equal(t, Some(3), fromYAML.A)
	assert.False(t, fromYAML.B.IsSet())

	var zero view
	require.NoError(t, yaml.Unmarshal([]byte("a: 0\nb: \"\"\n"), &zero))
	assert.Equal(t, Some(0), zero.A)
	assert.Equal(t, Some(""), zero.B)

	assert.Error(t, yaml.Unmarshal([]byte("a: nope\n"), &zero))
}
