package record

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/anirudhraja/devwire/schema"
)

// coerce converts v to the Go representation stored for field f:
// string, []byte, bool, uint32, uint64, int32, int64, *Record, or []any of
// those for repeated fields.
func (r *Record) coerce(f *schema.Field, v any) (any, error) {
	if f.IsRepeated() {
		return r.coerceRepeated(f, v)
	}
	return r.coerceSingle(f, v)
}

func (r *Record) coerceRepeated(f *schema.Field, v any) (any, error) {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []string:
		items = boxSlice(t)
	case [][]byte:
		items = boxSlice(t)
	case []bool:
		items = boxSlice(t)
	case []uint32:
		items = boxSlice(t)
	case []uint64:
		items = boxSlice(t)
	case []int32:
		items = boxSlice(t)
	case []int64:
		items = boxSlice(t)
	case []int:
		items = boxSlice(t)
	case []*Record:
		items = boxSlice(t)
	case []map[string]any:
		items = boxSlice(t)
	default:
		return nil, fmt.Errorf("repeated field value must be a slice, got %T", v)
	}

	out := make([]any, 0, len(items))
	for i, item := range items {
		c, err := r.coerceSingle(f, item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func boxSlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func (r *Record) coerceSingle(f *schema.Field, v any) (any, error) {
	switch f.Type.Kind {
	case schema.KindMessage:
		return r.coerceMessage(f, v)
	case schema.KindEnum:
		return r.coerceEnum(f, v)
	}

	switch f.Type.PrimitiveType {
	case schema.TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case schema.TypeBytes:
		return coerceToBytes(v)
	case schema.TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case schema.TypeUint32:
		u, err := coerceToUint64(v)
		if err != nil {
			return nil, err
		}
		if u > math.MaxUint32 {
			return nil, fmt.Errorf("value %d overflows uint32", u)
		}
		return uint32(u), nil
	case schema.TypeUint64:
		return coerceToUint64(v)
	case schema.TypeInt32, schema.TypeSint32:
		i, err := coerceToInt64(v)
		if err != nil {
			return nil, err
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("value %d overflows int32", i)
		}
		return int32(i), nil
	case schema.TypeInt64, schema.TypeSint64:
		return coerceToInt64(v)
	default:
		return nil, fmt.Errorf("unsupported primitive type: %s", f.Type.PrimitiveType)
	}
}

func (r *Record) coerceMessage(f *schema.Field, v any) (any, error) {
	switch t := v.(type) {
	case *Record:
		if t.msg.Name != f.Type.MessageType && !strings.HasSuffix(f.Type.MessageType, "."+t.msg.Name) {
			return nil, fmt.Errorf("expected message %s, got %s", f.Type.MessageType, t.msg.Name)
		}
		return t, nil
	case map[string]any:
		if r.res == nil {
			return nil, fmt.Errorf("a resolver is required to build nested message %s", f.Type.MessageType)
		}
		nested, err := r.res.GetMessage(f.Type.MessageType)
		if err != nil {
			return nil, err
		}
		return Construct(nested, t, r.res)
	default:
		return nil, fmt.Errorf("message value must be *Record or map[string]any, got %T", v)
	}
}

func (r *Record) coerceEnum(f *schema.Field, v any) (any, error) {
	if name, ok := v.(string); ok {
		if r.res == nil {
			return nil, fmt.Errorf("a resolver is required to resolve enum name %q", name)
		}
		enum, err := r.res.GetEnum(f.Type.EnumType)
		if err != nil {
			return nil, err
		}
		for _, ev := range enum.Values {
			if ev.Name == name {
				return ev.Number, nil
			}
		}
		return nil, fmt.Errorf("unknown value %q for enum %s", name, f.Type.EnumType)
	}
	i, err := coerceToInt64(v)
	if err != nil {
		return nil, err
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return nil, fmt.Errorf("enum value %d overflows int32", i)
	}
	return int32(i), nil
}

func coerceToBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(t)
		if err != nil {
			return nil, fmt.Errorf("bytes value is not valid base64: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("expected []byte or base64 string, got %T", v)
	}
}

// Helpers to coerce JSON/YAML inputs to integers (accept exponent/float forms if integral)
func coerceToInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", t)
		}
		return int64(t), nil
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", t)
		}
		return int64(t), nil
	case json.Number:
		if iv, err := t.Int64(); err == nil {
			return iv, nil
		}
		return integralFloat(t.String())
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("non-integer numeric for integer field")
		}
		return int64(t), nil
	case string:
		if strings.ContainsAny(t, ".eE") {
			return integralFloat(t)
		}
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("expected integer-like, got %T", v)
	}
}

func integralFloat(s string) (int64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integer numeric for integer field")
	}
	return int64(f), nil
}

func coerceToUint64(v any) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case uint32:
		return uint64(t), nil
	case uint:
		return uint64(t), nil
	case int, int32, int64:
		i, _ := coerceToInt64(t)
		if i < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned field", i)
		}
		return uint64(i), nil
	case json.Number:
		if uv, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return uv, nil
		}
		return integralUnsigned(t.String())
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return 0, fmt.Errorf("non-integer numeric for unsigned field")
		}
		return uint64(t), nil
	case string:
		if strings.ContainsAny(t, ".eE") {
			return integralUnsigned(t)
		}
		return strconv.ParseUint(t, 10, 64)
	default:
		return 0, fmt.Errorf("expected unsigned-integer-like, got %T", v)
	}
}

func integralUnsigned(s string) (uint64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integer numeric for unsigned field")
	}
	return uint64(f), nil
}
