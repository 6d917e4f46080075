package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/devwire/config"
)

var cborEncMode cbor.EncMode

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	cborEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}
}

// render writes v to w in the given format. JSON and YAML carry bytes as
// base64 text, CBOR as byte strings.
func render(w io.Writer, format string, v map[string]any) error {
	switch format {
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(textual(v))
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(textual(v)); err != nil {
			return err
		}
		return enc.Close()
	case config.OutputCBOR:
		data, err := cborEncMode.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("%w: %q", config.ErrInvalidOutput, format)
	}
}

func textual(v any) any {
	switch t := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = textual(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = textual(e)
		}
		return out
	default:
		return v
	}
}

// parseInput reads a JSON or YAML document keyed by field name.
func parseInput(data []byte) (map[string]any, error) {
	var v map[string]any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if v == nil {
		v = map[string]any{}
	}
	return v, nil
}
