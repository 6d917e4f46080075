package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/devwire/logger"
	"github.com/anirudhraja/devwire/registry"
	"github.com/anirudhraja/devwire/wire"
)

const featuresHex = "0a 04 61 63 6d 65 88 01 01"

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	prevLogger := logger.Logger
	prevConfig := wire.CurrentConfig()
	t.Cleanup(func() {
		logger.SetLogger(prevLogger)
		wire.SetConfig(prevConfig)
	})

	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"devwire"}, args...))
	return stdout.String(), stderr.String(), err
}

func writeProto(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestDecode_JSON(t *testing.T) {
	out, _, err := run(t, featuresHex, "-o", "json", "decode", "--type", "Features", "--hex", "--set-only")
	require.NoError(t, err)
	assert.JSONEq(t, `{"vendor": "acme", "passphrase_cached": true}`, out)
}

func TestDecode_FrameYAML(t *testing.T) {
	frame := "23 23 00 11 00 00 00 09 " + featuresHex
	out, _, err := run(t, frame, "--output", "yaml", "decode", "--hex")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Len(t, got, 19)
	assert.Equal(t, "acme", got["vendor"])
	assert.Equal(t, true, got["passphrase_cached"])
	v, ok := got["model"]
	assert.True(t, ok, "unset fields are printed")
	assert.Nil(t, v)
}

func TestDecode_CBOR(t *testing.T) {
	// revision = {0x01, 0x02}
	out, _, err := run(t, "6a 02 01 02", "-o", "cbor", "decode", "-t", "Features", "--hex", "--set-only")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, cbor.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]any{"revision": []byte{0x01, 0x02}}, got)
}

func TestDecode_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x28, 0x00}, 0o644))

	out, _, err := run(t, "", "decode", "--type", "Features", "--set-only", path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bootloader_mode": false}`, out)
}

func TestDecode_Malformed(t *testing.T) {
	_, _, err := run(t, "28 02", "decode", "--type", "Features", "--hex")
	assert.ErrorIs(t, err, wire.ErrMalformedPayload)

	_, _, err = run(t, "", "decode", "--type", "Nope")
	assert.ErrorIs(t, err, registry.ErrMessageNotFound)

	_, _, err = run(t, "zz", "decode", "--type", "Features", "--hex")
	assert.Error(t, err)
}

func TestDecode_Raw(t *testing.T) {
	// vendor = "hi", then field 99 varint 1 which no schema declares
	out, _, err := run(t, "0a 02 68 69 98 06 01", "-o", "json", "decode", "--raw", "--hex")
	require.NoError(t, err)
	assert.JSONEq(t, `{"fields": [
		{"tag": 1, "wire_type": "bytes", "offset": 0, "value": "aGk="},
		{"tag": 99, "wire_type": "varint", "offset": 4, "value": 1}
	]}`, out)

	_, _, err = run(t, "0b", "decode", "--raw", "--hex")
	assert.ErrorIs(t, err, wire.ErrMalformedPayload)
}

func TestEncode(t *testing.T) {
	out, _, err := run(t, `{"vendor": "acme", "passphrase_cached": true}`, "encode", "--type", "Features", "--hex")
	require.NoError(t, err)
	assert.Equal(t, "0a0461636d65880101\n", out)

	out, _, err = run(t, "model: T\n", "encode", "--type", "Features", "--frame")
	require.NoError(t, err)
	assert.Equal(t, string([]byte{'#', '#', 0x00, 0x11, 0, 0, 0, 4, 0xaa, 0x01, 0x01, 'T'}), out)

	_, _, err = run(t, `{"unknown_field": 1}`, "encode", "--type", "Features")
	assert.Error(t, err)
}

func TestEncode_RoundTripThroughJSON(t *testing.T) {
	decoded, _, err := run(t, "6a 02 01 02 28 01", "decode", "--type", "Features", "--hex")
	require.NoError(t, err)

	out, _, err := run(t, decoded, "encode", "--type", "Features", "--hex")
	require.NoError(t, err)
	assert.Equal(t, "28016a020102\n", out, "fields are written in declaration order")
}

func TestFields(t *testing.T) {
	out, _, err := run(t, "", "fields", "--type", "Features")
	require.NoError(t, err)

	assert.Contains(t, out, "Features (wire id 17)")
	assert.Contains(t, out, "passphrase_always_on_device")
	assert.Contains(t, out, "18-20")
	assert.Contains(t, out, "29-34")
	assert.Contains(t, out, "reserved names: firmware_present")

	_, _, err = run(t, "", "fields")
	assert.Error(t, err, "--type is required")
}

func TestFields_LoadedSchema(t *testing.T) {
	out, _, err := run(t, "", "-s", "../../registry/testdata", "fields", "--type", "Ping")
	require.NoError(t, err)
	assert.Contains(t, out, "button_protection")
}

func TestCheck(t *testing.T) {
	prevDir := t.TempDir()
	writeProto(t, prevDir, "device.proto", `syntax = "proto2";
package dev;
message Status {
    optional string vendor = 1;
    optional bool legacy = 2;
}
`)

	t.Run("compatible", func(t *testing.T) {
		dir := t.TempDir()
		writeProto(t, dir, "device.proto", `syntax = "proto2";
package dev;
message Status {
    optional string vendor = 1;
    reserved 2;
    optional bool ready = 3;
}
`)
		out, _, err := run(t, "", "-s", dir, "check", "--previous", prevDir)
		require.NoError(t, err)
		assert.Equal(t, "1 message(s) ok\n", out)
	})

	t.Run("dropped without reserving", func(t *testing.T) {
		dir := t.TempDir()
		writeProto(t, dir, "device.proto", `syntax = "proto2";
package dev;
message Status {
    optional string vendor = 1;
}
`)
		_, stderr, err := run(t, "", "-s", dir, "check", "--previous", prevDir)
		require.Error(t, err)
		assert.Contains(t, stderr, "legacy")
	})

	t.Run("tag renamed", func(t *testing.T) {
		dir := t.TempDir()
		writeProto(t, dir, "device.proto", `syntax = "proto2";
package dev;
message Status {
    optional string vendor = 1;
    optional bool active = 2;
}
`)
		_, stderr, err := run(t, "", "-s", dir, "check", "--previous", prevDir)
		require.Error(t, err)
		assert.Contains(t, stderr, "legacy -> active")
	})

	t.Run("built-in schema", func(t *testing.T) {
		out, _, err := run(t, "", "check")
		require.NoError(t, err)
		assert.Equal(t, "1 message(s) ok\n", out)
	})
}

func TestInvalidOutput(t *testing.T) {
	_, _, err := run(t, featuresHex, "-o", "xml", "decode", "--type", "Features", "--hex")
	assert.Error(t, err)
}
