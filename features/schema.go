// Package features describes the Features record a device reports about
// itself: vendor, firmware version, protection flags and session state.
package features

import (
	_ "embed"
	"sync"

	"github.com/anirudhraja/devwire/schema"
)

// Proto is the interface definition the Schema table is kept in sync with.
//
//go:embed features.proto
var Proto []byte

const (
	// ProtoFile is the name Proto is registered under.
	ProtoFile = "features.proto"
	// Package is the proto package declared in Proto.
	Package = "hw.trezor.messages.management"
	// WireTypeID routes framed buffers to Features.
	WireTypeID = 17
)

var (
	schemaOnce sync.Once
	features   *schema.Message
)

// Schema returns the Features message schema. It is built once and must be
// treated as read-only.
func Schema() *schema.Message {
	schemaOnce.Do(func() {
		features = build()
	})
	return features
}

func build() *schema.Message {
	field := func(n int32, name string, t schema.FieldType) *schema.Field {
		return &schema.Field{
			Name:     name,
			Number:   n,
			Label:    schema.LabelOptional,
			Type:     t,
			JSONName: schema.JSONName(name),
		}
	}

	return &schema.Message{
		Name:       "Features",
		WireTypeID: WireTypeID,
		Fields: []*schema.Field{
			field(1, "vendor", schema.String()),
			field(2, "major_version", schema.Uint32()),
			field(3, "minor_version", schema.Uint32()),
			field(4, "patch_version", schema.Uint32()),
			field(5, "bootloader_mode", schema.Bool()),
			field(6, "device_id", schema.String()),
			field(7, "pin_protection", schema.Bool()),
			field(8, "passphrase_protection", schema.Bool()),
			field(9, "language", schema.String()),
			field(10, "label", schema.String()),
			field(12, "initialized", schema.Bool()),
			field(13, "revision", schema.Bytes()),
			field(14, "bootloader_hash", schema.Bytes()),
			field(15, "imported", schema.Bool()),
			field(16, "pin_cached", schema.Bool()),
			field(17, "passphrase_cached", schema.Bool()),
			field(21, "model", schema.String()),
			field(35, "session_id", schema.Bytes()),
			field(36, "passphrase_always_on_device", schema.Bool()),
		},
		Reserved: []schema.ReservedRange{
			{Start: 11, End: 11},
			{Start: 18, End: 20},
			{Start: 22, End: 28},
			{Start: 29, End: 34},
		},
		ReservedNames: []string{
			"firmware_present",
			"needs_backup",
			"flags",
			"fw_major",
			"fw_minor",
			"fw_patch",
			"fw_vendor",
			"fw_vendor_keys",
			"unfinished_backup",
			"no_backup",
		},
	}
}
