package features

import (
	"fmt"

	"github.com/anirudhraja/devwire/record"
	"github.com/anirudhraja/devwire/wire"
)

// Features is the typed view of a Features record. Every field is optional;
// an unset field is distinct from a field set to its zero value.
type Features struct {
	Vendor                   record.Optional[string] `json:"vendor"`
	MajorVersion             record.Optional[uint32] `json:"major_version"`
	MinorVersion             record.Optional[uint32] `json:"minor_version"`
	PatchVersion             record.Optional[uint32] `json:"patch_version"`
	BootloaderMode           record.Optional[bool]   `json:"bootloader_mode"`
	DeviceID                 record.Optional[string] `json:"device_id"`
	PinProtection            record.Optional[bool]   `json:"pin_protection"`
	PassphraseProtection     record.Optional[bool]   `json:"passphrase_protection"`
	Language                 record.Optional[string] `json:"language"`
	Label                    record.Optional[string] `json:"label"`
	Initialized              record.Optional[bool]   `json:"initialized"`
	Revision                 record.Optional[[]byte] `json:"revision"`
	BootloaderHash           record.Optional[[]byte] `json:"bootloader_hash"`
	Imported                 record.Optional[bool]   `json:"imported"`
	PinCached                record.Optional[bool]   `json:"pin_cached"`
	PassphraseCached         record.Optional[bool]   `json:"passphrase_cached"`
	Model                    record.Optional[string] `json:"model"`
	SessionID                record.Optional[[]byte] `json:"session_id"`
	PassphraseAlwaysOnDevice record.Optional[bool]   `json:"passphrase_always_on_device"`
}

type binding struct {
	put  func(r *record.Record) error
	take func(r *record.Record)
}

func bind[T any](name string, o *record.Optional[T]) binding {
	return binding{
		put: func(r *record.Record) error {
			return record.Put(r, name, *o)
		},
		take: func(r *record.Record) {
			*o = record.None[T]()
			if v, ok := r.Get(name); ok {
				if t, ok := v.(T); ok {
					*o = record.Some(t)
				}
			}
		},
	}
}

func (f *Features) bindings() []binding {
	return []binding{
		bind("vendor", &f.Vendor),
		bind("major_version", &f.MajorVersion),
		bind("minor_version", &f.MinorVersion),
		bind("patch_version", &f.PatchVersion),
		bind("bootloader_mode", &f.BootloaderMode),
		bind("device_id", &f.DeviceID),
		bind("pin_protection", &f.PinProtection),
		bind("passphrase_protection", &f.PassphraseProtection),
		bind("language", &f.Language),
		bind("label", &f.Label),
		bind("initialized", &f.Initialized),
		bind("revision", &f.Revision),
		bind("bootloader_hash", &f.BootloaderHash),
		bind("imported", &f.Imported),
		bind("pin_cached", &f.PinCached),
		bind("passphrase_cached", &f.PassphraseCached),
		bind("model", &f.Model),
		bind("session_id", &f.SessionID),
		bind("passphrase_always_on_device", &f.PassphraseAlwaysOnDevice),
	}
}

// FromRecord copies a decoded Features record into the typed view.
func FromRecord(rec *record.Record) (*Features, error) {
	if name := rec.Schema().Name; name != Schema().Name {
		return nil, fmt.Errorf("features: record is a %s", name)
	}
	f := &Features{}
	for _, b := range f.bindings() {
		b.take(rec)
	}
	return f, nil
}

// Record builds a record holding the set fields of f.
func (f *Features) Record() (*record.Record, error) {
	rec := record.New(Schema())
	for _, b := range f.bindings() {
		if err := b.put(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Decode parses a Features body. Unknown tags are skipped.
func Decode(data []byte) (*Features, error) {
	rec, err := wire.DecodeMessage(data, Schema(), nil)
	if err != nil {
		return nil, err
	}
	return FromRecord(rec)
}

// Encode serializes the set fields in tag declaration order.
func (f *Features) Encode() ([]byte, error) {
	rec, err := f.Record()
	if err != nil {
		return nil, err
	}
	return wire.EncodeRecord(rec)
}
