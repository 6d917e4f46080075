// Package config loads codec and command line settings from an optional
// file (YAML, TOML or JSON) and DEVWIRE_* environment variables.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/anirudhraja/devwire/wire"
)

// EnvPrefix prefixes every environment variable, e.g. DEVWIRE_WIRE_MAX_DEPTH.
const EnvPrefix = "DEVWIRE"

// Output formats understood by the command line tool.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputCBOR = "cbor"
)

var ErrInvalidOutput = errors.New("config: invalid output format")

// Settings is the full configuration.
type Settings struct {
	Wire        wire.Config `mapstructure:"wire"`
	SchemaPaths []string    `mapstructure:"schema_paths"`
	Output      string      `mapstructure:"output"`
	Verbose     bool        `mapstructure:"verbose"`
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() Settings {
	return Settings{
		Wire:   wire.DefaultConfig(),
		Output: OutputJSON,
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("wire.allow_unknown_enum_number_decode", d.Wire.AllowUnknownEnumNumberDecode)
	v.SetDefault("wire.preserve_unknown_bytes_on_decode", d.Wire.PreserveUnknownBytesOnDecode)
	v.SetDefault("wire.max_depth", d.Wire.MaxDepth)
	v.SetDefault("schema_paths", d.SchemaPaths)
	v.SetDefault("output", d.Output)
	v.SetDefault("verbose", d.Verbose)
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, if not empty, on top of the defaults and environment.
func Load(path string) (*Settings, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks values viper cannot check by type alone.
func (s *Settings) Validate() error {
	switch s.Output {
	case OutputJSON, OutputYAML, OutputCBOR:
	default:
		return errors.Wrapf(ErrInvalidOutput, "%q", s.Output)
	}
	if s.Wire.MaxDepth < 0 {
		return errors.Errorf("config: wire.max_depth must not be negative, got %d", s.Wire.MaxDepth)
	}
	return nil
}

// Apply installs the wire settings as the global codec configuration.
func (s *Settings) Apply() {
	wire.SetConfig(s.Wire)
}
