package wire

import "sync/atomic"

// Config controls optional codec behaviors. The zero value of each toggle is
// the strict behavior.
type Config struct {
	// AllowUnknownEnumNumberDecode: when true, enum numbers missing from the
	// enum definition are kept as their int32 value instead of failing.
	AllowUnknownEnumNumberDecode bool `mapstructure:"allow_unknown_enum_number_decode"`

	// PreserveUnknownBytesOnDecode: when true, the raw bytes of unknown fields
	// are kept on the decoded record and re-emitted, after the known fields,
	// when it is encoded again. When false they are dropped.
	PreserveUnknownBytesOnDecode bool `mapstructure:"preserve_unknown_bytes_on_decode"`

	// MaxDepth bounds nested message recursion. Values <= 0 use DefaultMaxDepth.
	MaxDepth int `mapstructure:"max_depth"`
}

// DefaultMaxDepth is the nesting limit used when Config.MaxDepth is unset.
const DefaultMaxDepth = 64

// DefaultConfig returns the configuration used until SetConfig is called.
func DefaultConfig() Config {
	return Config{MaxDepth: DefaultMaxDepth}
}

func (c Config) maxDepth() int {
	if c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}

var config atomic.Pointer[Config]

func init() {
	c := DefaultConfig()
	config.Store(&c)
}

// SetConfig sets the global wire configuration. Decoders and encoders pick it
// up when they are created.
func SetConfig(c Config) { config.Store(&c) }

// CurrentConfig returns the global wire configuration.
func CurrentConfig() Config { return *config.Load() }
