package logger

import "go.uber.org/zap"

var (
	Logger = zap.NewNop()
	Sugar  = Logger.Sugar()
)

// SetLogger replaces the package logger. It is not synchronized with the
// codec and registry, which read Logger on every call, so call it once at
// startup before any decoding or schema loading begins.
func SetLogger(l *zap.Logger) {
	Logger = l
	Sugar = l.Sugar()
}

// NewCli builds the console logger used by the command line tool.
func NewCli(verbose bool) (*zap.Logger, error) {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = !verbose
	return cfg.Build()
}
