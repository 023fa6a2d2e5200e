package cli

import "go.uber.org/zap"

// newLogger builds the zap logger commands hand to the session and transport.
// Silent unless --verbose is set; verbose output is JSON on stderr so it
// never mixes with ndjson records on stdout.
func newLogger(globals *Globals) *zap.Logger {
	if globals == nil || !globals.Verbose {
		return zap.NewNop()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "json"
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
