package logging

import "go.uber.org/zap/zapcore"

// Config is the configuration for the logging subsystem.
type Config struct {
	// Level is the logging level.
	//
	// The debug level also enables per-frame traces of the router.
	Level zapcore.Level `yaml:"level"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level: zapcore.InfoLevel,
	}
}
