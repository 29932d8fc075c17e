package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// BuildLogger constructs the process logger from the logging section.
// Format "console" gives human-readable development output, anything else
// structured JSON.
func (l LoggingConfig) BuildLogger() (*zap.Logger, error) {
	var cfg zap.Config
	if l.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", l.Level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}
