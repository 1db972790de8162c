package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Debug bool
}

// NewLogger creates a production zap logger, switched to debug level and
// development encoding when cfg.Debug is set.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	if cfg.Debug {
		c = zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return c.Build()
}

func NewNoopLogger() *zap.Logger {
	return zap.NewNop()
}
