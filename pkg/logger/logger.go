package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig controls logger construction.
type LoggerConfig struct {
	Debug bool
}

// NewLogger creates a zap logger for daemon and test use.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg != nil && cfg.Debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		zapCfg.Development = true
	}
	return zapCfg.Build()
}
