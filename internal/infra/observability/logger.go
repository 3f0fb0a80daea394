package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig selects the encoder, level and sink of a logger.
type LoggerConfig struct {
	Service string
	// Level is a zap level name; unknown names fall back to info.
	Level string
}

// NewLogger creates a structured zap logger tagged with the service name.
// Production base (no stacktraces on Warn); debug switches to a colourised
// console encoder, everything else is compact JSON. Output goes to stderr.
func NewLogger(c LoggerConfig) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	if level == zapcore.DebugLevel {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if c.Service != "" {
		cfg.InitialFields = map[string]any{"service": c.Service}
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	return logger
}
