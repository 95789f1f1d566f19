package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry so shipped logs can be filtered per service.
const ServiceName = "perfume-store"

// New creates the process logger for env. Production and staging write sampled JSON
// at info level; development and test write colored console output at debug level.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "production", "staging", "development", "test":
	default:
		return nil, fmt.Errorf("unknown environment %q", env)
	}

	// Always log to stdout for container compatibility
	return build(env, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr)), nil
}

func structured(env string) bool {
	return env == "production" || env == "staging"
}

// EncoderConfig returns the field layout used for env.
func EncoderConfig(env string) zapcore.EncoderConfig {
	if structured(env) {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.MessageKey = "message"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}

func build(env string, out, errOut zapcore.WriteSyncer) *zap.Logger {
	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(errOut),
		zap.Fields(zap.String("service", ServiceName)),
	}

	if !structured(env) {
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(EncoderConfig(env)), out, zapcore.DebugLevel)
		return zap.New(core, append(opts, zap.Development())...)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(EncoderConfig(env)), out, zapcore.InfoLevel)
	// same sampling as zap.NewProductionConfig
	core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
	return zap.New(core, opts...)
}
