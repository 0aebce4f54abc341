// Package logger provides structured logging using go.uber.org/zap.
// It sets up a JSON logger with service-level context, optional rotating
// file output, and build ID propagation through context.Context.
package logger

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey string

const buildIDKey ctxKey = "build_id"

// Config controls level and file rotation. An empty FilePath logs to stdout only.
type Config struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxAge     int    `mapstructure:"max_age"`  // days
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// Init creates the logger for service and installs it as zap's global logger.
func Init(service string, cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if cfg.FilePath != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}))
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), level)
	logger := zap.New(core, zap.AddCaller()).With(zap.String("service", service))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// NewBuildID returns a random identifier for one aggregate build.
func NewBuildID() string {
	return uuid.NewString()
}

// WithBuildID stores a build ID in the context for downstream propagation.
func WithBuildID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, buildIDKey, id)
}

// BuildID extracts the build ID from context. Returns "" if not set.
func BuildID(ctx context.Context) string {
	if v, ok := ctx.Value(buildIDKey).(string); ok {
		return v
	}
	return ""
}

// Fields returns zap fields carrying the build ID from context.
// Usage: log.Info("msg", logger.Fields(ctx)...)
func Fields(ctx context.Context) []zap.Field {
	id := BuildID(ctx)
	if id == "" {
		return nil
	}
	return []zap.Field{zap.String("build_id", id)}
}
