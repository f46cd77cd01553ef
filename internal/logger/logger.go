package logger

import (
	"context"
	"errors"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/invoicer/internal/config"
)

// Module exposes a configured Zap logger to the Fx container and routes Fx's
// own lifecycle events through it.
var Module = fx.Options(
	fx.Provide(New),
	fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		l := &fxevent.ZapLogger{Logger: logger.Named("fx")}
		l.UseLogLevel(zapcore.DebugLevel)
		return l
	}),
)

// New builds the process logger; Fx syncs it on shutdown.
func New(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	logger, err := Build(cfg.Observability)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Syncing a terminal-backed stderr fails with EINVAL or ENOTTY.
			if err := logger.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
				return err
			}
			return nil
		},
	})

	return logger, nil
}

// Build creates a logger for the given settings. An unknown level falls back
// to info; "console" encoding selects the development encoder.
func Build(obs config.Observability, opts ...zap.Option) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(obs.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if obs.LogEncoding == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.Encoding = "json"
		zapCfg.EncoderConfig.TimeKey = "ts"
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
		zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		zapCfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, err
	}

	return logger.With(
		zap.String("service", obs.ServiceName),
		zap.String("environment", obs.Environment),
	), nil
}
