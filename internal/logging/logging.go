package logging

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type loggerContextKey struct {
	name string
}

var loggerCtxKey = &loggerContextKey{"logger"}

// NewLogger creates the service logger at the given level and stores it in ctx
func NewLogger(ctx context.Context, serviceName, level string) (context.Context, zerolog.Logger) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", strings.ToLower(serviceName)).
		Logger()

	ctx = NewContextWithLogger(ctx, logger)
	return ctx, logger
}

func NewContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// LoggerFromContext returns the logger stored in ctx, if any
func LoggerFromContext(ctx context.Context) (zerolog.Logger, bool) {
	if ctx == nil {
		return zerolog.Logger{}, false
	}
	logger, ok := ctx.Value(loggerCtxKey).(zerolog.Logger)
	return logger, ok
}

// GetLoggerFromContext returns the logger stored in ctx, or the global logger
func GetLoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger, ok := LoggerFromContext(ctx)
	if !ok {
		return &log.Logger
	}
	return &logger
}
