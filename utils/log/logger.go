package log

import (
	"context"
	"os"

	"go.uber.org/zap"
)

type ctxKey string

const (
	SourceKey    ctxKey = "source"
	ChannelIDKey ctxKey = "channel_id"
	AuthorIDKey  ctxKey = "author_id"
	DeviceIDKey  ctxKey = "device_id"
)

var logger *zap.Logger

func init() {
	Configure(os.Getenv("DEBUG") == "true")
}

// Configure swaps the process logger. main calls it again once .env values
// are loaded.
func Configure(debug bool) {
	var err error
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		logger = zap.NewNop()
	}
}

// L returns the process logger.
func L() *zap.Logger {
	return logger
}

// Sync flushes buffered entries; call it before exit.
func Sync() {
	_ = logger.Sync()
}

// NewContext attaches request-scoped values picked up by WithCtx.
func NewContext(ctx context.Context, key ctxKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	for _, key := range []ctxKey{SourceKey, ChannelIDKey, AuthorIDKey, DeviceIDKey} {
		if v := ctx.Value(key); v != nil {
			fields = append(fields, zap.Any(string(key), v))
		}
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}
