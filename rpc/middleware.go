package rpc

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Middleware is a function that wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next ByteHandler) ByteHandler

// RegistryOption is a functional option for configuring a Registry.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware returns a middleware that catches panics and converts
// them to an INTERNAL_ERROR response instead of crashing the caller.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = nil
					err = NewPanicError(r)
				}
			}()
			return next(ctx, payload)
		}
	}
}

type callIDKey struct{}

// CallIDMiddleware tags every call with a fresh id stored on its
// CallContext. Register it before LoggingMiddleware to get the id logged.
func CallIDMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			if cc, ok := ctx.(CallContext); ok {
				cc.SetValue(callIDKey{}, uuid.NewString())
			}
			return next(ctx, payload)
		}
	}
}

// CallID returns the id CallIDMiddleware assigned to the call, or "".
func CallID(ctx context.Context) string {
	cc, ok := ctx.(CallContext)
	if !ok {
		return ""
	}
	v, _ := cc.GetValue(callIDKey{})
	id, _ := v.(string)
	return id
}

// LoggingMiddleware returns a middleware that logs every method dispatch.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			method, origin := "unknown", ""
			if cc, ok := ctx.(CallContext); ok {
				method = cc.Method()
				origin = cc.Origin()
			}
			logger := logger
			if id := CallID(ctx); id != "" {
				logger = logger.With(slog.String("call_id", id))
			}
			start := time.Now()
			logger.DebugContext(ctx, "invoking method",
				slog.String("method", method),
				slog.String("origin", origin),
			)
			resp, err := next(ctx, payload)
			if err != nil {
				logger.WarnContext(ctx, "method failed",
					slog.String("method", method),
					slog.String("origin", origin),
					slog.Duration("elapsed", time.Since(start)),
					slog.Any("error", err),
				)
				return resp, err
			}
			logger.DebugContext(ctx, "method completed",
				slog.String("method", method),
				slog.Duration("elapsed", time.Since(start)),
			)
			return resp, nil
		}
	}
}
