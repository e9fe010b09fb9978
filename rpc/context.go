package rpc

import (
	"context"
)

type originKey struct{}

// WithOrigin returns a context carrying the identity of the calling module.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the calling module's identity, if the transport set one.
func OriginFrom(ctx context.Context) (string, bool) {
	origin, ok := ctx.Value(originKey{}).(string)
	return origin, ok
}

// CallContext wraps a standard context.Context with call-specific helpers.
// It provides access to the invoked method and the caller's origin, and
// allows middleware to store request-scoped values without polluting the
// standard context.
type CallContext interface {
	context.Context

	// Method returns the name of the method being invoked.
	Method() string

	// Origin returns the caller identity, or "" when unknown.
	Origin() string

	// SetValue stores a request-scoped value. Unlike context.WithValue,
	// this mutates the existing CallContext.
	SetValue(key, value any)

	// GetValue retrieves a request-scoped value set by SetValue.
	GetValue(key any) (value any, ok bool)
}

type callContext struct {
	context.Context
	values map[any]any
	method string
	origin string
}

// NewCallContext creates a new CallContext wrapping the given context.
func NewCallContext(ctx context.Context, method string) CallContext {
	origin, _ := OriginFrom(ctx)
	return &callContext{
		Context: ctx,
		method:  method,
		origin:  origin,
		values:  make(map[any]any),
	}
}

func (c *callContext) Method() string {
	return c.method
}

func (c *callContext) Origin() string {
	return c.origin
}

func (c *callContext) SetValue(key, value any) {
	c.values[key] = value
}

func (c *callContext) GetValue(key any) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// CallContextFrom extracts a CallContext from a context.Context.
// If the context is already a CallContext for the same method, it is
// returned directly. Otherwise, a new CallContext wraps ctx.
func CallContextFrom(ctx context.Context, method string) CallContext {
	if cc, ok := ctx.(CallContext); ok && cc.Method() == method {
		return cc
	}
	return NewCallContext(ctx, method)
}
