// Package rpc dispatches named JSON methods for broker modules.
//
// A Registry is built once with its methods, middleware and guards and is
// read-only afterwards. Every call carries the caller's origin in its
// context; guards see it before anything else runs.
package rpc

import (
	"context"
	"fmt"
	"sort"
)

// Registry is an immutable collection of named methods.
// Once created via NewRegistry, methods cannot be added or removed.
// Lookups are lock-free.
type Registry struct {
	handlers map[string]ByteHandler
	names    []string // sorted for consistent iteration
	guards   []Guard
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	handlers   map[string]ByteHandler
	middleware []Middleware
	guards     []Guard
	errors     []error
}

// NewRegistry creates an immutable Registry with the given options.
// Returns an error if any method name is registered twice.
//
// Example usage:
//
//	registry, err := rpc.NewRegistry(
//	    rpc.WithGuard(gate),
//	    rpc.WithMiddleware(rpc.PanicRecoveryMiddleware()),
//	    rpc.WithByteHandler("permissionProvider_grantAttenuatedPermission", grant),
//	)
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	b := &registryBuilder{
		handlers: make(map[string]ByteHandler),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	// Apply middleware chain to all handlers (FIFO order)
	wrapped := make(map[string]ByteHandler, len(b.handlers))
	for name, handler := range b.handlers {
		h := handler
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](h)
		}
		wrapped[name] = h
	}

	return &Registry{
		handlers: wrapped,
		names:    names,
		guards:   b.guards,
	}, nil
}

// Invoke dispatches a call by method name.
// Guards run first, then lookup, then the handler. Every failure is
// returned as an *ErrorResponse wrapping its typed cause.
func (r *Registry) Invoke(ctx context.Context, method string, payload []byte) ([]byte, error) {
	cc, err := runGuards(ctx, r.guards, method)
	if err != nil {
		return nil, AsErrorResponse(err)
	}

	handler, ok := r.handlers[method]
	if !ok {
		return nil, NewNotFoundError(method)
	}

	resp, err := handler(cc, payload)
	if err != nil {
		return nil, AsErrorResponse(err)
	}
	return resp, nil
}

// Has returns true if a method with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns a sorted list of all registered method names.
func (r *Registry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

func (b *registryBuilder) addHandler(name string, handler ByteHandler) error {
	if name == "" {
		return fmt.Errorf("method name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("method %q has a nil handler", name)
	}
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("duplicate method name: %q", name)
	}
	b.handlers[name] = handler
	return nil
}

// WithByteHandler registers a raw ByteHandler under the given name.
// Use NewJSONHandler to build one from a typed Method.
func WithByteHandler(name string, handler ByteHandler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(name, handler); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
