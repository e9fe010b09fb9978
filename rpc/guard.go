package rpc

import "context"

// Guard admits or rejects a call before the method is looked up or its
// params are read. ctx is a CallContext carrying the method and origin.
type Guard interface {
	Check(ctx CallContext) error
}

// GuardFunc adapts a function to Guard.
type GuardFunc func(ctx CallContext) error

// Check implements Guard.
func (f GuardFunc) Check(ctx CallContext) error {
	return f(ctx)
}

// WithGuard adds guards to the registry. Guards run in order; the first
// error stops the call.
func WithGuard(guards ...Guard) RegistryOption {
	return func(b *registryBuilder) {
		b.guards = append(b.guards, guards...)
	}
}

func runGuards(ctx context.Context, guards []Guard, method string) (CallContext, error) {
	cc := CallContextFrom(ctx, method)
	for _, g := range guards {
		if err := g.Check(cc); err != nil {
			return cc, err
		}
	}
	return cc, nil
}
