package ports

import "context"

// Invoker performs inter-module calls on behalf of one module.
// The caller's identity is bound when the invoker is created and is
// reported to the target as the call's origin.
type Invoker interface {
	// Invoke calls method on the module identified by target with a JSON payload.
	// Returns the raw JSON result.
	Invoke(ctx context.Context, target, method string, params []byte) ([]byte, error)
}
