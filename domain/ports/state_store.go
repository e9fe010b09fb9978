package ports

import "context"

// StateStore is the host's key-value store for module state.
type StateStore interface {
	// Get returns the value stored under key.
	// found is false (and err nil) when nothing was stored yet.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Location describes the backing store for user messaging.
	Location() string
}
