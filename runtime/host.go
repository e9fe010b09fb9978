// Package runtime routes inter-module calls inside one broker process.
//
// Each module (the kernel, every provider) registers its rpc.Registry under
// its identity. Calls are addressed by target identity and stamped with the
// caller's identity, which is how providers learn who is calling them.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/reglet-dev/reglet-broker/domain/ports"
	"github.com/reglet-dev/reglet-broker/rpc"
)

// Dispatcher is what a module exposes to the host.
type Dispatcher interface {
	Invoke(ctx context.Context, method string, payload []byte) ([]byte, error)
}

var _ Dispatcher = (*rpc.Registry)(nil)

type hostConfig struct {
	logger     *slog.Logger
	strictMode bool // Fail on duplicate module ids
}

func defaultHostConfig() hostConfig {
	return hostConfig{
		logger:     slog.Default(),
		strictMode: true,
	}
}

// HostOption configures a Host.
type HostOption func(*hostConfig)

// WithLogger sets the logger used for routing diagnostics.
func WithLogger(l *slog.Logger) HostOption {
	return func(c *hostConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStrictMode enables/disables failure on duplicate module registration.
// Default is true. Disable only for tests that replace a module.
func WithStrictMode(enabled bool) HostOption {
	return func(c *hostConfig) {
		c.strictMode = enabled
	}
}

// Host routes calls between registered modules.
type Host struct {
	config  hostConfig
	modules sync.Map // map[string]Dispatcher
}

// NewHost creates an empty Host.
func NewHost(opts ...HostOption) *Host {
	cfg := defaultHostConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Host{config: cfg}
}

// Register exposes a module's methods under id.
func (h *Host) Register(id string, d Dispatcher) error {
	if id == "" {
		return fmt.Errorf("module id cannot be empty")
	}
	if d == nil {
		return fmt.Errorf("module %q has no dispatcher", id)
	}
	if h.config.strictMode {
		if _, loaded := h.modules.LoadOrStore(id, d); loaded {
			return fmt.Errorf("module %q already registered", id)
		}
	} else {
		h.modules.Store(id, d)
	}
	h.config.logger.Debug("module registered", slog.String("module", id))
	return nil
}

// Has reports whether a module is registered under id.
func (h *Host) Has(id string) bool {
	_, ok := h.modules.Load(id)
	return ok
}

// Modules returns the registered module ids, sorted.
func (h *Host) Modules() []string {
	var ids []string
	h.modules.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

// Invoke calls method on target as origin.
func (h *Host) Invoke(ctx context.Context, origin, target, method string, params []byte) ([]byte, error) {
	v, ok := h.modules.Load(target)
	if !ok {
		return nil, &UnknownModuleError{ID: target}
	}
	h.config.logger.DebugContext(ctx, "routing call",
		slog.String("origin", origin),
		slog.String("target", target),
		slog.String("method", method),
	)
	return v.(Dispatcher).Invoke(rpc.WithOrigin(ctx, origin), method, params)
}

// Client returns an invoker whose calls carry origin as their caller identity.
func (h *Host) Client(origin string) ports.Invoker {
	return &client{host: h, origin: origin}
}

type client struct {
	host   *Host
	origin string
}

func (c *client) Invoke(ctx context.Context, target, method string, params []byte) ([]byte, error) {
	return c.host.Invoke(ctx, c.origin, target, method, params)
}

// UnknownModuleError is returned for calls to an unregistered module.
type UnknownModuleError struct {
	ID string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("no module registered as %q", e.ID)
}
