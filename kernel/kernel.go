// Package kernel is the trusted broker between permission providers and
// requesters. It keeps the offer registry and runs one negotiation per
// permission request: validate, match, let the user select, delegate to
// the owning provider and hand its answer back unchanged.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reglet-dev/reglet-broker/application/template"
	"github.com/reglet-dev/reglet-broker/application/validation"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/policy"
	"github.com/reglet-dev/reglet-broker/domain/ports"
	"github.com/reglet-dev/reglet-broker/kernel/pending"
	"github.com/reglet-dev/reglet-broker/kernel/registry"
)

var _ ports.InputSink = (*Kernel)(nil)

type kernelConfig struct {
	logger            *slog.Logger
	renderer          ports.DialogRenderer
	validator         ports.RequestValidator
	offers            ports.OfferRegistry
	copywriter        *template.Copywriter
	denials           ports.DenialHandler
	newID             func() string
	dialogTimeout     time.Duration
	selectionAttempts int
	verifyResponses   bool
}

func defaultKernelConfig() kernelConfig {
	return kernelConfig{
		logger:            slog.Default(),
		denials:           &policy.NopDenialHandler{},
		newID:             uuid.NewString,
		dialogTimeout:     5 * time.Minute,
		selectionAttempts: 1,
		verifyResponses:   true,
	}
}

// Option configures a Kernel.
type Option func(*kernelConfig)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *kernelConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRenderer sets the dialog renderer. Required.
func WithRenderer(r ports.DialogRenderer) Option {
	return func(c *kernelConfig) {
		c.renderer = r
	}
}

// WithValidator replaces the schema validator for inbound params.
func WithValidator(v ports.RequestValidator) Option {
	return func(c *kernelConfig) {
		c.validator = v
	}
}

// WithOfferRegistry replaces the default in-memory registry.
func WithOfferRegistry(r ports.OfferRegistry) Option {
	return func(c *kernelConfig) {
		c.offers = r
	}
}

// WithCopywriter replaces the dialog copy.
func WithCopywriter(cw *template.Copywriter) Option {
	return func(c *kernelConfig) {
		c.copywriter = cw
	}
}

// WithDenialHandler sets the handler told about every declined negotiation.
func WithDenialHandler(h ports.DenialHandler) Option {
	return func(c *kernelConfig) {
		if h != nil {
			c.denials = h
		}
	}
}

// WithIDGenerator replaces the uuid generator for negotiation and dialog ids.
func WithIDGenerator(fn func() string) Option {
	return func(c *kernelConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithDialogTimeout bounds every dialog. Zero disables the bound.
// Default is 5 minutes.
func WithDialogTimeout(d time.Duration) Option {
	return func(c *kernelConfig) {
		c.dialogTimeout = d
	}
}

// WithSelectionAttempts sets how often an invalid selection is re-prompted.
// Default is 1 (no re-prompt).
func WithSelectionAttempts(n int) Option {
	return func(c *kernelConfig) {
		if n > 0 {
			c.selectionAttempts = n
		}
	}
}

// WithVerifyResponses enables the schema check on provider answers.
// Default is true.
func WithVerifyResponses(enabled bool) Option {
	return func(c *kernelConfig) {
		c.verifyResponses = enabled
	}
}

// Kernel brokers permission negotiations.
type Kernel struct {
	config  kernelConfig
	invoker ports.Invoker
	inbox   *pending.Inbox
	id      string
}

// New creates a Kernel identified as id that reaches providers through invoker.
func New(id string, invoker ports.Invoker, opts ...Option) (*Kernel, error) {
	if id == "" {
		return nil, fmt.Errorf("kernel id cannot be empty")
	}
	if invoker == nil {
		return nil, fmt.Errorf("kernel needs an invoker")
	}

	cfg := defaultKernelConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.renderer == nil {
		return nil, fmt.Errorf("kernel needs a dialog renderer")
	}
	if cfg.validator == nil {
		v, err := validation.NewValidator()
		if err != nil {
			return nil, fmt.Errorf("failed to build validator: %w", err)
		}
		cfg.validator = v
	}
	if cfg.offers == nil {
		cfg.offers = registry.NewRegistry()
	}
	if cfg.copywriter == nil {
		cfg.copywriter = template.NewCopywriter(nil, nil)
	}
	if err := cfg.copywriter.Check(template.SampleData()); err != nil {
		return nil, fmt.Errorf("invalid dialog copy: %w", err)
	}

	return &Kernel{
		config:  cfg,
		invoker: invoker,
		inbox:   pending.NewInbox(),
		id:      id,
	}, nil
}

// ID returns the kernel's module identity.
func (k *Kernel) ID() string {
	return k.id
}

// Offers returns the offer registry.
func (k *Kernel) Offers() ports.OfferRegistry {
	return k.config.offers
}

// Inbox returns the sink for user input addressed to kernel dialogs.
func (k *Kernel) Inbox() *pending.Inbox {
	return k.inbox
}

// Deliver implements ports.InputSink.
func (k *Kernel) Deliver(ctx context.Context, event entities.UserInputEvent) error {
	return k.inbox.Deliver(ctx, event)
}
