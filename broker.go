// Package broker assembles a runnable capability broker: a host runtime
// routing calls between the permission kernel and the bundled provider,
// backed by the configured state store and dialog renderer.
//
// Example usage:
//
//	cfg, err := config.Load("broker.yaml")
//	b, err := broker.New(cfg, broker.WithRenderer(prompter.NewCliPrompter(os.Stdin, os.Stderr)))
//	defer b.Close()
//	if err := b.Start(ctx); err != nil { ... }
//	outcome, err := b.Request(ctx, "https://dapp.example", raw)
package broker

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/reglet-dev/reglet-broker/application/config"
	"github.com/reglet-dev/reglet-broker/application/template"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/policy"
	"github.com/reglet-dev/reglet-broker/domain/ports"
	"github.com/reglet-dev/reglet-broker/infrastructure/seed"
	"github.com/reglet-dev/reglet-broker/infrastructure/statestore"
	"github.com/reglet-dev/reglet-broker/kernel"
	"github.com/reglet-dev/reglet-broker/kernel/pending"
	"github.com/reglet-dev/reglet-broker/kernel/registry"
	"github.com/reglet-dev/reglet-broker/log"
	"github.com/reglet-dev/reglet-broker/provider"
	"github.com/reglet-dev/reglet-broker/runtime"
)

// Binder is implemented by renderers that deliver user input themselves.
type Binder interface {
	Bind(sink ports.InputSink)
}

type brokerConfig struct {
	logger      *slog.Logger
	renderer    ports.DialogRenderer
	store       ports.StateStore
	denials     ports.DenialHandler
	issuer      ports.GrantIssuer
	seeds       []entities.StoredPermission
	attenuators []ports.Attenuator
}

// Option configures a Broker.
type Option func(*brokerConfig)

// WithLogger replaces the logger built from the log configuration.
func WithLogger(l *slog.Logger) Option {
	return func(c *brokerConfig) {
		c.logger = l
	}
}

// WithRenderer sets the dialog renderer shared by kernel and provider. Required.
func WithRenderer(r ports.DialogRenderer) Option {
	return func(c *brokerConfig) {
		c.renderer = r
	}
}

// WithStore replaces the store opened from the store configuration.
func WithStore(s ports.StateStore) Option {
	return func(c *brokerConfig) {
		c.store = s
	}
}

// WithDenialHandler sets the handler told about every decline.
// Default logs denials.
func WithDenialHandler(h ports.DenialHandler) Option {
	return func(c *brokerConfig) {
		c.denials = h
	}
}

// WithIssuer replaces the provider's grant signer.
func WithIssuer(i ports.GrantIssuer) Option {
	return func(c *brokerConfig) {
		c.issuer = i
	}
}

// WithSeeds sets the permissions installed on a fresh provider, overriding
// the configured seed directory.
func WithSeeds(seeds ...entities.StoredPermission) Option {
	return func(c *brokerConfig) {
		c.seeds = seeds
	}
}

// WithAttenuators replaces the provider's built-in attenuators.
func WithAttenuators(atts ...ports.Attenuator) Option {
	return func(c *brokerConfig) {
		c.attenuators = atts
	}
}

// Broker is an assembled kernel, provider and host.
type Broker struct {
	config   config.Config
	logger   *slog.Logger
	host     *runtime.Host
	kernel   *kernel.Kernel
	provider *provider.Provider
	closer   io.Closer
}

// New assembles a Broker from cfg.
func New(cfg config.Config, opts ...Option) (*Broker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var bc brokerConfig
	for _, opt := range opts {
		opt(&bc)
	}
	if bc.renderer == nil {
		return nil, fmt.Errorf("broker needs a dialog renderer")
	}

	logger := bc.logger
	if logger == nil {
		var err error
		if logger, err = newLogger(cfg.Log); err != nil {
			return nil, err
		}
	}
	if bc.denials == nil {
		bc.denials = &policy.SlogDenialHandler{Logger: logger}
	}

	var closer io.Closer = io.NopCloser(nil)
	if bc.store == nil {
		store, c, err := statestore.Open(cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		bc.store, closer = store, c
	}

	b, err := assemble(cfg, bc, logger)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	b.closer = closer
	return b, nil
}

func assemble(cfg config.Config, bc brokerConfig, logger *slog.Logger) (*Broker, error) {
	copywriter := template.NewCopywriter(nil, template.DefaultMessages().Merge(cfg.Messages))
	dupes, err := policy.ParseDuplicatePolicy(cfg.Kernel.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	unknown, err := policy.ParseUnknownTypePolicy(cfg.Provider.UnknownTypePolicy)
	if err != nil {
		return nil, err
	}

	host := runtime.NewHost(runtime.WithLogger(logger))

	k, err := kernel.New(cfg.KernelID, host.Client(cfg.KernelID),
		kernel.WithLogger(logger.With(slog.String("module", cfg.KernelID))),
		kernel.WithRenderer(bc.renderer),
		kernel.WithOfferRegistry(registry.NewRegistry(registry.WithDuplicatePolicy(dupes))),
		kernel.WithCopywriter(copywriter),
		kernel.WithDenialHandler(bc.denials),
		kernel.WithDialogTimeout(cfg.Kernel.DialogTimeout),
		kernel.WithSelectionAttempts(cfg.Kernel.SelectionAttempts),
		kernel.WithVerifyResponses(cfg.Kernel.VerifyResponses),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel: %w", err)
	}

	issuer := bc.issuer
	if issuer == nil {
		iss, err := provider.NewIssuer(
			provider.WithSigningKey(cfg.Provider.SigningKey),
			provider.WithAudience(cfg.Provider.RedeemerDID),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build grant issuer: %w", err)
		}
		logger.Info("grant issuer ready", slog.String("did", iss.DID()), slog.String("audience", iss.Audience()))
		issuer = iss
	}

	seeds := bc.seeds
	if seeds == nil && cfg.Provider.SeedDir != "" {
		loaded, err := seed.NewDirLoader(cfg.Provider.SeedDir, seed.WithPattern(cfg.Provider.SeedPattern)).Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load seed permissions: %w", err)
		}
		seeds = loaded
	}

	providerLogger := logger.With(slog.String("module", cfg.Provider.ID))
	popts := []provider.Option{
		provider.WithLogger(providerLogger),
		provider.WithRenderer(bc.renderer),
		provider.WithStore(bc.store),
		provider.WithDenialHandler(bc.denials),
		provider.WithDialogTimeout(cfg.Kernel.DialogTimeout),
		provider.WithEngineOptions(
			provider.WithEngineLogger(providerLogger),
			provider.WithIssuer(issuer),
			provider.WithEngineCopywriter(copywriter),
			provider.WithSubmitTo(entities.Address{CAIP10Address: cfg.Provider.SubmitTo}),
			provider.WithUnknownTypePolicy(unknown),
			provider.WithGrantTTL(cfg.Provider.GrantTTL),
		),
	}
	if seeds != nil {
		popts = append(popts, provider.WithSeeds(seeds...))
	}
	if bc.attenuators != nil {
		popts = append(popts, provider.WithAttenuators(bc.attenuators...))
	}
	p, err := provider.New(cfg.Provider.ID, cfg.KernelID, host.Client(cfg.Provider.ID), popts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider: %w", err)
	}

	kernelMethods, err := k.Methods()
	if err != nil {
		return nil, err
	}
	providerMethods, err := p.Methods()
	if err != nil {
		return nil, err
	}
	if err := host.Register(cfg.KernelID, kernelMethods); err != nil {
		return nil, err
	}
	if err := host.Register(cfg.Provider.ID, providerMethods); err != nil {
		return nil, err
	}

	if binder, ok := bc.renderer.(Binder); ok {
		binder.Bind(InputRouter{k, p})
	}

	return &Broker{
		config:   cfg,
		logger:   logger,
		host:     host,
		kernel:   k,
		provider: p,
	}, nil
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return log.NewLogger(
		log.WithLevel(level),
		log.WithFormat(log.Format(cfg.Format)),
		log.WithSource(cfg.Source),
	), nil
}

// Start loads the provider's state. A fresh provider installs its seed
// permissions; otherwise the held permissions are offered to the kernel again.
func (b *Broker) Start(ctx context.Context) error {
	if err := b.provider.Start(ctx); err != nil {
		return err
	}
	if len(b.provider.Permissions()) == 0 {
		return b.provider.Install(ctx)
	}
	return b.provider.Offer(ctx)
}

// Request runs one permission negotiation for a requester identified by
// origin. Malformed requests return an error; everything else is an outcome.
func (b *Broker) Request(ctx context.Context, origin string, raw []byte) (entities.Outcome, error) {
	out, err := b.host.Invoke(ctx, origin, b.config.KernelID, entities.MethodRequestPermission, raw)
	if err != nil {
		return entities.Outcome{}, err
	}
	var outcome entities.Outcome
	if err := json.Unmarshal(out, &outcome); err != nil {
		return entities.Outcome{}, fmt.Errorf("kernel returned an unreadable outcome: %w", err)
	}
	return outcome, nil
}

// Host returns the runtime, for registering further modules.
func (b *Broker) Host() *runtime.Host {
	return b.host
}

// Kernel returns the permission kernel.
func (b *Broker) Kernel() *kernel.Kernel {
	return b.kernel
}

// Provider returns the bundled provider.
func (b *Broker) Provider() *provider.Provider {
	return b.provider
}

// Close releases the state store.
func (b *Broker) Close() error {
	return b.closer.Close()
}

// InputRouter delivers user input to whichever module opened the dialog.
type InputRouter []ports.InputSink

var _ ports.InputSink = InputRouter(nil)

// Deliver implements ports.InputSink.
func (r InputRouter) Deliver(ctx context.Context, event entities.UserInputEvent) error {
	err := fmt.Errorf("%w: %s", pending.ErrUnknownDialog, event.DialogID)
	for _, sink := range r {
		err = sink.Deliver(ctx, event)
		if !stdErrors.Is(err, pending.ErrUnknownDialog) {
			return err
		}
	}
	return err
}
