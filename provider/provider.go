// Package provider is the bundled permission provider. It keeps a set of
// grantable permissions in the host store, offers them to the kernel, and
// answers the kernel's grant calls with attenuated, signed permissions.
// Only the kernel may call it.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reglet-dev/reglet-broker/application/validation"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/identity"
	"github.com/reglet-dev/reglet-broker/domain/policy"
	"github.com/reglet-dev/reglet-broker/domain/ports"
	"github.com/reglet-dev/reglet-broker/infrastructure/statestore"
	"github.com/reglet-dev/reglet-broker/kernel/pending"
	"golang.org/x/sync/errgroup"
)

var _ ports.InputSink = (*Provider)(nil)

// DefaultPermissions are installed when no seeds are configured.
func DefaultPermissions() []entities.StoredPermission {
	return []entities.StoredPermission{{
		Type:         entities.TypeDescriptor{Name: "Puddin"},
		ProposedName: "Pudding",
		Data:         map[string]any{"proof": "Oh, it's in here alright."},
	}}
}

type providerConfig struct {
	logger        *slog.Logger
	renderer      ports.DialogRenderer
	store         ports.StateStore
	engine        *Engine
	denials       ports.DenialHandler
	newID         func() string
	attenuators   []ports.Attenuator
	engineOpts    []EngineOption
	seeds         []entities.StoredPermission
	dialogTimeout time.Duration
	concurrency   int
}

func defaultProviderConfig() providerConfig {
	return providerConfig{
		logger:        slog.Default(),
		denials:       &policy.NopDenialHandler{},
		newID:         uuid.NewString,
		dialogTimeout: 5 * time.Minute,
		concurrency:   8,
	}
}

// Option configures a Provider.
type Option func(*providerConfig)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *providerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRenderer sets the dialog renderer for attenuation forms. Required.
func WithRenderer(r ports.DialogRenderer) Option {
	return func(c *providerConfig) {
		c.renderer = r
	}
}

// WithStore sets the host store holding the provider's state.
// Default is an in-memory store.
func WithStore(s ports.StateStore) Option {
	return func(c *providerConfig) {
		c.store = s
	}
}

// WithEngine replaces the attenuation engine. Attenuator and engine
// options are ignored when an engine is given.
func WithEngine(e *Engine) Option {
	return func(c *providerConfig) {
		c.engine = e
	}
}

// WithAttenuators replaces the built-in attenuators.
func WithAttenuators(atts ...ports.Attenuator) Option {
	return func(c *providerConfig) {
		c.attenuators = atts
	}
}

// WithEngineOptions configures the default engine.
func WithEngineOptions(opts ...EngineOption) Option {
	return func(c *providerConfig) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// WithSeeds sets the permissions registered by Install.
func WithSeeds(seeds ...entities.StoredPermission) Option {
	return func(c *providerConfig) {
		c.seeds = seeds
	}
}

// WithDenialHandler sets the handler told about refused grants.
func WithDenialHandler(h ports.DenialHandler) Option {
	return func(c *providerConfig) {
		if h != nil {
			c.denials = h
		}
	}
}

// WithIDGenerator replaces the uuid generator for dialog ids.
func WithIDGenerator(fn func() string) Option {
	return func(c *providerConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithDialogTimeout bounds the attenuation form. Zero disables the bound.
func WithDialogTimeout(d time.Duration) Option {
	return func(c *providerConfig) {
		c.dialogTimeout = d
	}
}

// WithConcurrency limits parallel work at start-up and install. Default is 8.
func WithConcurrency(n int) Option {
	return func(c *providerConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Provider holds grantable permissions keyed by their derived id.
type Provider struct {
	config    providerConfig
	invoker   ports.Invoker
	validator *validation.Validator
	inbox     *pending.Inbox
	perms     map[string]entities.StoredPermission
	id        string
	kernelID  string
	order     []string
	mu        sync.RWMutex
	persistMu sync.Mutex
}

// New creates a Provider identified as id that trusts kernelID and reaches
// it through invoker.
func New(id, kernelID string, invoker ports.Invoker, opts ...Option) (*Provider, error) {
	if id == "" {
		return nil, fmt.Errorf("provider id cannot be empty")
	}
	if kernelID == "" {
		return nil, fmt.Errorf("provider needs the kernel id")
	}
	if invoker == nil {
		return nil, fmt.Errorf("provider needs an invoker")
	}

	cfg := defaultProviderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.renderer == nil {
		return nil, fmt.Errorf("provider needs a dialog renderer")
	}
	if cfg.store == nil {
		cfg.store = statestore.NewMemoryStore()
	}
	if cfg.engine == nil {
		atts := cfg.attenuators
		if atts == nil {
			atts = DefaultAttenuators()
		}
		reg, err := NewAttenuatorRegistry(atts...)
		if err != nil {
			return nil, err
		}
		engineOpts := append([]EngineOption{WithEngineLogger(cfg.logger)}, cfg.engineOpts...)
		engine, err := NewEngine(reg, engineOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build attenuation engine: %w", err)
		}
		cfg.engine = engine
	}

	v, err := validation.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to build validator: %w", err)
	}

	return &Provider{
		config:    cfg,
		invoker:   invoker,
		validator: v,
		inbox:     pending.NewInbox(),
		perms:     make(map[string]entities.StoredPermission),
		id:        id,
		kernelID:  kernelID,
	}, nil
}

// ID returns the provider's module identity.
func (p *Provider) ID() string {
	return p.id
}

// Engine returns the attenuation engine.
func (p *Provider) Engine() *Engine {
	return p.config.engine
}

// Deliver implements ports.InputSink.
func (p *Provider) Deliver(ctx context.Context, event entities.UserInputEvent) error {
	return p.inbox.Deliver(ctx, event)
}

// Start loads the persisted permissions and derives their ids. A missing
// state is a fresh install; older layouts are migrated and written back.
func (p *Provider) Start(ctx context.Context) error {
	raw, found, err := p.config.store.Get(ctx, p.id)
	if err != nil {
		return fmt.Errorf("failed to read provider state from %s: %w", p.config.store.Location(), err)
	}
	if !found {
		p.config.logger.InfoContext(ctx, "no provider state, starting fresh", slog.String("provider", p.id))
		return nil
	}
	state, migrated, err := DecodeState(raw)
	if err != nil {
		return err
	}

	ids := make([]string, len(state.Permissions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.concurrency)
	for i, perm := range state.Permissions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, err := identity.DeriveID(perm)
			if err != nil {
				return fmt.Errorf("permission %q: %w", perm.ProposedName, err)
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.mu.Lock()
	for i, perm := range state.Permissions {
		p.add(ids[i], perm)
	}
	p.mu.Unlock()

	p.config.logger.InfoContext(ctx, "provider state loaded",
		slog.String("provider", p.id),
		slog.Int("permissions", len(state.Permissions)),
		slog.Bool("migrated", migrated),
	)
	if migrated {
		return p.persist(ctx)
	}
	return nil
}

// Install registers the seed permissions, or DefaultPermissions when none
// were configured, concurrently. The first failure is returned.
func (p *Provider) Install(ctx context.Context) error {
	seeds := p.config.seeds
	if seeds == nil {
		seeds = DefaultPermissions()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.concurrency)
	for _, seed := range seeds {
		g.Go(func() error {
			_, err := p.Register(gctx, seed)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to install permissions: %w", err)
	}
	return nil
}

// Offer re-offers every held permission to the kernel. The kernel's
// registry lives in memory, so a restarted broker calls this after Start.
func (p *Provider) Offer(ctx context.Context) error {
	p.mu.RLock()
	ids := append([]string(nil), p.order...)
	p.mu.RUnlock()
	for _, id := range ids {
		perm, _ := p.Permission(id)
		if err := p.offer(ctx, id, perm); err != nil {
			return err
		}
	}
	return nil
}

// Register stores perm, persists the state and offers perm to the kernel.
// It returns the permission's derived id.
func (p *Provider) Register(ctx context.Context, perm entities.StoredPermission) (string, error) {
	if err := entities.ValidateStruct(perm); err != nil {
		return "", fmt.Errorf("invalid permission %q: %w", perm.ProposedName, err)
	}
	id, err := identity.DeriveID(perm)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	added := p.add(id, perm)
	p.mu.Unlock()
	if added {
		if err := p.persist(ctx); err != nil {
			return "", err
		}
	}
	if err := p.offer(ctx, id, perm); err != nil {
		return "", err
	}
	return id, nil
}

// Permission returns the permission held under id.
func (p *Provider) Permission(id string) (entities.StoredPermission, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	perm, ok := p.perms[id]
	return perm, ok
}

// Permissions returns the held permissions in registration order.
func (p *Provider) Permissions() []entities.StoredPermission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]entities.StoredPermission, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.perms[id])
	}
	return out
}

// add must be called with mu held. It reports whether perm was new.
func (p *Provider) add(id string, perm entities.StoredPermission) bool {
	if _, exists := p.perms[id]; exists {
		return false
	}
	p.perms[id] = perm
	p.order = append(p.order, id)
	return true
}

func (p *Provider) persist(ctx context.Context) error {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	data, err := EncodeState(p.Permissions())
	if err != nil {
		return err
	}
	if err := p.config.store.Put(ctx, p.id, data); err != nil {
		return fmt.Errorf("failed to write provider state to %s: %w", p.config.store.Location(), err)
	}
	return nil
}

func (p *Provider) offer(ctx context.Context, id string, perm entities.StoredPermission) error {
	params, err := json.Marshal(entities.PermissionOffer{
		Type:         perm.Type,
		ProposedName: perm.ProposedName,
		ID:           id,
	})
	if err != nil {
		return fmt.Errorf("failed to encode offer: %w", err)
	}
	raw, err := p.invoker.Invoke(ctx, p.kernelID, entities.MethodOfferPermission, params)
	if err != nil {
		return fmt.Errorf("kernel refused offer of %q: %w", perm.ProposedName, err)
	}
	var accepted bool
	if err := json.Unmarshal(raw, &accepted); err != nil || !accepted {
		return fmt.Errorf("kernel did not accept offer of %q: %s", perm.ProposedName, raw)
	}
	p.config.logger.InfoContext(ctx, "permission offered to kernel",
		slog.String("provider", p.id),
		slog.String("type", perm.Type.Name),
		slog.String("permission", id),
	)
	return nil
}
