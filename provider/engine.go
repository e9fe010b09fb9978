package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/reglet-dev/reglet-broker/application/template"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/domain/policy"
	"github.com/reglet-dev/reglet-broker/domain/ports"
	"github.com/reglet-dev/reglet-broker/provider/attenuators"
)

// AttenuatorRegistry maps permission type names to attenuators.
type AttenuatorRegistry struct {
	byName map[string]ports.Attenuator
	mu     sync.RWMutex
}

// NewAttenuatorRegistry creates a registry holding atts.
func NewAttenuatorRegistry(atts ...ports.Attenuator) (*AttenuatorRegistry, error) {
	r := &AttenuatorRegistry{byName: make(map[string]ports.Attenuator, len(atts))}
	for _, a := range atts {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultAttenuators returns the built-in attenuators.
func DefaultAttenuators() []ports.Attenuator {
	return []ports.Attenuator{
		attenuators.NewPuddin(),
		attenuators.NewFungibleAllowance(),
	}
}

// Register adds a. Each type name can be registered once.
func (r *AttenuatorRegistry) Register(a ports.Attenuator) error {
	if a == nil {
		return fmt.Errorf("attenuator cannot be nil")
	}
	name := a.TypeName()
	if name == "" {
		return fmt.Errorf("attenuator has no type name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("attenuator for type %q already registered", name)
	}
	r.byName[name] = a
	return nil
}

// Lookup returns the attenuator for a type name.
func (r *AttenuatorRegistry) Lookup(name string) (ports.Attenuator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[name]
	return a, ok
}

// Names returns the registered type names, sorted.
func (r *AttenuatorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type engineConfig struct {
	logger       *slog.Logger
	issuer       ports.GrantIssuer
	copywriter   *template.Copywriter
	now          func() time.Time
	submitTo     entities.Address
	unknownTypes policy.UnknownTypePolicy
	responseOpts []ResponseOption
	ttl          time.Duration
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:       slog.Default(),
		now:          time.Now,
		submitTo:     entities.Address{CAIP10Address: "eip155:1:0x0000000000000000000000000000000000000000"},
		unknownTypes: policy.UnknownTypeFailClosed,
		ttl:          7 * 24 * time.Hour,
	}
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(c *engineConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIssuer sets the signer of permission contexts.
// Default is an Issuer with an ephemeral key.
func WithIssuer(i ports.GrantIssuer) EngineOption {
	return func(c *engineConfig) {
		c.issuer = i
	}
}

// WithEngineCopywriter replaces the attenuation dialog copy.
func WithEngineCopywriter(cw *template.Copywriter) EngineOption {
	return func(c *engineConfig) {
		c.copywriter = cw
	}
}

// WithClock sets the time source for grant expiry.
func WithClock(now func() time.Time) EngineOption {
	return func(c *engineConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSubmitTo sets the address grants are redeemed at.
func WithSubmitTo(addr entities.Address) EngineOption {
	return func(c *engineConfig) {
		c.submitTo = addr
	}
}

// WithUnknownTypePolicy decides what happens to types without an attenuator.
// Default is fail-closed.
func WithUnknownTypePolicy(p policy.UnknownTypePolicy) EngineOption {
	return func(c *engineConfig) {
		c.unknownTypes = p
	}
}

// WithGrantTTL sets the lifetime of grants whose attenuator set no expiry.
func WithGrantTTL(d time.Duration) EngineOption {
	return func(c *engineConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithResponseOptions adds options to every assembled response.
func WithResponseOptions(opts ...ResponseOption) EngineOption {
	return func(c *engineConfig) {
		c.responseOpts = append(c.responseOpts, opts...)
	}
}

// Engine turns stored permissions into attenuated grants.
type Engine struct {
	config      engineConfig
	attenuators *AttenuatorRegistry
}

// NewEngine creates an Engine dispatching to the attenuators in reg.
func NewEngine(reg *AttenuatorRegistry, opts ...EngineOption) (*Engine, error) {
	if reg == nil {
		return nil, fmt.Errorf("engine needs an attenuator registry")
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.submitTo.Valid() {
		return nil, fmt.Errorf("invalid submit address %q", cfg.submitTo.CAIP10Address)
	}
	if _, err := policy.ParseUnknownTypePolicy(string(cfg.unknownTypes)); err != nil {
		return nil, err
	}
	if cfg.issuer == nil {
		iss, err := NewIssuer()
		if err != nil {
			return nil, err
		}
		cfg.issuer = iss
	}
	if cfg.copywriter == nil {
		cfg.copywriter = template.NewCopywriter(nil, nil)
	}
	if err := cfg.copywriter.Check(template.SampleData()); err != nil {
		return nil, fmt.Errorf("invalid dialog copy: %w", err)
	}
	return &Engine{config: cfg, attenuators: reg}, nil
}

// TypeNames returns the types the engine can attenuate.
func (e *Engine) TypeNames() []string {
	return e.attenuators.Names()
}

// RenderAttenuation builds the form shown before perm is granted.
// Unknown types fail with *errors.UnknownTypeError unless the policy is
// disclose, in which case the form carries a warning and no fields.
func (e *Engine) RenderAttenuation(perm entities.StoredPermission) (*entities.Dialog, error) {
	data := map[string]interface{}{"name": perm.ProposedName, "type": perm.Type.Name}
	d := &entities.Dialog{
		Kind:       entities.DialogForm,
		Heading:    e.text(template.AttenuatorHeading, data),
		Paragraphs: []string{e.text(template.AttenuatorIntro, data)},
	}

	a, ok := e.attenuators.Lookup(perm.Type.Name)
	if !ok {
		if e.config.unknownTypes != policy.UnknownTypeDisclose {
			return nil, &errors.UnknownTypeError{TypeName: perm.Type.Name}
		}
		d.Warning = e.text(template.UnattenuatedWarning, data)
		return d, nil
	}
	d.Fields = a.Render(perm).Fields
	return d, nil
}

// IssueGrant narrows perm by answers and signs the result for recipient.
// Blank answers take the field's default.
func (e *Engine) IssueGrant(perm entities.StoredPermission, answers map[string]any, recipient entities.Address) (entities.PermissionsResponse, error) {
	terms, err := e.terms(perm, answers, recipient)
	if err != nil {
		return entities.PermissionsResponse{}, err
	}

	expires := terms.ExpiresAt
	if expires.IsZero() {
		expires = e.config.now().Add(e.config.ttl)
	}
	granted := entities.GrantedPolicy{
		SessionAccount: recipient,
		Type:           perm.Type,
		Data:           terms.Data,
	}
	if granted.Data == nil {
		granted.Data = map[string]any{}
	}

	permissionsContext, err := e.config.issuer.Issue(granted, expires)
	if err != nil {
		return entities.PermissionsResponse{}, fmt.Errorf("failed to sign grant: %w", err)
	}
	return AssembleResponse(granted, e.config.submitTo, permissionsContext, e.config.responseOpts...)
}

func (e *Engine) terms(perm entities.StoredPermission, answers map[string]any, recipient entities.Address) (entities.GrantTerms, error) {
	a, ok := e.attenuators.Lookup(perm.Type.Name)
	if !ok {
		if e.config.unknownTypes != policy.UnknownTypeDisclose {
			return entities.GrantTerms{}, &errors.UnknownTypeError{TypeName: perm.Type.Name}
		}
		e.config.logger.Warn("granting unattenuated permission",
			slog.String("type", perm.Type.Name),
			slog.String("recipient", recipient.String()),
		)
		return entities.GrantTerms{Data: cloneData(perm.Data)}, nil
	}

	filled := make(map[string]any, len(answers))
	for k, v := range answers {
		filled[k] = v
	}
	for _, f := range a.Render(perm).Fields {
		if s, isString := filled[f.Name].(string); (filled[f.Name] == nil || isString && s == "") && f.Default != "" {
			filled[f.Name] = f.Default
		}
	}
	return a.Issue(perm, filled, recipient)
}

func (e *Engine) text(key string, data map[string]interface{}) string {
	s, err := e.config.copywriter.Text(key, data)
	if err != nil {
		e.config.logger.Warn("failed to render dialog copy", slog.String("key", key), slog.Any("error", err))
		return key
	}
	return s
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
