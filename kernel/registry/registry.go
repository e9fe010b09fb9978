// Package registry stores the permissions providers offer to the kernel.
//
// The store is append-only and keeps registration order. Matching is
// delegated to a policy.MatchPolicy so richer type rules can be plugged in
// without changing callers.
package registry

import (
	"fmt"
	"sync"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/identity"
	"github.com/reglet-dev/reglet-broker/domain/policy"
	"github.com/reglet-dev/reglet-broker/domain/ports"
)

var _ ports.OfferRegistry = (*Registry)(nil)

type registryConfig struct {
	match      policy.MatchPolicy
	duplicates policy.DuplicatePolicy
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		match:      policy.ExactNamePolicy{},
		duplicates: policy.DuplicateAllow,
	}
}

// RegistryOption configures a Registry instance.
type RegistryOption func(*registryConfig)

// WithMatchPolicy replaces exact name matching.
func WithMatchPolicy(p policy.MatchPolicy) RegistryOption {
	return func(c *registryConfig) {
		if p != nil {
			c.match = p
		}
	}
}

// WithDuplicatePolicy sets how repeated (hostId, hostPermissionId) offers are handled.
// Default is DuplicateAllow.
func WithDuplicatePolicy(p policy.DuplicatePolicy) RegistryOption {
	return func(c *registryConfig) {
		c.duplicates = p
	}
}

// Registry is the kernel's offer store.
type Registry struct {
	config  registryConfig
	mu      sync.RWMutex
	records []entities.PermissionRecord
	keys    map[string]struct{} // derived ids of RecordKey, kept only when rejecting duplicates
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{
		config: cfg,
		keys:   make(map[string]struct{}),
	}
}

// Offer appends a record built from the caller's identity and the offer.
func (r *Registry) Offer(hostID string, offer entities.PermissionOffer) (entities.PermissionRecord, error) {
	if hostID == "" {
		return entities.PermissionRecord{}, fmt.Errorf("offer has no host identity")
	}
	rec := entities.PermissionRecord{
		HostID:           hostID,
		Type:             offer.Type,
		HostPermissionID: offer.ID,
		ProposedName:     offer.ProposedName,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.duplicates == policy.DuplicateReject {
		key, err := identity.DeriveID(rec.Key())
		if err != nil {
			return entities.PermissionRecord{}, err
		}
		if _, exists := r.keys[key]; exists {
			return entities.PermissionRecord{}, &DuplicateOfferError{HostID: hostID, HostPermissionID: offer.ID}
		}
		r.keys[key] = struct{}{}
	}

	r.records = append(r.records, rec)
	return rec, nil
}

// Match returns copies of every matching record in registration order.
func (r *Registry) Match(t entities.TypeDescriptor) []entities.PermissionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []entities.PermissionRecord
	for _, rec := range r.records {
		if r.config.match.Matches(rec.Type, t) {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of stored records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Records returns a copy of every stored record.
func (r *Registry) Records() []entities.PermissionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entities.PermissionRecord, len(r.records))
	copy(out, r.records)
	return out
}

// DuplicateOfferError is returned under DuplicateReject.
type DuplicateOfferError struct {
	HostID           string
	HostPermissionID string
}

func (e *DuplicateOfferError) Error() string {
	return fmt.Sprintf("permission %q from %s is already offered", e.HostPermissionID, e.HostID)
}
