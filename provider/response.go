package provider

import (
	"fmt"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
)

type responseConfig struct {
	initCode   string
	upgradeOps []entities.UpgradeOp
}

// ResponseOption adds optional parts to an assembled response.
type ResponseOption func(*responseConfig)

// WithInitCode sets the account deployment code sent with the grant.
func WithInitCode(code string) ResponseOption {
	return func(c *responseConfig) {
		c.initCode = code
	}
}

// WithUpgradeOps appends account upgrade steps.
func WithUpgradeOps(ops ...entities.UpgradeOp) ResponseOption {
	return func(c *responseConfig) {
		c.upgradeOps = append(c.upgradeOps, ops...)
	}
}

// AssembleResponse builds the envelope returned for a grant. Both
// addresses must be well formed and the context must be non-empty.
func AssembleResponse(policy entities.GrantedPolicy, submitTo entities.Address, permissionsContext string, opts ...ResponseOption) (entities.PermissionsResponse, error) {
	var cfg responseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var issues []entities.ValidationError
	if !policy.SessionAccount.Valid() {
		issues = append(issues, entities.ValidationError{
			Field:   "grantedPolicy.sessionAccount",
			Message: fmt.Sprintf("%q is not a chain-qualified account", policy.SessionAccount.CAIP10Address),
		})
	}
	if !submitTo.Valid() {
		issues = append(issues, entities.ValidationError{
			Field:   "submitToAddress",
			Message: fmt.Sprintf("%q is not a chain-qualified account", submitTo.CAIP10Address),
		})
	}
	if permissionsContext == "" {
		issues = append(issues, entities.ValidationError{Field: "permissionsContext", Message: "is empty"})
	}
	for i, op := range cfg.upgradeOps {
		if !op.Target.Valid() || op.Operation == "" {
			issues = append(issues, entities.ValidationError{
				Field:   fmt.Sprintf("upgradeOps[%d]", i),
				Message: "needs a chain-qualified target and an operation",
			})
		}
	}
	if len(issues) > 0 {
		return entities.PermissionsResponse{}, &errors.ValidationError{Target: "PermissionsResponse", Issues: issues}
	}

	if policy.Data == nil {
		policy.Data = map[string]any{}
	}
	return entities.PermissionsResponse{
		GrantedPolicy:      policy,
		SubmitToAddress:    submitTo,
		PermissionsContext: permissionsContext,
		InitCode:           cfg.initCode,
		UpgradeOps:         cfg.upgradeOps,
	}, nil
}
