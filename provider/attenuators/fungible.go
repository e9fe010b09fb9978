package attenuators

import (
	"fmt"
	"strings"
	"time"

	"github.com/reglet-dev/reglet-broker/application/config"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/ports"
)

// ERC20Type is the fungible token permission type.
const ERC20Type = "erc20-token"

// DefaultExpiry is how far ahead the suggested expiration lies.
const DefaultExpiry = 7 * 24 * time.Hour

var _ ports.Attenuator = (*FungibleAllowance)(nil)

type fungibleConfig struct {
	now      func() time.Time
	typeName string
	decimals int
}

func defaultFungibleConfig() fungibleConfig {
	return fungibleConfig{
		now:      time.Now,
		typeName: ERC20Type,
		decimals: 18,
	}
}

// FungibleOption configures a FungibleAllowance.
type FungibleOption func(*fungibleConfig)

// WithClock sets the time source for the suggested and checked expiration.
func WithClock(now func() time.Time) FungibleOption {
	return func(c *fungibleConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTokenType handles another fungible token type name.
func WithTokenType(name string) FungibleOption {
	return func(c *fungibleConfig) {
		if name != "" {
			c.typeName = name
		}
	}
}

// WithDecimals sets the token precision. Default is 18.
func WithDecimals(n int) FungibleOption {
	return func(c *fungibleConfig) {
		if n >= 0 {
			c.decimals = n
		}
	}
}

// FungibleAllowance limits a token permission by allowance and expiration
// and records an optional note.
type FungibleAllowance struct {
	config fungibleConfig
}

// NewFungibleAllowance creates the attenuator for erc20-token permissions.
func NewFungibleAllowance(opts ...FungibleOption) *FungibleAllowance {
	cfg := defaultFungibleConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FungibleAllowance{config: cfg}
}

// TypeName implements ports.Attenuator.
func (f *FungibleAllowance) TypeName() string {
	return f.config.typeName
}

// Render implements ports.Attenuator.
func (f *FungibleAllowance) Render(perm entities.StoredPermission) entities.AttenuationSpec {
	decimals := f.decimals(perm)
	allowance := entities.Field{
		Name:        FieldAllowance,
		Label:       "What is the maximum allowance to grant?",
		Kind:        entities.FieldNumber,
		Placeholder: "1",
		Decimals:    decimals,
	}
	if limit, ok := ceiling(perm, FieldAllowance); ok {
		allowance.Default = floorString(limit, decimals)
	}
	expires := f.config.now().Add(DefaultExpiry).UTC().Format(time.RFC3339)

	return entities.AttenuationSpec{Fields: []entities.Field{
		allowance,
		{
			Name:        FieldExpiration,
			Label:       "Expiration time?",
			Kind:        entities.FieldDateTime,
			Placeholder: expires,
			Default:     expires,
		},
		{
			Name:        FieldFreeText,
			Label:       "Anything else? Just for the record ;)",
			Kind:        entities.FieldText,
			Placeholder: "...",
		},
	}}
}

// Issue implements ports.Attenuator. The expiration must lie in the future;
// when it is missing the engine's default lifetime applies.
func (f *FungibleAllowance) Issue(perm entities.StoredPermission, answers map[string]any, _ entities.Address) (entities.GrantTerms, error) {
	values := config.Values(answers)
	decimals := f.decimals(perm)
	amount, err := parseAmount(values, FieldAllowance, decimals)
	if err != nil {
		return entities.GrantTerms{}, err
	}
	if err := checkCeiling(perm, amount, decimals); err != nil {
		return entities.GrantTerms{}, err
	}

	terms := entities.GrantTerms{Data: map[string]any{
		FieldAllowance: amount.FloatString(decimals),
		FieldDecimals:  decimals,
	}}
	if token, ok := config.GetString(perm.Data, "token"); ok {
		terms.Data["token"] = token
	}

	if !blank(values[FieldExpiration]) {
		expires, ok := config.GetTime(values, FieldExpiration)
		if !ok {
			return entities.GrantTerms{}, invalid(FieldExpiration, fmt.Sprintf("%v is not a timestamp", values[FieldExpiration]))
		}
		if !expires.After(f.config.now()) {
			return entities.GrantTerms{}, invalid(FieldExpiration, "must be in the future")
		}
		terms.ExpiresAt = expires.UTC()
	}

	if note := strings.TrimSpace(config.GetStringDefault(values, FieldFreeText, "")); note != "" {
		terms.Data["note"] = note
	}
	return terms, nil
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// decimals is the token precision held in the permission's data, falling
// back to the configured default.
func (f *FungibleAllowance) decimals(perm entities.StoredPermission) int {
	n := config.GetIntDefault(perm.Data, FieldDecimals, f.config.decimals)
	if n < 0 || n > 36 {
		return f.config.decimals
	}
	return n
}
