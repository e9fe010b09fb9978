package provider

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/ports"
	"github.com/storacha/go-ucanto/core/delegation"
	"github.com/storacha/go-ucanto/did"
	"github.com/storacha/go-ucanto/principal/ed25519/signer"
	"github.com/storacha/go-ucanto/ucan"
)

var _ ports.GrantIssuer = (*Issuer)(nil)

type issuerConfig struct {
	signer   ucan.Signer
	audience string
}

// IssuerOption configures an Issuer.
type IssuerOption func(*issuerConfig) error

// WithSigningKey signs with a base64 encoded raw ed25519 private key.
// Without a key the issuer generates an ephemeral one.
func WithSigningKey(encoded string) IssuerOption {
	return func(c *issuerConfig) error {
		if encoded == "" {
			return nil
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return fmt.Errorf("failed to decode signing key: %w", err)
		}
		if len(raw) != ed25519.PrivateKeySize {
			return fmt.Errorf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
		}
		s, err := signer.FromRaw(ed25519.PrivateKey(raw))
		if err != nil {
			return fmt.Errorf("failed to create ed25519 signer: %w", err)
		}
		c.signer = s
		return nil
	}
}

// WithSigner uses an existing signer.
func WithSigner(s ucan.Signer) IssuerOption {
	return func(c *issuerConfig) error {
		c.signer = s
		return nil
	}
}

// WithAudience sets the DID allowed to redeem grants. Default is the
// issuer itself.
func WithAudience(didStr string) IssuerOption {
	return func(c *issuerConfig) error {
		c.audience = didStr
		return nil
	}
}

// Issuer signs granted policies as UCAN delegations. The capability is
// {can: permission type, with: session account} and the delegation
// expires with the grant.
type Issuer struct {
	signer   ucan.Signer
	audience ucan.Principal
}

// NewIssuer creates an Issuer.
func NewIssuer(opts ...IssuerOption) (*Issuer, error) {
	var cfg issuerConfig
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.signer == nil {
		s, err := signer.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		cfg.signer = s
	}

	var audience ucan.Principal = cfg.signer
	if cfg.audience != "" {
		aud, err := did.Parse(cfg.audience)
		if err != nil {
			return nil, fmt.Errorf("failed to parse audience DID: %w", err)
		}
		audience = aud
	}
	return &Issuer{signer: cfg.signer, audience: audience}, nil
}

// DID returns the issuer's DID.
func (i *Issuer) DID() string {
	return i.signer.DID().String()
}

// Audience returns the DID grants are delegated to.
func (i *Issuer) Audience() string {
	return i.audience.DID().String()
}

// Issue implements ports.GrantIssuer. It returns the formatted delegation.
func (i *Issuer) Issue(policy entities.GrantedPolicy, expires time.Time) (string, error) {
	if policy.Type.Name == "" {
		return "", fmt.Errorf("granted policy has no type")
	}
	caps := []ucan.Capability[ucan.NoCaveats]{
		ucan.NewCapability(
			ucan.Ability(policy.Type.Name),
			ucan.Resource(policy.SessionAccount.CAIP10Address),
			ucan.NoCaveats{},
		),
	}
	exp := ucan.UTCUnixTimestamp(expires.Unix())
	dlg, err := delegation.Delegate(
		i.signer,
		i.audience,
		caps,
		delegation.WithExpiration(int(exp)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create delegation: %w", err)
	}
	encoded, err := delegation.Format(dlg)
	if err != nil {
		return "", fmt.Errorf("failed to format delegation: %w", err)
	}
	return encoded, nil
}

// Grant is the readable content of a permissions context.
type Grant struct {
	Expires  time.Time
	Issuer   string
	Audience string
	Can      string
	With     string
}

// Inspect parses a permissions context produced by Issue.
func Inspect(permissionsContext string) (Grant, error) {
	dlg, err := delegation.Parse(permissionsContext)
	if err != nil {
		return Grant{}, fmt.Errorf("failed to parse delegation: %w", err)
	}
	g := Grant{
		Issuer:   dlg.Issuer().DID().String(),
		Audience: dlg.Audience().DID().String(),
	}
	if exp := dlg.Expiration(); exp != nil {
		g.Expires = time.Unix(int64(*exp), 0).UTC()
	}
	caps := dlg.Capabilities()
	if len(caps) > 0 {
		g.Can = caps[0].Can()
		g.With = caps[0].With()
	}
	return g, nil
}
