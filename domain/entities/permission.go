package entities

import (
	"regexp"

	"github.com/invopop/jsonschema"
)

// CAIP10Pattern is the accepted grammar for chain-qualified account ids:
// namespace[:reference]:address. The reference segment is optional so the
// legacy two-part form ("chain:0xabc") keeps working.
const CAIP10Pattern = `^[-a-z0-9]{3,8}(:[-_a-zA-Z0-9]{1,32})?:[-.%a-zA-Z0-9]{1,128}$`

var caip10Re = regexp.MustCompile(CAIP10Pattern)

// IsCAIP10 reports whether s is a well-formed chain-qualified account id.
func IsCAIP10(s string) bool {
	return caip10Re.MatchString(s)
}

// Address is a chain-qualified account identifier.
type Address struct {
	CAIP10Address string `json:"caip10Address" yaml:"caip10Address" validate:"required,caip10"`
}

// Valid reports whether the address is well formed.
func (a Address) Valid() bool {
	return IsCAIP10(a.CAIP10Address)
}

// String returns the raw account id.
func (a Address) String() string {
	return a.CAIP10Address
}

// JSONSchemaExtend adds the account id pattern to the reflected schema.
func (Address) JSONSchemaExtend(s *jsonschema.Schema) {
	if s.Properties == nil {
		return
	}
	if prop, ok := s.Properties.Get("caip10Address"); ok && prop != nil {
		prop.Pattern = CAIP10Pattern
	}
}

// TypeDescriptor names a permission category. Name is the sole matching key.
type TypeDescriptor struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// PermissionOffer is what a provider registers with the kernel.
// ID is the provider-local handle that resolves to a grantable permission.
type PermissionOffer struct {
	Type         TypeDescriptor `json:"type" yaml:"type" validate:"required"`
	ProposedName string         `json:"proposedName" yaml:"proposedName" validate:"required"`
	ID           string         `json:"id" yaml:"id" validate:"required"`
}

// PermissionRecord is the kernel's view of an offer. HostID is the identity
// of the offering provider; HostPermissionID is the offer's ID.
type PermissionRecord struct {
	HostID           string         `json:"hostId" yaml:"hostId"`
	Type             TypeDescriptor `json:"type" yaml:"type"`
	HostPermissionID string         `json:"hostPermissionId" yaml:"hostPermissionId"`
	ProposedName     string         `json:"proposedName" yaml:"proposedName"`
}

// RecordKey is the identity-relevant part of a record used for duplicate detection.
type RecordKey struct {
	HostID           string `json:"hostId" cbor:"hostId"`
	HostPermissionID string `json:"hostPermissionId" cbor:"hostPermissionId"`
}

// Key returns the duplicate-detection key of the record.
func (r PermissionRecord) Key() RecordKey {
	return RecordKey{HostID: r.HostID, HostPermissionID: r.HostPermissionID}
}

// RequestedPermission is a requester's ask, scoped to one permission.
type RequestedPermission struct {
	SessionAccount Address        `json:"sessionAccount" yaml:"sessionAccount" validate:"required"`
	Type           TypeDescriptor `json:"type" yaml:"type" validate:"required"`
	Justification  string         `json:"justification,omitempty" yaml:"justification,omitempty"`
	Data           map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Required       *bool          `json:"required,omitempty" yaml:"required,omitempty"`
}

// GrantedPolicy is the narrowed permission as issued by a provider.
// Data is interpreted only by the issuing provider.
type GrantedPolicy struct {
	SessionAccount Address        `json:"sessionAccount" yaml:"sessionAccount" validate:"required"`
	Type           TypeDescriptor `json:"type" yaml:"type" validate:"required"`
	Data           map[string]any `json:"data" yaml:"data"`
}

// UpgradeOp is an optional account upgrade step accompanying a grant.
type UpgradeOp struct {
	Target    Address `json:"target" yaml:"target" validate:"required"`
	Operation string  `json:"operation" yaml:"operation" validate:"required"`
}

// PermissionsResponse is the envelope returned to the requester on a grant.
type PermissionsResponse struct {
	GrantedPolicy      GrantedPolicy `json:"grantedPolicy" yaml:"grantedPolicy" validate:"required"`
	SubmitToAddress    Address       `json:"submitToAddress" yaml:"submitToAddress" validate:"required"`
	PermissionsContext string        `json:"permissionsContext" yaml:"permissionsContext" validate:"required"`
	InitCode           string        `json:"initCode,omitempty" yaml:"initCode,omitempty"`
	UpgradeOps         []UpgradeOp   `json:"upgradeOps,omitempty" yaml:"upgradeOps,omitempty" validate:"omitempty,dive"`
}

// GrantParams is the kernel's delegation request to a provider.
type GrantParams struct {
	PermissionID   string  `json:"permissionId" yaml:"permissionId" validate:"required"`
	SessionAccount Address `json:"sessionAccount" yaml:"sessionAccount" validate:"required"`
}
