package entities

// StoredPermission is a grantable permission held by a provider.
// Its identity is derived from its content, never stored alongside it.
type StoredPermission struct {
	Type         TypeDescriptor `json:"type" yaml:"type" cbor:"type" validate:"required"`
	ProposedName string         `json:"proposedName" yaml:"proposedName" cbor:"proposedName" validate:"required"`
	Data         map[string]any `json:"data,omitempty" yaml:"data,omitempty" cbor:"data,omitempty"`
}
