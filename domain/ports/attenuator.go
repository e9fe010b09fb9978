package ports

import (
	"time"

	"github.com/reglet-dev/reglet-broker/domain/entities"
)

// Attenuator narrows one permission type before it is granted.
// Providers register one per type name they know how to limit.
type Attenuator interface {
	// TypeName is the permission type this attenuator handles.
	TypeName() string

	// Render returns the fields the user fills in for perm.
	Render(perm entities.StoredPermission) entities.AttenuationSpec

	// Issue turns the user's answers into the terms granted to recipient.
	// Answers are keyed by field name.
	Issue(perm entities.StoredPermission, answers map[string]any, recipient entities.Address) (entities.GrantTerms, error)
}

// GrantIssuer signs a granted policy into an opaque permissions context.
type GrantIssuer interface {
	Issue(policy entities.GrantedPolicy, expires time.Time) (string, error)
}
