package provider

import (
	"github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/rpc"
)

// OriginGate admits calls from a single origin. It runs before method
// lookup, so foreign callers cannot discover which methods exist.
type OriginGate struct {
	Allowed string
}

var _ rpc.Guard = OriginGate{}

// Check implements rpc.Guard.
func (g OriginGate) Check(ctx rpc.CallContext) error {
	if g.Allowed == "" || ctx.Origin() != g.Allowed {
		return &errors.UnauthorizedOriginError{Origin: ctx.Origin(), Method: ctx.Method()}
	}
	return nil
}
