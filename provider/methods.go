package provider

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/reglet-broker/application/config"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/kernel/pending"
	"github.com/reglet-dev/reglet-broker/rpc"
)

var (
	// ErrUnknownPermission is the decline reason for ids the provider does not hold.
	ErrUnknownPermission = stdErrors.New("unknown permission id")

	// ErrFormDismissed is the decline reason when the user closes the attenuation form.
	ErrFormDismissed = stdErrors.New("attenuation form dismissed")
)

// Grant answers the kernel's delegation: it shows the attenuation form for
// the permission and returns the signed, narrowed grant. Unknown ids,
// unknown types, dismissed forms and unusable answers decline.
func (p *Provider) Grant(ctx context.Context, params entities.GrantParams) (entities.Outcome, error) {
	logger := p.config.logger.With(
		slog.String("provider", p.id),
		slog.String("permission", params.PermissionID),
	)
	perm, ok := p.Permission(params.PermissionID)
	if !ok {
		return p.decline(logger, "unknown_permission", params, ErrUnknownPermission), nil
	}

	dialog, err := p.config.engine.RenderAttenuation(perm)
	if err != nil {
		return p.decline(logger, "", params, err), nil
	}
	values, result, err := pending.Asker{
		Inbox:    p.inbox,
		Renderer: p.config.renderer,
		NewID:    p.config.newID,
		Timeout:  p.config.dialogTimeout,
	}.Ask(ctx, dialog)
	if err != nil {
		return p.decline(logger, "", params, err), nil
	}
	if !result.Confirmed {
		return p.decline(logger, "dismissed", params, ErrFormDismissed), nil
	}

	resp, err := p.config.engine.IssueGrant(perm, config.FromStrings(values), params.SessionAccount)
	if err != nil {
		return p.decline(logger, "", params, err), nil
	}
	logger.InfoContext(ctx, "permission granted",
		slog.String("type", perm.Type.Name),
		slog.String("recipient", params.SessionAccount.String()),
	)
	return entities.GrantedResponse(resp)
}

func (p *Provider) decline(logger *slog.Logger, kind string, params entities.GrantParams, reason error) entities.Outcome {
	if kind == "" {
		kind = "internal"
		if d := errors.ToErrorDetail(reason); d != nil {
			kind = d.Type
		}
		if stdErrors.Is(reason, context.Canceled) || stdErrors.Is(reason, context.DeadlineExceeded) {
			kind = "cancelled"
		}
	}
	logger.Info("grant declined", slog.String("kind", kind), slog.Any("reason", reason))
	p.config.denials.OnDenial(kind, params, reason.Error())
	return entities.Declined(reason)
}

// ListPermissionTypes returns the permission types the provider can attenuate.
func (p *Provider) ListPermissionTypes(_ context.Context, _ json.RawMessage) ([]string, error) {
	return p.config.engine.TypeNames(), nil
}

// ValidatePermission reports whether perm is a well-formed stored permission.
func (p *Provider) ValidatePermission(_ context.Context, perm entities.StoredPermission) (bool, error) {
	return entities.ValidateStruct(perm) == nil, nil
}

// RevokeParams names a previously granted permission.
type RevokeParams struct {
	PermissionID string `json:"permissionId"`
}

// RenewParams extends a previously granted permission by Extension seconds.
type RenewParams struct {
	PermissionID string `json:"permissionId"`
	Extension    int64  `json:"extension"`
}

// RevokePermission is not supported yet.
func (p *Provider) RevokePermission(_ context.Context, _ RevokeParams) (bool, error) {
	return false, &errors.NotImplementedError{Operation: entities.MethodRevokePermission}
}

// RenewPermission is not supported yet.
func (p *Provider) RenewPermission(_ context.Context, _ RenewParams) (bool, error) {
	return false, &errors.NotImplementedError{Operation: entities.MethodRenewPermission}
}

// Methods builds the provider's rpc registry. Every call must come from
// the kernel; account methods such as eth_accounts are not registered and
// fail as not found.
func (p *Provider) Methods(extra ...rpc.RegistryOption) (*rpc.Registry, error) {
	opts := []rpc.RegistryOption{
		rpc.WithGuard(OriginGate{Allowed: p.kernelID}),
		rpc.WithMiddleware(
			rpc.PanicRecoveryMiddleware(),
			rpc.CallIDMiddleware(),
			rpc.LoggingMiddleware(p.config.logger),
		),
		rpc.WithByteHandler(entities.MethodGrantAttenuatedPermission,
			rpc.NewJSONHandler(p.Grant, rpc.WithDecoder(p.validator.Decoder("GrantParams")))),
		rpc.WithByteHandler(entities.MethodListPermissionTypes,
			rpc.NewJSONHandler(p.ListPermissionTypes, rpc.WithDecoder(optionalParams))),
		rpc.WithByteHandler(entities.MethodValidatePermission,
			rpc.NewJSONHandler(p.ValidatePermission)),
		rpc.WithByteHandler(entities.MethodRevokePermission,
			rpc.NewJSONHandler(p.RevokePermission)),
		rpc.WithByteHandler(entities.MethodRenewPermission,
			rpc.NewJSONHandler(p.RenewPermission)),
	}
	return rpc.NewRegistry(append(opts, extra...)...)
}

// optionalParams accepts an empty payload for methods without params.
func optionalParams(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}
