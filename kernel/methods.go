package kernel

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/rpc"
)

// Offer records a permission offered by the calling module. The caller's
// origin becomes the record's host id.
func (k *Kernel) Offer(ctx context.Context, offer entities.PermissionOffer) (bool, error) {
	origin, ok := rpc.OriginFrom(ctx)
	if !ok || origin == "" {
		return false, &errors.UnauthorizedOriginError{Method: entities.MethodOfferPermission}
	}
	if err := entities.ValidateStruct(offer); err != nil {
		return false, &errors.ValidationError{Target: "PermissionOffer", Err: err}
	}
	rec, err := k.config.offers.Offer(origin, offer)
	if err != nil {
		return false, err
	}
	k.config.logger.InfoContext(ctx, "permission offered",
		slog.String("host", rec.HostID),
		slog.String("type", rec.Type.Name),
		slog.String("permission", rec.HostPermissionID),
	)
	return true, nil
}

// Methods builds the kernel's rpc registry.
func (k *Kernel) Methods(extra ...rpc.RegistryOption) (*rpc.Registry, error) {
	var offerOpts []rpc.HandlerOption
	if d, ok := k.config.validator.(interface {
		Decoder(string) func([]byte, any) error
	}); ok {
		offerOpts = append(offerOpts, rpc.WithDecoder(d.Decoder("PermissionOffer")))
	}

	opts := []rpc.RegistryOption{
		rpc.WithMiddleware(
			rpc.PanicRecoveryMiddleware(),
			rpc.CallIDMiddleware(),
			rpc.LoggingMiddleware(k.config.logger),
		),
		rpc.WithByteHandler(entities.MethodOfferPermission,
			rpc.NewJSONHandler(k.Offer, offerOpts...)),
		rpc.WithByteHandler(entities.MethodRequestPermission,
			rpc.NewJSONHandler(func(ctx context.Context, raw json.RawMessage) (entities.Outcome, error) {
				return k.RequestPermission(ctx, raw)
			})),
	}
	return rpc.NewRegistry(append(opts, extra...)...)
}
