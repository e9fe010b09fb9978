package kernel

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/rpc"
)

// ErrProviderDeclined is the delegation cause when a provider answers false.
var ErrProviderDeclined = stdErrors.New("provider declined the grant")

// negotiation is the state of one permission request.
type negotiation struct {
	logger     *slog.Logger
	id         string
	origin     string
	state      entities.NegotiationState
	request    entities.RequestedPermission
	candidates []entities.PermissionRecord
	selected   entities.PermissionRecord
}

func (n *negotiation) transition(to entities.NegotiationState) error {
	if !n.state.CanTransition(to) {
		return &errors.StateError{From: n.state, To: to}
	}
	n.logger.Debug("negotiation transition",
		slog.String("from", string(n.state)),
		slog.String("to", string(to)),
	)
	n.state = to
	return nil
}

// RequestPermission runs one negotiation for the raw RequestedPermission
// params. Invalid params are returned as *errors.ValidationError; every
// other failure yields a declined outcome.
func (k *Kernel) RequestPermission(ctx context.Context, raw json.RawMessage) (entities.Outcome, error) {
	origin, _ := rpc.OriginFrom(ctx)
	n := &negotiation{
		id:     k.config.newID(),
		origin: origin,
		state:  entities.StateReceived,
	}
	n.logger = k.config.logger.With(
		slog.String("negotiation", n.id),
		slog.String("origin", origin),
	)

	if err := k.config.validator.Decode("RequestedPermission", raw, &n.request); err != nil {
		if terr := n.transition(entities.StateFailed); terr != nil {
			return entities.Outcome{}, terr
		}
		n.logger.Warn("rejected malformed permission request", slog.Any("error", err))
		return entities.Outcome{}, err
	}
	if err := n.transition(entities.StateValidated); err != nil {
		return entities.Outcome{}, err
	}
	n.logger = n.logger.With(slog.String("type", n.request.Type.Name))

	n.candidates = k.config.offers.Match(n.request.Type)
	if err := n.transition(entities.StateMatched); err != nil {
		return entities.Outcome{}, err
	}

	if len(n.candidates) == 0 {
		return k.noMatch(ctx, n)
	}

	if err := n.transition(entities.StateAwaitingSelection); err != nil {
		return entities.Outcome{}, err
	}
	rec, err := k.awaitSelection(ctx, n)
	if err != nil {
		return k.decline(n, err)
	}
	n.selected = rec
	if err := n.transition(entities.StateSelected); err != nil {
		return entities.Outcome{}, err
	}

	return k.delegate(ctx, n)
}

func (k *Kernel) noMatch(ctx context.Context, n *negotiation) (entities.Outcome, error) {
	if err := n.transition(entities.StateNoMatchEnd); err != nil {
		return entities.Outcome{}, err
	}
	if _, _, err := k.prompt(ctx, k.noMatchDialog(n)); err != nil {
		n.logger.Debug("no-match dialog closed", slog.Any("error", err))
	}
	reason := &errors.NoMatchError{TypeName: n.request.Type.Name}
	k.report(n, reason)
	return entities.Declined(reason), nil
}

// awaitSelection shows the inventory until a valid choice is made or the
// attempts are used up. It never leaves AWAITING_SELECTION itself.
func (k *Kernel) awaitSelection(ctx context.Context, n *negotiation) (entities.PermissionRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= k.config.selectionAttempts; attempt++ {
		dialog := k.selectionDialog(n, attempt, lastErr)
		values, result, err := k.prompt(ctx, dialog)
		if err != nil {
			return entities.PermissionRecord{}, err
		}
		if !result.Confirmed {
			return entities.PermissionRecord{}, &errors.SelectionError{Candidates: len(n.candidates), Dismissed: true}
		}

		input := values[entities.SelectionField]
		if idx, ok := parseSelection(input, len(n.candidates)); ok {
			return n.candidates[idx], nil
		}
		lastErr = &errors.SelectionError{Input: input, Candidates: len(n.candidates)}
		n.logger.Debug("invalid selection", slog.String("input", input), slog.Int("attempt", attempt))
	}
	return entities.PermissionRecord{}, lastErr
}

// parseSelection maps 1-based user input onto a candidate index.
func parseSelection(input string, candidates int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > candidates {
		return 0, false
	}
	return n - 1, true
}

func (k *Kernel) delegate(ctx context.Context, n *negotiation) (entities.Outcome, error) {
	if err := n.transition(entities.StateDelegating); err != nil {
		return entities.Outcome{}, err
	}
	rec := n.selected
	params, err := json.Marshal(entities.GrantParams{
		PermissionID:   rec.HostPermissionID,
		SessionAccount: n.request.SessionAccount,
	})
	if err != nil {
		return k.decline(n, k.delegationError(rec, err))
	}

	if err := n.transition(entities.StateAwaitingGrant); err != nil {
		return entities.Outcome{}, err
	}
	n.logger.Info("delegating grant",
		slog.String("provider", rec.HostID),
		slog.String("permission", rec.HostPermissionID),
	)
	raw, err := k.invoker.Invoke(ctx, rec.HostID, entities.MethodGrantAttenuatedPermission, params)
	if err != nil {
		return k.decline(n, k.delegationError(rec, err))
	}

	var peek entities.Outcome
	if err := json.Unmarshal(raw, &peek); err != nil {
		return k.decline(n, k.delegationError(rec, err))
	}
	if !peek.IsGranted() {
		return k.decline(n, k.delegationError(rec, ErrProviderDeclined))
	}
	if k.config.verifyResponses {
		var resp entities.PermissionsResponse
		if err := k.config.validator.Decode("PermissionsResponse", raw, &resp); err != nil {
			return k.decline(n, k.delegationError(rec, err))
		}
	}

	if err := n.transition(entities.StateResponded); err != nil {
		return entities.Outcome{}, err
	}
	n.logger.Info("permission granted", slog.String("provider", rec.HostID))
	return entities.Granted(raw), nil
}

func (k *Kernel) delegationError(rec entities.PermissionRecord, err error) error {
	return &errors.DelegationError{
		HostID: rec.HostID,
		Method: entities.MethodGrantAttenuatedPermission,
		Err:    err,
	}
}

// decline ends the negotiation without a grant. State errors are bugs
// and are returned instead.
func (k *Kernel) decline(n *negotiation, reason error) (entities.Outcome, error) {
	if err := n.transition(entities.StateDeclined); err != nil {
		return entities.Outcome{}, err
	}
	k.report(n, reason)
	return entities.Declined(reason), nil
}

func (k *Kernel) report(n *negotiation, reason error) {
	kind := "internal"
	if d := errors.ToErrorDetail(reason); d != nil {
		kind = d.Type
	}
	if stdErrors.Is(reason, context.Canceled) || stdErrors.Is(reason, context.DeadlineExceeded) {
		kind = "cancelled"
	}
	n.logger.Info("negotiation declined",
		slog.String("kind", kind),
		slog.String("state", string(n.state)),
		slog.Any("reason", reason),
	)
	k.config.denials.OnDenial(kind, n.request, reason.Error())
}
