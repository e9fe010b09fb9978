package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	brokerErrors "github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/reglet-dev/reglet-broker/domain/identity"
	"github.com/reglet-dev/reglet-broker/domain/policy"
	"github.com/reglet-dev/reglet-broker/infrastructure/statestore"
	"github.com/reglet-dev/reglet-broker/internal/testutil"
	"github.com/reglet-dev/reglet-broker/log"
	"github.com/reglet-dev/reglet-broker/provider/attenuators"
	"github.com/reglet-dev/reglet-broker/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	providerID = "npm:permission-provider"
	kernelID   = "npm:permissions-kernel"
)

type providerHarness struct {
	provider *Provider
	invoker  *testutil.MockInvoker
	renderer *testutil.ScriptedRenderer
	store    *statestore.MemoryStore
	denials  *testutil.RecordingDenialHandler
	issuer   *stubIssuer
	registry *rpc.Registry
}

func newProviderHarness(t *testing.T, answers []testutil.Answer, opts ...Option) *providerHarness {
	t.Helper()
	h := &providerHarness{
		invoker:  &testutil.MockInvoker{},
		renderer: testutil.NewScriptedRenderer(answers...),
		store:    statestore.NewMemoryStore(),
		denials:  &testutil.RecordingDenialHandler{},
		issuer:   &stubIssuer{},
	}
	base := []Option{
		WithLogger(log.Discard()),
		WithRenderer(h.renderer),
		WithStore(h.store),
		WithDenialHandler(h.denials),
		WithDialogTimeout(time.Second),
		WithEngineOptions(
			WithIssuer(h.issuer),
			WithSubmitTo(entities.Address{CAIP10Address: "chain:0xentry"}),
		),
	}
	p, err := New(providerID, kernelID, h.invoker, append(base, opts...)...)
	require.NoError(t, err)
	h.renderer.Bind(p)
	h.provider = p

	reg, err := p.Methods()
	require.NoError(t, err)
	h.registry = reg
	return h
}

func (h *providerHarness) acceptOffers() {
	h.invoker.On("Invoke", mock.Anything, kernelID, entities.MethodOfferPermission, mock.Anything).
		Return([]byte("true"), nil)
}

func (h *providerHarness) call(t *testing.T, origin, method string, params any) ([]byte, error) {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return h.registry.Invoke(rpc.WithOrigin(context.Background(), origin), method, raw)
}

func TestNew_Validation(t *testing.T) {
	inv := &testutil.MockInvoker{}
	r := testutil.NewScriptedRenderer()

	_, err := New("", kernelID, inv, WithRenderer(r))
	assert.Error(t, err)
	_, err = New(providerID, "", inv, WithRenderer(r))
	assert.Error(t, err)
	_, err = New(providerID, kernelID, nil, WithRenderer(r))
	assert.Error(t, err)
	_, err = New(providerID, kernelID, inv)
	assert.Error(t, err, "renderer is required")
	_, err = New(providerID, kernelID, inv, WithRenderer(r), WithAttenuators(attenuators.NewPuddin(), attenuators.NewPuddin()))
	assert.Error(t, err, "duplicate attenuators")
}

func TestOriginGate_RejectsForeignOriginsForEveryMethod(t *testing.T) {
	h := newProviderHarness(t, nil)

	methods := append([]string{
		entities.MethodGrantAttenuatedPermission,
		entities.MethodListPermissionTypes,
		entities.MethodValidatePermission,
		entities.MethodRevokePermission,
		entities.MethodRenewPermission,
		"bogus_method",
	}, entities.AccountMethods...)

	for _, origin := range []string{"", "https://evil.example", "npm:other-snap"} {
		for _, method := range methods {
			t.Run(origin+"/"+method, func(t *testing.T) {
				// Garbage params must not matter: the gate runs first.
				_, err := h.registry.Invoke(rpc.WithOrigin(context.Background(), origin), method, []byte("{garbage"))
				var uoe *brokerErrors.UnauthorizedOriginError
				require.True(t, errors.As(err, &uoe), "got %v", err)
				assert.Equal(t, origin, uoe.Origin)
				assert.Equal(t, method, uoe.Method)

				var resp *rpc.ErrorResponse
				require.True(t, errors.As(err, &resp))
				assert.Equal(t, 403, resp.Code)
			})
		}
	}
	assert.Empty(t, h.renderer.Shown())
	h.invoker.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMethods_AccountMethodsNotFound(t *testing.T) {
	h := newProviderHarness(t, nil)

	for _, method := range append([]string{"wallet_somethingElse"}, entities.AccountMethods...) {
		t.Run(method, func(t *testing.T) {
			_, err := h.call(t, kernelID, method, []any{})
			var resp *rpc.ErrorResponse
			require.True(t, errors.As(err, &resp))
			assert.Equal(t, "NOT_FOUND", resp.Kind)
			assert.Equal(t, "Method not found: "+method, resp.Message)
		})
	}
}

func TestProvider_InstallOffersDefaults(t *testing.T) {
	h := newProviderHarness(t, nil)
	h.acceptOffers()

	require.NoError(t, h.provider.Start(context.Background()))
	require.NoError(t, h.provider.Install(context.Background()))

	perms := h.provider.Permissions()
	require.Len(t, perms, 1)
	assert.Equal(t, "Pudding", perms[0].ProposedName)

	wantID := identity.MustDeriveID(perms[0])
	var offer entities.PermissionOffer
	params := h.invoker.Calls[0].Arguments.Get(3).([]byte)
	require.NoError(t, json.Unmarshal(params, &offer))
	assert.Equal(t, wantID, offer.ID)
	assert.Equal(t, "Puddin", offer.Type.Name)

	raw, found, err := h.store.Get(context.Background(), providerID)
	require.NoError(t, err)
	require.True(t, found)
	state, migrated, err := DecodeState(raw)
	require.NoError(t, err)
	assert.False(t, migrated)
	assert.Len(t, state.Permissions, 1)
}

func TestProvider_InstallSeedsConcurrently(t *testing.T) {
	seeds := []entities.StoredPermission{stash(), pudding(), {
		Type:         entities.TypeDescriptor{Name: attenuators.ERC20Type},
		ProposedName: "USDC",
	}}
	h := newProviderHarness(t, nil, WithSeeds(seeds...), WithConcurrency(2))
	h.acceptOffers()

	require.NoError(t, h.provider.Install(context.Background()))
	assert.Len(t, h.provider.Permissions(), 3)
	h.invoker.AssertNumberOfCalls(t, "Invoke", 3)

	// Registering again is idempotent by content.
	require.NoError(t, h.provider.Install(context.Background()))
	assert.Len(t, h.provider.Permissions(), 3)
}

func TestProvider_InstallFailsWhenKernelRefuses(t *testing.T) {
	h := newProviderHarness(t, nil)
	h.invoker.On("Invoke", mock.Anything, kernelID, entities.MethodOfferPermission, mock.Anything).
		Return(nil, errors.New("kernel unavailable"))

	err := h.provider.Install(context.Background())
	assert.ErrorContains(t, err, "kernel unavailable")
}

func TestProvider_StartRederivesIDs(t *testing.T) {
	store := statestore.NewMemoryStore()
	raw, err := EncodeState([]entities.StoredPermission{stash()})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), providerID, raw))

	h := newProviderHarness(t, nil, WithStore(store))
	require.NoError(t, h.provider.Start(context.Background()))

	perm, ok := h.provider.Permission(identity.MustDeriveID(stash()))
	require.True(t, ok)
	assert.Equal(t, "Stash", perm.ProposedName)
}

func TestProvider_StartMigratesLegacyState(t *testing.T) {
	store := statestore.NewMemoryStore()
	legacy := `"{\"permissions\":[{\"type\":{\"name\":\"Puddin\"},\"proposedName\":\"Pudding\"}]}"`
	require.NoError(t, store.Put(context.Background(), providerID, []byte(legacy)))

	h := newProviderHarness(t, nil, WithStore(store))
	require.NoError(t, h.provider.Start(context.Background()))
	assert.Len(t, h.provider.Permissions(), 1)

	raw, _, err := store.Get(context.Background(), providerID)
	require.NoError(t, err)
	_, migrated, err := DecodeState(raw)
	require.NoError(t, err)
	assert.False(t, migrated, "state is written back at the current version")
}

func TestProvider_OfferReoffersHeldPermissions(t *testing.T) {
	store := statestore.NewMemoryStore()
	raw, err := EncodeState([]entities.StoredPermission{stash(), pudding()})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), providerID, raw))

	h := newProviderHarness(t, nil, WithStore(store))
	h.acceptOffers()
	require.NoError(t, h.provider.Start(context.Background()))
	require.NoError(t, h.provider.Offer(context.Background()))
	h.invoker.AssertNumberOfCalls(t, "Invoke", 2)
}

func grantParams(id string) entities.GrantParams {
	return entities.GrantParams{
		PermissionID:   id,
		SessionAccount: entities.Address{CAIP10Address: "chain:0xabc"},
	}
}

func TestGrant_AttenuatesAndSigns(t *testing.T) {
	h := newProviderHarness(t, []testutil.Answer{
		testutil.Confirm(map[string]string{attenuators.FieldAllowance: "12.5"}),
	})
	h.acceptOffers()
	id, err := h.provider.Register(context.Background(), pudding())
	require.NoError(t, err)

	raw, err := h.call(t, kernelID, entities.MethodGrantAttenuatedPermission, grantParams(id))
	require.NoError(t, err)

	var resp entities.PermissionsResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "chain:0xabc", resp.GrantedPolicy.SessionAccount.CAIP10Address)
	assert.Equal(t, "Puddin", resp.GrantedPolicy.Type.Name)
	assert.Equal(t, "12.50", resp.GrantedPolicy.Data[attenuators.FieldAllowance])
	assert.Equal(t, "0xsigned", resp.PermissionsContext)
	assert.Equal(t, "chain:0xentry", resp.SubmitToAddress.CAIP10Address)

	shown := h.renderer.Shown()
	require.Len(t, shown, 1)
	assert.Equal(t, entities.DialogForm, shown[0].Kind)
	assert.Equal(t, "Grant Pudding", shown[0].Heading)
	assert.Empty(t, h.denials.Denials())
}

func TestGrant_Declines(t *testing.T) {
	tests := []struct {
		name    string
		perm    entities.StoredPermission
		answers []testutil.Answer
		opts    []Option
		id      string
		kind    string
		shown   int
	}{
		{
			name: "unknown permission id",
			perm: pudding(),
			id:   "not-a-held-id",
			kind: "unknown_permission",
		},
		{
			name: "unknown type fails closed",
			perm: stash(),
			kind: "unknown_type",
		},
		{
			name:    "form dismissed",
			perm:    pudding(),
			answers: []testutil.Answer{testutil.Dismiss()},
			kind:    "dismissed",
			shown:   1,
		},
		{
			name:    "unusable answer",
			perm:    pudding(),
			answers: []testutil.Answer{testutil.Confirm(map[string]string{attenuators.FieldAllowance: "lots"})},
			kind:    "validation",
			shown:   1,
		},
		{
			name:    "form times out",
			perm:    pudding(),
			answers: []testutil.Answer{{Block: true}},
			opts:    []Option{WithDialogTimeout(10 * time.Millisecond)},
			kind:    "timeout",
			shown:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newProviderHarness(t, tt.answers, tt.opts...)
			h.acceptOffers()
			id, err := h.provider.Register(context.Background(), tt.perm)
			require.NoError(t, err)
			if tt.id != "" {
				id = tt.id
			}

			outcome, err := h.provider.Grant(context.Background(), grantParams(id))
			require.NoError(t, err)
			testutil.AssertDeclined(t, outcome)
			assert.Equal(t, []string{tt.kind}, h.denials.Kinds())
			assert.Len(t, h.renderer.Shown(), tt.shown)
			assert.Zero(t, h.issuer.calls)

			raw, err := h.call(t, kernelID, entities.MethodGrantAttenuatedPermission, grantParams("still-unknown"))
			require.NoError(t, err)
			assert.Equal(t, "false", string(raw), "declines travel as false")
		})
	}
}

func TestGrant_DiscloseUnknownType(t *testing.T) {
	h := newProviderHarness(t, []testutil.Answer{testutil.Confirm(nil)},
		WithEngineOptions(WithUnknownTypePolicy(policy.UnknownTypeDisclose)))
	h.acceptOffers()
	id, err := h.provider.Register(context.Background(), stash())
	require.NoError(t, err)

	outcome, err := h.provider.Grant(context.Background(), grantParams(id))
	require.NoError(t, err)
	resp := testutil.RequireGranted(t, outcome)
	assert.Equal(t, map[string]any{"vault": "v1"}, resp.GrantedPolicy.Data)
	assert.NotEmpty(t, h.renderer.Shown()[0].Warning)
}

func TestGrant_InvalidParams(t *testing.T) {
	h := newProviderHarness(t, nil)

	_, err := h.call(t, kernelID, entities.MethodGrantAttenuatedPermission, map[string]any{
		"permissionId":   "x",
		"sessionAccount": map[string]any{"caip10Address": "not an account"},
	})
	var resp *rpc.ErrorResponse
	require.True(t, errors.As(err, &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Kind)
}

func TestAuxiliaryMethods(t *testing.T) {
	h := newProviderHarness(t, nil)

	raw, err := h.registry.Invoke(rpc.WithOrigin(context.Background(), kernelID), entities.MethodListPermissionTypes, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `["Puddin","erc20-token"]`, string(raw))

	raw, err = h.call(t, kernelID, entities.MethodValidatePermission, stash())
	require.NoError(t, err)
	assert.Equal(t, "true", string(raw))

	raw, err = h.call(t, kernelID, entities.MethodValidatePermission, map[string]any{"type": map[string]any{"name": "Asset"}})
	require.NoError(t, err)
	assert.Equal(t, "false", string(raw), "proposedName is required")

	for _, method := range []string{entities.MethodRevokePermission, entities.MethodRenewPermission} {
		_, err = h.call(t, kernelID, method, RenewParams{PermissionID: "x", Extension: 60})
		var resp *rpc.ErrorResponse
		require.True(t, errors.As(err, &resp), method)
		assert.Equal(t, "NOT_IMPLEMENTED", resp.Kind)
		var nie *brokerErrors.NotImplementedError
		assert.True(t, errors.As(err, &nie))
	}
}
