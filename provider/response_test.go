package provider

import (
	"errors"
	"testing"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	brokerErrors "github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleResponse(t *testing.T) {
	policy := entities.GrantedPolicy{
		SessionAccount: entities.Address{CAIP10Address: "chain:0xabc"},
		Type:           entities.TypeDescriptor{Name: "Asset"},
	}
	entry := entities.Address{CAIP10Address: "chain:0xentry"}

	resp, err := AssembleResponse(policy, entry, "0xdeadbeef",
		WithInitCode("0x60806040"),
		WithUpgradeOps(entities.UpgradeOp{Target: entry, Operation: "0x01"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", resp.PermissionsContext)
	assert.Equal(t, "0x60806040", resp.InitCode)
	assert.Len(t, resp.UpgradeOps, 1)
	assert.NotNil(t, resp.GrantedPolicy.Data, "data is always an object")
	require.NoError(t, entities.ValidateStruct(resp))
}

func TestAssembleResponse_Rejects(t *testing.T) {
	good := entities.GrantedPolicy{
		SessionAccount: entities.Address{CAIP10Address: "chain:0xabc"},
		Type:           entities.TypeDescriptor{Name: "Asset"},
	}
	entry := entities.Address{CAIP10Address: "chain:0xentry"}

	tests := []struct {
		name    string
		policy  entities.GrantedPolicy
		submit  entities.Address
		context string
		opts    []ResponseOption
		field   string
	}{
		{
			name:    "bad session account",
			policy:  entities.GrantedPolicy{SessionAccount: entities.Address{CAIP10Address: "0xabc"}, Type: good.Type},
			submit:  entry,
			context: "0x1",
			field:   "grantedPolicy.sessionAccount",
		},
		{
			name:    "bad submit address",
			policy:  good,
			submit:  entities.Address{},
			context: "0x1",
			field:   "submitToAddress",
		},
		{
			name:   "empty context",
			policy: good,
			submit: entry,
			field:  "permissionsContext",
		},
		{
			name:    "incomplete upgrade op",
			policy:  good,
			submit:  entry,
			context: "0x1",
			opts:    []ResponseOption{WithUpgradeOps(entities.UpgradeOp{Target: entry})},
			field:   "upgradeOps[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AssembleResponse(tt.policy, tt.submit, tt.context, tt.opts...)
			var ve *brokerErrors.ValidationError
			require.True(t, errors.As(err, &ve))
			require.Len(t, ve.Issues, 1)
			assert.Equal(t, tt.field, ve.Issues[0].Field)
		})
	}
}
