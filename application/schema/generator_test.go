package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema_SimpleStruct(t *testing.T) {
	type SimpleConfig struct {
		Host string `json:"host"`
		Port int    `json:"port,omitempty"`
	}

	schema, err := GenerateSchema(SimpleConfig{})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(schema, &decoded))

	assert.Equal(t, "object", decoded["type"])
	assert.Equal(t, []interface{}{"host"}, decoded["required"])
	assert.NotContains(t, decoded, "additionalProperties")
}

func TestGenerateWireSchema_RequestedPermission(t *testing.T) {
	schema, err := GenerateWireSchema("RequestedPermission")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(schema, &decoded))

	required, ok := decoded["required"].([]interface{})
	require.True(t, ok)
	assert.ElementsMatch(t, []interface{}{"sessionAccount", "type"}, required)

	props := decoded["properties"].(map[string]interface{})
	assert.Contains(t, props, "justification")
	assert.Contains(t, props, "data")
	assert.Contains(t, props, "required")

	// the account pattern comes from the Address definition
	assert.Contains(t, string(schema), `"pattern"`)
	assert.Contains(t, string(schema), "caip10Address")
}

func TestGenerateWireSchema_Unknown(t *testing.T) {
	_, err := GenerateWireSchema("Nope")
	assert.Error(t, err)
}

func TestWireTypeNames(t *testing.T) {
	names := WireTypeNames()
	assert.Contains(t, names, "PermissionsResponse")
	assert.Contains(t, names, "GrantParams")
	assert.IsIncreasing(t, names)
}
