// Package schema generates JSON Schemas for the broker's wire types.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/reglet-dev/reglet-broker/domain/entities"
)

// GenerateSchema creates a JSON Schema (Draft 2020-12) from a Go struct.
// Unknown properties are allowed so requesters may send fields this
// version does not know about; they are ignored after decoding.
func GenerateSchema(v interface{}) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return jsonBytes, nil
}

// WireTypes returns a prototype of every message type exchanged between
// requesters, the kernel and providers, keyed by type name.
func WireTypes() map[string]any {
	return map[string]any{
		"Address":             entities.Address{},
		"TypeDescriptor":      entities.TypeDescriptor{},
		"PermissionOffer":     entities.PermissionOffer{},
		"RequestedPermission": entities.RequestedPermission{},
		"GrantParams":         entities.GrantParams{},
		"GrantedPolicy":       entities.GrantedPolicy{},
		"PermissionsResponse": entities.PermissionsResponse{},
		"StoredPermission":    entities.StoredPermission{},
	}
}

// WireTypeNames returns the keys of WireTypes, sorted.
func WireTypeNames() []string {
	types := WireTypes()
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GenerateWireSchema renders the schema of one named wire type.
func GenerateWireSchema(name string) ([]byte, error) {
	proto, ok := WireTypes()[name]
	if !ok {
		return nil, fmt.Errorf("unknown wire type %q", name)
	}
	return GenerateSchema(proto)
}
