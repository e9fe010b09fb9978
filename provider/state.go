package provider

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"gopkg.in/yaml.v3"
)

// StateVersion is the current layout of the persisted provider state.
const StateVersion = 1

// State is the document a provider keeps in the host store.
type State struct {
	Version     int                         `yaml:"version"`
	Permissions []entities.StoredPermission `yaml:"permissions"`
}

// EncodeState serialises permissions at the current version.
func EncodeState(perms []entities.StoredPermission) ([]byte, error) {
	if perms == nil {
		perms = []entities.StoredPermission{}
	}
	data, err := yaml.Marshal(State{Version: StateVersion, Permissions: perms})
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider state: %w", err)
	}
	return data, nil
}

// DecodeState reads a persisted state document, migrating older layouts:
// version 0 has no version field, and the earliest layout stored the
// whole document as a JSON string. migrated reports whether the input was
// not at the current version.
func DecodeState(raw []byte) (state State, migrated bool, err error) {
	if strings.TrimSpace(string(raw)) == "" {
		return State{Version: StateVersion}, false, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return State{}, false, fmt.Errorf("failed to parse provider state: %w", err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}

	if doc.Kind == yaml.ScalarNode {
		if !strings.HasPrefix(strings.TrimSpace(doc.Value), "{") {
			return State{}, false, fmt.Errorf("provider state is a bare value, not a document")
		}
		inner, _, err := DecodeState([]byte(doc.Value))
		if err != nil {
			return State{}, false, fmt.Errorf("failed to parse string-encoded provider state: %w", err)
		}
		return inner, true, nil
	}

	if err := doc.Decode(&state); err != nil {
		return State{}, false, fmt.Errorf("failed to decode provider state: %w", err)
	}
	switch {
	case state.Version > StateVersion:
		return State{}, false, fmt.Errorf("provider state version %d is newer than supported version %d", state.Version, StateVersion)
	case state.Version < StateVersion:
		state.Version = StateVersion
		return state, true, nil
	}
	return state, false, nil
}
