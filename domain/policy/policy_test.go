package policy_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactNamePolicy(t *testing.T) {
	p := policy.ExactNamePolicy{}

	tests := []struct {
		name      string
		offered   entities.TypeDescriptor
		requested entities.TypeDescriptor
		want      bool
	}{
		{"Same name", entities.TypeDescriptor{Name: "Asset"}, entities.TypeDescriptor{Name: "Asset"}, true},
		{"Description ignored", entities.TypeDescriptor{Name: "Asset", Description: "a"}, entities.TypeDescriptor{Name: "Asset", Description: "b"}, true},
		{"Case sensitive", entities.TypeDescriptor{Name: "asset"}, entities.TypeDescriptor{Name: "Asset"}, false},
		{"Different name", entities.TypeDescriptor{Name: "erc20-token"}, entities.TypeDescriptor{Name: "Asset"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Matches(tt.offered, tt.requested))
		})
	}
}

func TestMatchFunc(t *testing.T) {
	always := policy.MatchFunc(func(_, _ entities.TypeDescriptor) bool { return true })
	assert.True(t, always.Matches(entities.TypeDescriptor{Name: "a"}, entities.TypeDescriptor{Name: "b"}))
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := policy.ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, policy.DuplicateAllow, p)

	p, err = policy.ParseDuplicatePolicy("reject")
	require.NoError(t, err)
	assert.Equal(t, policy.DuplicateReject, p)

	_, err = policy.ParseDuplicatePolicy("merge")
	assert.Error(t, err)
}

func TestParseUnknownTypePolicy(t *testing.T) {
	p, err := policy.ParseUnknownTypePolicy("")
	require.NoError(t, err)
	assert.Equal(t, policy.UnknownTypeFailClosed, p)

	p, err = policy.ParseUnknownTypePolicy("disclose")
	require.NoError(t, err)
	assert.Equal(t, policy.UnknownTypeDisclose, p)

	_, err = policy.ParseUnknownTypePolicy("silent")
	assert.Error(t, err)
}

func TestStderrDenialHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &policy.StderrDenialHandler{W: &buf}

	h.OnDenial("no_match", "Asset", "nothing offered")
	assert.Equal(t, "Permission Declined [no_match]: Asset (Reason: nothing offered)\n", buf.String())
}

func TestSlogDenialHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &policy.SlogDenialHandler{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	h.OnDenial("selection", "99", "out of range")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	assert.Equal(t, "permission declined", rec["msg"])
	assert.Equal(t, "selection", rec["kind"])
	assert.Equal(t, "out of range", rec["reason"])
}
