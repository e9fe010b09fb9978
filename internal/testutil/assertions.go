// Package testutil provides fakes and assertions shared by the broker's tests.
package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()

	var expectedJSON, actualJSON interface{}
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}

// AssertDurationWithin asserts that a duration is within a tolerance of an expected value
func AssertDurationWithin(t *testing.T, expected, actual, tolerance time.Duration, msgAndArgs ...interface{}) {
	t.Helper()

	diff := expected - actual
	if diff < 0 {
		diff = -diff
	}

	assert.LessOrEqual(t, diff, tolerance, msgAndArgs...)
}

// RequireGranted fails the test unless the outcome carries a response.
func RequireGranted(t *testing.T, o entities.Outcome) entities.PermissionsResponse {
	t.Helper()
	require.True(t, o.IsGranted(), "expected grant, declined: %v", o.Reason())
	resp, err := o.Response()
	require.NoError(t, err)
	return resp
}

// AssertDeclined asserts the outcome is declined and marshals as false.
func AssertDeclined(t *testing.T, o entities.Outcome) {
	t.Helper()
	assert.False(t, o.IsGranted(), "expected decline, got %s", string(o.Raw()))
	raw, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Equal(t, "false", string(raw))
}
