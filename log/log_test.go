package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler_Defaults(t *testing.T) {
	h := NewHandler()
	assert.NotNil(t, h)
	assert.True(t, h.Enabled(context.TODO(), slog.LevelInfo))
	assert.False(t, h.Enabled(context.TODO(), slog.LevelDebug))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(
		WithLevel(slog.LevelDebug),
		WithFormat(FormatJSON),
		WithWriter(&buf),
	)

	logger.Debug("offer registered", slog.String("host_id", "npm:provider"), slog.Int("records", 2))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "offer registered", record["msg"])
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "npm:provider", record["host_id"])
	assert.Equal(t, float64(2), record["records"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithWriter(&buf))

	logger.Debug("hidden")
	logger.Warn("visible", "origin", "https://dapp.example")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "origin=https://dapp.example")
}

func TestNewLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WithWriter(&buf), WithRedactedKeys("justification"))

	logger.Info("loaded", "signing_key", "c2VjcmV0", "justification", "private reason", "type", "Asset")

	out := buf.String()
	assert.NotContains(t, out, "c2VjcmV0")
	assert.NotContains(t, out, "private reason")
	assert.Contains(t, out, "signing_key="+redacted)
	assert.Contains(t, out, "type=Asset")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "", want: slog.LevelInfo},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.TODO(), slog.LevelError))
}
