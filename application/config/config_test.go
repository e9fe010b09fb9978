package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	brokerErrors "github.com/reglet-dev/reglet-broker/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Kernel.SelectionAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Kernel.DialogTimeout)
	assert.True(t, cfg.Kernel.VerifyResponses)
	assert.Equal(t, "allow", cfg.Kernel.DuplicatePolicy)
	assert.Equal(t, "fail-closed", cfg.Provider.UnknownTypePolicy)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
kernel_id: npm:my-kernel
kernel:
  dialog_timeout: 30s
  selection_attempts: 3
provider:
  unknown_type_policy: disclose
store:
  driver: sqlite
  path: /tmp/broker.db
messages:
  selection.heading: "Pick one"
`), &cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "npm:my-kernel", cfg.KernelID)
	assert.Equal(t, 30*time.Second, cfg.Kernel.DialogTimeout)
	assert.Equal(t, 3, cfg.Kernel.SelectionAttempts)
	assert.True(t, cfg.Kernel.VerifyResponses, "untouched fields keep defaults")
	assert.Equal(t, "disclose", cfg.Provider.UnknownTypePolicy)
	assert.Equal(t, "Pick one", cfg.Messages["selection.heading"])
}

func TestParse_Errors(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(nil, &cfg), "empty document keeps defaults")

	err := Parse([]byte("kernel:\n  bogus: 1\n"), &cfg)
	var cfgErr *brokerErrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))

	err = Parse([]byte("kernel: [unterminated"), &cfg)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"BROKER_KERNEL_ID":          "npm:env-kernel",
		"BROKER_DIALOG_TIMEOUT":     "90s",
		"BROKER_SELECTION_ATTEMPTS": "2",
		"BROKER_VERIFY_RESPONSES":   "false",
		"BROKER_STORE_DRIVER":       "file",
		"BROKER_STORE_PATH":         "/var/lib/broker",
		"BROKER_LOG_LEVEL":          "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "npm:env-kernel", cfg.KernelID)
	assert.Equal(t, 90*time.Second, cfg.Kernel.DialogTimeout)
	assert.Equal(t, 2, cfg.Kernel.SelectionAttempts)
	assert.False(t, cfg.Kernel.VerifyResponses)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level, "empty values are ignored")
}

func TestApplyEnv_BadValues(t *testing.T) {
	tests := map[string]string{
		"BROKER_DIALOG_TIMEOUT":     "soon",
		"BROKER_SELECTION_ATTEMPTS": "many",
		"BROKER_VERIFY_RESPONSES":   "perhaps",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyEnv(envMap(map[string]string{key: value}))
			var cfgErr *brokerErrors.ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mutate func(*Config)
		name   string
		field  string
	}{
		{name: "zero attempts", mutate: func(c *Config) { c.Kernel.SelectionAttempts = 0 }, field: "Kernel.SelectionAttempts"},
		{name: "bad duplicate policy", mutate: func(c *Config) { c.Kernel.DuplicatePolicy = "merge" }, field: "Kernel.DuplicatePolicy"},
		{name: "bad submit address", mutate: func(c *Config) { c.Provider.SubmitTo = "0xabc" }, field: "Provider.SubmitTo"},
		{name: "file store without path", mutate: func(c *Config) { c.Store.Driver = "file" }, field: "Store.Path"},
		{name: "bad redeemer", mutate: func(c *Config) { c.Provider.RedeemerDID = "alice" }, field: "Provider.RedeemerDID"},
		{name: "empty kernel id", mutate: func(c *Config) { c.KernelID = "" }, field: "KernelID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *brokerErrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kernel:\n  selection_attempts: 4\n"), 0o600))

	t.Setenv("BROKER_PROVIDER_ID", "npm:from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Kernel.SelectionAttempts)
	assert.Equal(t, "npm:from-env", cfg.Provider.ID)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
