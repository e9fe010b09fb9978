package config

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BROKER_"

// Config is the broker's configuration file.
type Config struct {
	KernelID string            `yaml:"kernel_id" validate:"required"`
	Log      LogConfig         `yaml:"log"`
	Kernel   KernelConfig      `yaml:"kernel"`
	Provider ProviderConfig    `yaml:"provider"`
	Store    StoreConfig       `yaml:"store"`
	Messages map[string]string `yaml:"messages,omitempty"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
	Source bool   `yaml:"source"`
}

// KernelConfig configures negotiation behaviour.
type KernelConfig struct {
	DuplicatePolicy   string        `yaml:"duplicate_policy" validate:"oneof=allow reject"`
	DialogTimeout     time.Duration `yaml:"dialog_timeout" validate:"min=0"`
	SelectionAttempts int           `yaml:"selection_attempts" validate:"min=1,max=10"`
	VerifyResponses   bool          `yaml:"verify_responses"`
}

// ProviderConfig configures the bundled permission provider.
type ProviderConfig struct {
	ID                string        `yaml:"id" validate:"required"`
	UnknownTypePolicy string        `yaml:"unknown_type_policy" validate:"oneof=fail-closed disclose"`
	SubmitTo          string        `yaml:"submit_to" validate:"required,caip10"`
	RedeemerDID       string        `yaml:"redeemer_did,omitempty" validate:"omitempty,startswith=did:"`
	SigningKey        string        `yaml:"signing_key,omitempty" validate:"omitempty,base64"`
	SeedDir           string        `yaml:"seed_dir,omitempty"`
	SeedPattern       string        `yaml:"seed_pattern"`
	GrantTTL          time.Duration `yaml:"grant_ttl" validate:"gt=0"`
}

// StoreConfig selects the host key-value store.
type StoreConfig struct {
	Driver    string `yaml:"driver" validate:"oneof=memory file sqlite"`
	Path      string `yaml:"path" validate:"required_unless=Driver memory"`
	CacheSize int    `yaml:"cache_size" validate:"min=0"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		KernelID: "npm:permissions-kernel",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Kernel: KernelConfig{
			DuplicatePolicy:   "allow",
			DialogTimeout:     5 * time.Minute,
			SelectionAttempts: 1,
			VerifyResponses:   true,
		},
		Provider: ProviderConfig{
			ID:                "npm:permission-provider",
			UnknownTypePolicy: "fail-closed",
			SubmitTo:          "eip155:1:0x0000000000000000000000000000000000000000",
			SeedPattern:       "**/*.{yaml,yml}",
			GrantTTL:          7 * 24 * time.Hour,
		},
		Store: StoreConfig{
			Driver:    "memory",
			CacheSize: 128,
		},
	}
}

// Load reads path over the defaults, applies BROKER_* environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg. Fields absent from data keep their values.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if stdErrors.Is(err, io.EOF) {
			return nil
		}
		return &errors.ConfigError{Err: fmt.Errorf("failed to parse YAML: %w", err)}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables looked up through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	str("KERNEL_ID", &c.KernelID)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("DUPLICATE_POLICY", &c.Kernel.DuplicatePolicy)
	str("PROVIDER_ID", &c.Provider.ID)
	str("UNKNOWN_TYPE_POLICY", &c.Provider.UnknownTypePolicy)
	str("SUBMIT_TO", &c.Provider.SubmitTo)
	str("REDEEMER_DID", &c.Provider.RedeemerDID)
	str("SIGNING_KEY", &c.Provider.SigningKey)
	str("SEED_DIR", &c.Provider.SeedDir)
	str("SEED_PATTERN", &c.Provider.SeedPattern)
	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_PATH", &c.Store.Path)

	if v, ok := lookup(EnvPrefix + "DIALOG_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &errors.ConfigError{Field: "kernel.dialog_timeout", Err: err}
		}
		c.Kernel.DialogTimeout = d
	}
	if v, ok := lookup(EnvPrefix + "SELECTION_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &errors.ConfigError{Field: "kernel.selection_attempts", Err: err}
		}
		c.Kernel.SelectionAttempts = n
	}
	if v, ok := lookup(EnvPrefix + "VERIFY_RESPONSES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &errors.ConfigError{Field: "kernel.verify_responses", Err: err}
		}
		c.Kernel.VerifyResponses = b
	}
	return nil
}

// Validate checks struct tags and reports the first failing field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if stdErrors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &errors.ConfigError{
				Field: strings.TrimPrefix(fe.Namespace(), "Config."),
				Err:   fmt.Errorf("failed on '%s' rule", fe.Tag()),
			}
		}
		return &errors.ConfigError{Err: err}
	}
	return nil
}

// validate is a package-level singleton with the entity tags registered.
var validate = entities.NewValidator()
