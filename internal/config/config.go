// Package config loads the myhome server configuration.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the root of myhome.yaml.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	API     APIConfig     `mapstructure:"api"`
	Wizard  WizardConfig  `mapstructure:"wizard"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr      string  `mapstructure:"addr"`
	RateLimit float64 `mapstructure:"rate_limit"` // Requests per second per client; 0 disables
	Burst     int     `mapstructure:"burst"`
	Metrics   bool    `mapstructure:"metrics"`
}

// StorageConfig configures both snapshot scopes.
type StorageConfig struct {
	// Session backs the session scope (drafts of a signed-in user).
	Session BackendConfig `mapstructure:"session"`
	// Local backs the durable scope; an empty driver disables it.
	Local BackendConfig `mapstructure:"local"`

	// EncryptionKey enables AES-256-GCM at rest (32 bytes, hex or base64).
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	// MaskFields are regular expressions of payload fields masked before writing.
	MaskFields []string `mapstructure:"mask_fields"`
}

// BackendConfig selects one storage backend.
type BackendConfig struct {
	Driver string        `mapstructure:"driver"` // memory, file, redis, sqlite
	Path   string        `mapstructure:"path"`   // file directory or sqlite database
	TTL    time.Duration `mapstructure:"ttl"`    // redis only
	Redis  RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the Redis connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	// Lock serialises a wizard across replicas.
	Lock bool `mapstructure:"lock"`
}

// APIConfig points at the platform backend that receives submissions.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Token   string        `mapstructure:"token"`
}

// WizardConfig tunes the engine.
type WizardConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Gate     string        `mapstructure:"gate"` // current or sequential
	// Scope selects where wizards keep their progress: session (storage.session)
	// or local (storage.local, durable across sessions).
	Scope string `mapstructure:"scope"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 20,
			Burst:     40,
			Metrics:   true,
		},
		Storage: StorageConfig{
			Session: BackendConfig{Driver: "memory"},
		},
		API: APIConfig{
			BaseURL: "http://localhost:3000",
			Timeout: 15 * time.Second,
		},
		Wizard: WizardConfig{
			Debounce: 300 * time.Millisecond,
			Gate:     "current",
			Scope:    "session",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment variables in the file are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := Parse([]byte(os.ExpandEnv(string(data))), filepath.Ext(path), cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Parse decodes data (YAML, or JSON when ext is ".json") onto cfg.
func Parse(data []byte, ext string, cfg *Config) error {
	var raw map[string]any
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	for name, b := range map[string]BackendConfig{"session": c.Storage.Session, "local": c.Storage.Local} {
		switch b.Driver {
		case "", "memory", "redis":
		case "file", "sqlite":
			if b.Path == "" {
				errs = append(errs, fmt.Errorf("storage.%s.path is required for %s", name, b.Driver))
			}
		default:
			errs = append(errs, fmt.Errorf("storage.%s.driver: unknown driver %q", name, b.Driver))
		}
	}
	if c.Storage.Session.Driver == "" {
		errs = append(errs, errors.New("storage.session.driver is required"))
	}

	if c.Storage.EncryptionKey != "" {
		if _, err := DecodeKey(c.Storage.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("storage.encryption_key: %w", err))
		}
	}
	for i, k := range c.Storage.FallbackKeys {
		if _, err := DecodeKey(k); err != nil {
			errs = append(errs, fmt.Errorf("storage.fallback_keys[%d]: %w", i, err))
		}
	}

	for i, p := range c.Storage.MaskFields {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("storage.mask_fields[%d]: %w", i, err))
		}
	}

	switch c.Wizard.Gate {
	case "", "current", "sequential":
	default:
		errs = append(errs, fmt.Errorf("wizard.gate: unknown gate %q", c.Wizard.Gate))
	}
	switch c.Wizard.Scope {
	case "", "session":
	case "local":
		if c.Storage.Local.Driver == "" {
			errs = append(errs, errors.New("wizard.scope local requires storage.local.driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("wizard.scope: unknown scope %q", c.Wizard.Scope))
	}
	if c.Wizard.Debounce < 0 {
		errs = append(errs, errors.New("wizard.debounce cannot be negative"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit cannot be negative"))
	}
	return errors.Join(errs...)
}

// DecodeKey decodes a 32-byte key given as hex or base64.
func DecodeKey(s string) ([]byte, error) {
	if b, err := hex.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == 32 {
		return b, nil
	}
	return nil, errors.New("key must be 32 bytes, hex or base64 encoded")
}
