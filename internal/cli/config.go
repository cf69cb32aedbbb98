// Package cli holds the configuration and wiring shared by the weft
// commands.
package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration adds YAML decoding of time.ParseDuration strings ("90s",
// "1h") to time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the server configuration, loaded from YAML. Zero values fall
// back to defaults in ApplyDefaults.
type Config struct {
	// Addr is the listen address for the API server.
	Addr string `yaml:"addr"`

	Backend struct {
		// URL of the generation backend.
		URL string `yaml:"url"`
		// APIKey sent as a bearer token. The WEFT_API_KEY environment
		// variable overrides it so keys stay out of config files.
		APIKey string `yaml:"api_key"`
		// Path of the generation endpoint, when not /v1/generate.
		Path string `yaml:"path"`
	} `yaml:"backend"`

	Generation struct {
		// MaxRetries is the repair budget per generation request.
		MaxRetries *int `yaml:"max_retries"`
	} `yaml:"generation"`

	Sessions struct {
		// Store selects the snapshot store: "memory", "file", or "redis".
		Store string `yaml:"store"`
		// TTL expires idle sessions. Zero keeps them forever. Only the
		// redis store enforces it.
		TTL Duration `yaml:"ttl"`
		Encryption struct {
			// Key is the active AES-256 key, hex-encoded (64 chars).
			// The WEFT_ENCRYPTION_KEY environment variable overrides it
			// so keys stay out of config files. Empty disables
			// encryption at rest.
			Key string `yaml:"key"`
			// FallbackKeys decrypt snapshots written under rotated-out
			// keys, hex-encoded like Key.
			FallbackKeys []string `yaml:"fallback_keys"`
		} `yaml:"encryption"`
		PII struct {
			// Mask redacts state values whose keys match Patterns
			// before snapshots reach the store.
			Mask bool `yaml:"mask"`
			// Patterns are regular expressions matched against state
			// keys. Empty falls back to a default secret-shaped set.
			Patterns []string `yaml:"patterns"`
		} `yaml:"pii"`
		File struct {
			// Dir holds one JSON file per session.
			Dir string `yaml:"dir"`
		} `yaml:"file"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
			// Lock serializes session access across server instances
			// with a Redis-backed distributed lock.
			Lock bool `yaml:"lock"`
		} `yaml:"redis"`
	} `yaml:"sessions"`

	Metrics struct {
		// Enabled mounts /metrics with Prometheus collectors.
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`

	Log struct {
		// Level is one of debug, info, warn, error.
		Level string `yaml:"level"`
		// Format is "text" or "json".
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// LoadConfig reads a YAML config file. A missing path returns defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills zero values and applies environment overrides.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Sessions.Store == "" {
		c.Sessions.Store = "memory"
	}
	if c.Sessions.Redis.Prefix == "" {
		c.Sessions.Redis.Prefix = "weft:session:"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if key := os.Getenv("WEFT_API_KEY"); key != "" {
		c.Backend.APIKey = key
	}
	if key := os.Getenv("WEFT_ENCRYPTION_KEY"); key != "" {
		c.Sessions.Encryption.Key = key
	}
	if c.Sessions.PII.Mask && len(c.Sessions.PII.Patterns) == 0 {
		c.Sessions.PII.Patterns = []string{
			"(?i)password", "(?i)secret", "(?i)token", "(?i)api_?key", "(?i)ssn",
		}
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	switch c.Sessions.Store {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("sessions.store must be memory, file, or redis, got %q", c.Sessions.Store)
	}
	if c.Sessions.Store == "redis" && c.Sessions.Redis.Addr == "" {
		return fmt.Errorf("sessions.redis.addr is required with the redis store")
	}
	if c.Sessions.Redis.Lock && c.Sessions.Store != "redis" {
		return fmt.Errorf("sessions.redis.lock requires the redis store")
	}
	if _, _, err := c.EncryptionKeys(); err != nil {
		return err
	}
	for _, p := range c.Sessions.PII.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid sessions.pii pattern %q: %w", p, err)
		}
	}
	return nil
}

// EncryptionKeys decodes the hex-encoded session encryption keys. Both
// returns are nil when encryption is disabled.
func (c *Config) EncryptionKeys() (active []byte, fallbacks [][]byte, err error) {
	if c.Sessions.Encryption.Key == "" {
		return nil, nil, nil
	}
	active, err = decodeKey("sessions.encryption.key", c.Sessions.Encryption.Key)
	if err != nil {
		return nil, nil, err
	}
	for _, k := range c.Sessions.Encryption.FallbackKeys {
		fk, err := decodeKey("sessions.encryption.fallback_keys", k)
		if err != nil {
			return nil, nil, err
		}
		fallbacks = append(fallbacks, fk)
	}
	return active, fallbacks, nil
}

func decodeKey(field, key string) ([]byte, error) {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid hex: %w", field, err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("%s must be 32 bytes (64 hex chars), got %d bytes", field, len(raw))
	}
	return raw, nil
}
