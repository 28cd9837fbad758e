package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v9"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Policy   PolicyConfig
	Auth     AuthConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/fleetacl.db"`
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	// BootstrapAPIKey is accepted until the first real key is created.
	BootstrapAPIKey string `env:"BOOTSTRAP_API_KEY"`
}

// PolicyConfig holds the knobs for auto-assignment, rollout admission
// and synthesis.
type PolicyConfig struct {
	// ValidOwners are the owning teams whose devices are eligible for
	// auto-assigned rule sets.
	ValidOwners []string `env:"VALID_OWNERS" envSeparator:"," envDefault:"Data Center,Backbone Engineering,Enterprise Networking"`

	// AutoACLNameTokens: a device name must contain at least one of
	// these for auto-assignment to consider it. Empty disables the
	// check.
	AutoACLNameTokens []string `env:"AUTOACL_NAME_TOKENS" envSeparator:"," envDefault:"net,corp"`

	// BulkThreshold is the fleet-wide usage count at which a rule set
	// counts as high fan-out and gets throttled rollout.
	BulkThreshold int `env:"BULK_THRESH" envDefault:"100"`

	// BulkMaxHitsDefault is the per-(prefix, site) admission threshold
	// for rule sets with no override.
	BulkMaxHitsDefault int `env:"BULK_MAX_HITS_DEFAULT" envDefault:"1"`

	// BulkMaxHitsRaw holds per-rule-set threshold overrides in
	// "name=count,name2=count" form.
	BulkMaxHitsRaw string `env:"BULK_MAX_HITS"`

	// SynthMaxTerms caps the Cartesian expansion when synthesizing
	// missing terms for a multi-valued request.
	SynthMaxTerms int `env:"SYNTH_MAX_TERMS" envDefault:"10000"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Database); err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if err := env.Parse(&cfg.Policy); err != nil {
		return nil, fmt.Errorf("parsing policy config: %w", err)
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, fmt.Errorf("parsing auth config: %w", err)
	}

	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BulkMaxHits parses the per-rule-set threshold overrides.
func (c *PolicyConfig) BulkMaxHits() (map[string]int, error) {
	overrides := make(map[string]int)
	if c.BulkMaxHitsRaw == "" {
		return overrides, nil
	}
	for _, pair := range strings.Split(c.BulkMaxHitsRaw, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("BULK_MAX_HITS entry %q is not name=count", pair)
		}
		count, err := strconv.Atoi(value)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("BULK_MAX_HITS entry %q has a bad count", pair)
		}
		overrides[name] = count
	}
	return overrides, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Policy.BulkThreshold < 1 {
		return fmt.Errorf("BULK_THRESH must be at least 1")
	}
	if c.Policy.BulkMaxHitsDefault < 1 {
		return fmt.Errorf("BULK_MAX_HITS_DEFAULT must be at least 1")
	}
	if c.Policy.SynthMaxTerms < 1 {
		return fmt.Errorf("SYNTH_MAX_TERMS must be at least 1")
	}
	if _, err := c.Policy.BulkMaxHits(); err != nil {
		return err
	}
	return nil
}
