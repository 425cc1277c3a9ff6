// Package config loads rpcgate settings from a YAML file, the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mnehpets/rpcgate/audit"
	"github.com/mnehpets/rpcgate/logging"
)

// Audit sinks.
const (
	SinkSQLite = "sqlite"
	SinkLog    = "log"
	SinkNone   = "none"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "RPCGATE_"

// Config holds the gateway configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	Route    string `yaml:"route"`
	Database string `yaml:"database"`

	Log       Log       `yaml:"log"`
	Auth      Auth      `yaml:"auth"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Audit     Audit     `yaml:"audit"`
	CORS      CORS      `yaml:"cors"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Auth configures bearer authentication. API keys are always accepted; OIDC
// tokens are accepted instead when OIDC.Issuer is set.
type Auth struct {
	// KeySecret keys the API key hash. Changing it invalidates every key.
	KeySecret string `yaml:"key_secret"`
	OIDC      OIDC   `yaml:"oidc"`
}

type OIDC struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ProjectClaim string `yaml:"project_claim"`
}

// RateLimit holds the per-project limit and the per-client-address limit
// applied before authentication. An RPS of 0 disables that limit.
type RateLimit struct {
	RPS          float64 `yaml:"rps"`
	Burst        int     `yaml:"burst"`
	AddressRPS   float64 `yaml:"address_rps"`
	AddressBurst int     `yaml:"address_burst"`
}

type Audit struct {
	Sink           string `yaml:"sink"`
	MaxParamLength int    `yaml:"max_param_length"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		Route:    "/api/v1/",
		Database: "rpcgate.db",
		Log:      Log{Level: "info", Format: string(logging.FormatText)},
		Audit:    Audit{Sink: SinkSQLite, MaxParamLength: audit.DefaultMaxParamLength},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (with
// ${VAR} references expanded), then RPCGATE_* environment variables. A
// missing file is not an error. Variables from envFile, if it exists, are
// loaded first without overriding the real environment.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		if err == nil {
			expanded := os.ExpandEnv(string(file))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := map[string]*string{
		"LISTEN":             &c.Listen,
		"ROUTE":              &c.Route,
		"DATABASE":           &c.Database,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"KEY_SECRET":         &c.Auth.KeySecret,
		"OIDC_ISSUER":        &c.Auth.OIDC.Issuer,
		"OIDC_CLIENT_ID":     &c.Auth.OIDC.ClientID,
		"OIDC_PROJECT_CLAIM": &c.Auth.OIDC.ProjectClaim,
		"AUDIT_SINK":         &c.Audit.Sink,
	}
	for name, dst := range str {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"RATE_LIMIT_RPS":         &c.RateLimit.RPS,
		"RATE_LIMIT_ADDRESS_RPS": &c.RateLimit.AddressRPS,
	}
	for name, dst := range floats {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = f
	}
	ints := map[string]*int{
		"RATE_LIMIT_BURST":         &c.RateLimit.Burst,
		"RATE_LIMIT_ADDRESS_BURST": &c.RateLimit.AddressBurst,
		"AUDIT_MAX_PARAM_LENGTH": &c.Audit.MaxParamLength,
	}
	for name, dst := range ints {
		v := getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}
	if v := getenv(EnvPrefix + "CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is not set")
	}
	if !strings.HasPrefix(c.Route, "/") {
		return fmt.Errorf("route %q must start with /", c.Route)
	}
	switch c.Audit.Sink {
	case SinkSQLite, SinkLog, SinkNone:
	default:
		return fmt.Errorf("unknown audit sink %q: want %s, %s or %s", c.Audit.Sink, SinkSQLite, SinkLog, SinkNone)
	}
	if c.Auth.OIDC.Issuer != "" && c.Auth.OIDC.ClientID == "" {
		return errors.New("auth.oidc.client_id is required when auth.oidc.issuer is set")
	}
	if r := c.RateLimit; r.RPS < 0 || r.Burst < 0 || r.AddressRPS < 0 || r.AddressBurst < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	return nil
}

// KeySecret returns the API key hashing secret, or an error if none is
// configured. Commands that hash keys call it before touching the store.
func (c *Config) KeySecret() ([]byte, error) {
	if c.Auth.KeySecret == "" {
		return nil, fmt.Errorf("auth.key_secret is not set. Please set %sKEY_SECRET or add it to the config file", EnvPrefix)
	}
	return []byte(c.Auth.KeySecret), nil
}

// Logging returns the logging configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  logging.ParseLevel(c.Log.Level),
		Format: logging.ParseFormat(c.Log.Format),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Save writes c to path as YAML, readable only by the owner since it holds
// the key secret.
func (c *Config) Save(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
