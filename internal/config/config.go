// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

// Package config loads and validates accountd configuration from YAML
// files and command-line flags.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the root configuration for the accountd process.
type Config struct {
	Server        ServerConfig        `koanf:"server" json:"server"`
	Database      DatabaseConfig      `koanf:"database" json:"database"`
	Session       SessionConfig       `koanf:"session" json:"session"`
	Registration  RegistrationConfig  `koanf:"registration" json:"registration"`
	Verification  VerificationConfig  `koanf:"verification" json:"verification"`
	Google        GoogleConfig        `koanf:"google" json:"google"`
	SMTP          SMTPConfig          `koanf:"smtp" json:"smtp"`
	Log           LogConfig           `koanf:"log" json:"log"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `koanf:"addr" json:"addr"`

	// BaseURL is the public base URL used in verification links and
	// OAuth redirects.
	BaseURL string `koanf:"base_url" json:"base_url"`

	// CookieSecure sets the Secure attribute on session cookies. Only
	// disable for local development over plain HTTP.
	CookieSecure bool `koanf:"cookie_secure" json:"cookie_secure"`

	// CookieTTL is the session cookie lifetime. Shorter than the server
	// side session so an idle browser re-authenticates first.
	CookieTTL time.Duration `koanf:"cookie_ttl" json:"cookie_ttl" jsonschema:"oneof_type=string;integer"`

	// SuccessRedirect is where the browser lands after a successful
	// email verification or OAuth sign-in.
	SuccessRedirect string `koanf:"success_redirect" json:"success_redirect"`

	// ErrorRedirect is where a failed OAuth callback sends the browser,
	// with the reason in an "error" query parameter.
	ErrorRedirect string `koanf:"error_redirect" json:"error_redirect"`

	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout" jsonschema:"oneof_type=string;integer"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout" jsonschema:"oneof_type=string;integer"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout" jsonschema:"oneof_type=string;integer"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Falls back to the
	// DATABASE_URL environment variable when empty.
	URL            string        `koanf:"url" json:"url"`
	MaxConns       int32         `koanf:"max_conns" json:"max_conns"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout" jsonschema:"oneof_type=string;integer"`
}

// SessionConfig configures session issuance.
type SessionConfig struct {
	// TTL is the server side session lifetime.
	TTL time.Duration `koanf:"ttl" json:"ttl" jsonschema:"oneof_type=string;integer"`

	// MaxActive caps the active sessions per account. Zero means
	// unlimited.
	MaxActive int `koanf:"max_active" json:"max_active"`
}

// RegistrationConfig configures account registration and login policy.
type RegistrationConfig struct {
	// RequireVerifiedLogin blocks password login until the address is
	// verified.
	RequireVerifiedLogin bool `koanf:"require_verified_login" json:"require_verified_login"`

	// AllowedDomains restricts registration to matching email domains
	// (glob patterns). Empty allows all.
	AllowedDomains []string `koanf:"allowed_domains" json:"allowed_domains"`

	// DeniedDomains rejects matching email domains. Deny wins over allow.
	DeniedDomains []string `koanf:"denied_domains" json:"denied_domains"`

	// BcryptCost is the password hashing work factor.
	BcryptCost int `koanf:"bcrypt_cost" json:"bcrypt_cost"`

	Password PasswordConfig `koanf:"password" json:"password"`
}

// PasswordConfig is the password strength policy.
type PasswordConfig struct {
	MinLength     int  `koanf:"min_length" json:"min_length"`
	RequireUpper  bool `koanf:"require_upper" json:"require_upper"`
	RequireLower  bool `koanf:"require_lower" json:"require_lower"`
	RequireDigit  bool `koanf:"require_digit" json:"require_digit"`
	RequireSymbol bool `koanf:"require_symbol" json:"require_symbol"`
}

// VerificationConfig configures email verification tokens.
type VerificationConfig struct {
	// Secret signs verification tokens. Required.
	Secret string        `koanf:"secret" json:"secret"`
	TTL    time.Duration `koanf:"ttl" json:"ttl" jsonschema:"oneof_type=string;integer"`
	Issuer string        `koanf:"issuer" json:"issuer"`
}

// GoogleConfig configures the Google OAuth login flow.
type GoogleConfig struct {
	Enabled      bool   `koanf:"enabled" json:"enabled"`
	ClientID     string `koanf:"client_id" json:"client_id"`
	ClientSecret string `koanf:"client_secret" json:"client_secret"`

	// RedirectURL overrides the callback URL derived from
	// server.base_url.
	RedirectURL string `koanf:"redirect_url" json:"redirect_url"`
}

// SMTPConfig configures outbound verification email. An empty host
// switches to logging links instead of sending.
type SMTPConfig struct {
	Host     string `koanf:"host" json:"host"`
	Port     int    `koanf:"port" json:"port"`
	Username string `koanf:"username" json:"username"`
	Password string `koanf:"password" json:"password"`
	From     string `koanf:"from" json:"from"`
	FromName string `koanf:"from_name" json:"from_name"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Format is "json" or "text".
	Format string `koanf:"format" json:"format"`

	// Level is "debug", "info", "warn", or "error".
	Level string `koanf:"level" json:"level"`
}

// ObservabilityConfig configures the metrics/health endpoint.
type ObservabilityConfig struct {
	// MetricsAddr is the metrics/health HTTP address. Empty disables the
	// observability server.
	MetricsAddr string `koanf:"metrics_addr" json:"metrics_addr"`
}

// Default returns the configuration defaults. Values absent from the
// config file and flags keep these.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			BaseURL:         "http://localhost:8080",
			CookieSecure:    true,
			CookieTTL:       24 * time.Hour,
			SuccessRedirect: "/",
			ErrorRedirect:   "/",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:       10,
			ConnectTimeout: 30 * time.Second,
		},
		Session: SessionConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Registration: RegistrationConfig{
			RequireVerifiedLogin: true,
			BcryptCost:           12,
			Password: PasswordConfig{
				MinLength:     8,
				RequireUpper:  true,
				RequireLower:  true,
				RequireDigit:  true,
				RequireSymbol: true,
			},
		},
		Verification: VerificationConfig{
			TTL:    time.Hour,
			Issuer: "accountd",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: "127.0.0.1:9100",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// an optional flag set, in that precedence order. The file is validated
// against the generated JSON Schema before unmarshalling so typos surface
// as schema errors, not silently ignored keys.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator's own flag
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").
				With("path", path).
				Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("path", path).
				Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if c.Server.BaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.base_url is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url or DATABASE_URL is required")
	}
	if c.Verification.Secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("verification.secret is required")
	}
	if c.Session.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session.ttl must be positive")
	}
	if c.Session.MaxActive < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session.max_active must not be negative")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if c.Google.Enabled && (c.Google.ClientID == "" || c.Google.ClientSecret == "") {
		return oops.Code("CONFIG_INVALID").
			Errorf("google.client_id and google.client_secret are required when google login is enabled")
	}
	return nil
}
