// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads the immutable service configuration from an optional
// YAML file overlaid with command-line flags. There are no process-wide
// mutable settings; the loaded Config is passed into constructors.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Config is the complete service configuration.
type Config struct {
	DatabaseURL string `koanf:"database_url"`
	ListenAddr  string `koanf:"listen_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	LogFormat   string `koanf:"log_format"`
	Dev         bool   `koanf:"dev"`
	TLSCert     string `koanf:"tls_cert"`
	TLSKey      string `koanf:"tls_key"`

	Auth        AuthConfig        `koanf:"auth"`
	TokenLookup TokenLookupConfig `koanf:"token_lookup"`
}

// AuthConfig holds the credential and token policies.
type AuthConfig struct {
	BcryptCost         int    `koanf:"bcrypt_cost"`
	TokenIDBytes       int    `koanf:"token_id_bytes"`
	DefaultTokenTTL    int64  `koanf:"default_token_ttl"`
	AllowEternalTokens bool   `koanf:"allow_eternal_tokens"`
	CaseSensitiveEmail bool   `koanf:"case_sensitive_email"`
	RealmRequired      bool   `koanf:"realm_required"`
	RealmDelimiter     string `koanf:"realm_delimiter"`
}

// TokenLookupConfig enumerates where inbound requests are searched for a
// token id.
type TokenLookupConfig struct {
	Params            []string `koanf:"params"`
	Headers           []string `koanf:"headers"`
	Cookies           []string `koanf:"cookies"`
	SearchDefaultKeys bool     `koanf:"search_default_keys"`
	BearerBase64      bool     `koanf:"bearer_base64"`
}

// RegisterFlags declares the configuration flags with their defaults.
// posflag uses these defaults for keys the file does not set.
func RegisterFlags(f *pflag.FlagSet) {
	f.String("database_url", "postgres://localhost:5432/gatehouse", "PostgreSQL connection string")
	f.String("listen_addr", ":8080", "auth API listen address")
	f.String("metrics_addr", ":9100", "metrics and health listen address")
	f.String("log_format", "json", "log format: json or text")
	f.Bool("dev", false, "run with the in-memory store")
	f.String("tls_cert", "", "path to the TLS certificate for the auth API")
	f.String("tls_key", "", "path to the TLS key for the auth API")

	f.Int("auth.bcrypt_cost", auth.DefaultBcryptCost, "bcrypt work factor")
	f.Int("auth.token_id_bytes", auth.DefaultTokenIDBytes, "random bytes per token id")
	f.Int64("auth.default_token_ttl", auth.DefaultTokenTTL, "default token ttl in seconds")
	f.Bool("auth.allow_eternal_tokens", false, "honor ttl=-1 tokens")
	f.Bool("auth.case_sensitive_email", false, "compare emails case-sensitively")
	f.Bool("auth.realm_required", false, "require a realm on login")
	f.String("auth.realm_delimiter", "", "delimiter for realm-prefixed identifiers")

	f.StringSlice("token_lookup.params", nil, "additional token parameter names")
	f.StringSlice("token_lookup.headers", nil, "additional token header names")
	f.StringSlice("token_lookup.cookies", nil, "additional token cookie names")
	f.Bool("token_lookup.search_default_keys", true, "search the default token keys")
	f.Bool("token_lookup.bearer_base64", true, "treat Bearer header values as base64")
}

// Load reads the optional YAML file at path, overlays changed flags, and
// validates the result.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && !c.Dev {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log_format must be json or text")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return oops.Code("CONFIG_INVALID").Errorf("tls_cert and tls_key must be set together")
	}
	if c.Auth.TokenIDBytes < 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.token_id_bytes must be positive")
	}
	if c.Auth.DefaultTokenTTL == 0 || c.Auth.DefaultTokenTTL < auth.EternalTTL {
		return oops.Code("CONFIG_INVALID").
			With("ttl", c.Auth.DefaultTokenTTL).
			Errorf("auth.default_token_ttl must be positive or %d", auth.EternalTTL)
	}
	return nil
}

// Settings converts the auth section into the Service's policy struct.
func (c *Config) Settings() auth.Settings {
	return auth.Settings{
		CaseSensitiveEmail: c.Auth.CaseSensitiveEmail,
		RealmRequired:      c.Auth.RealmRequired,
		RealmDelimiter:     c.Auth.RealmDelimiter,
		DefaultTokenTTL:    c.Auth.DefaultTokenTTL,
	}
}

// Lookup converts the token lookup section into the resolver configuration.
func (c *Config) Lookup() auth.TokenLookup {
	return auth.TokenLookup{
		Params:                   c.TokenLookup.Params,
		Headers:                  c.TokenLookup.Headers,
		Cookies:                  c.TokenLookup.Cookies,
		SearchDefaultKeys:        c.TokenLookup.SearchDefaultKeys,
		BearerTokenBase64Encoded: c.TokenLookup.BearerBase64,
	}
}
