// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func newFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(f)
	return f
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.Dev)
	assert.Equal(t, auth.DefaultBcryptCost, cfg.Auth.BcryptCost)
	assert.Equal(t, auth.DefaultTokenIDBytes, cfg.Auth.TokenIDBytes)
	assert.Equal(t, int64(auth.DefaultTokenTTL), cfg.Auth.DefaultTokenTTL)
	assert.True(t, cfg.TokenLookup.SearchDefaultKeys)
	assert.True(t, cfg.TokenLookup.BearerBase64)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database_url: postgres://db.internal:5432/gatehouse
listen_addr: ":9999"
log_format: text
auth:
  realm_required: true
  realm_delimiter: ":"
  default_token_ttl: 3600
token_lookup:
  headers:
    - X-Session-Token
`)

	cfg, err := Load(path, newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, "postgres://db.internal:5432/gatehouse", cfg.DatabaseURL)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.Auth.RealmRequired)
	assert.Equal(t, ":", cfg.Auth.RealmDelimiter)
	assert.Equal(t, int64(3600), cfg.Auth.DefaultTokenTTL)
	assert.Equal(t, []string{"X-Session-Token"}, cfg.TokenLookup.Headers)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := writeConfigFile(t, `listen_addr: ":9999"`)

	flags := newFlags(t)
	require.NoError(t, flags.Parse([]string{"--listen_addr=:7777"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.ListenAddr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/gatehouse.yaml", newFlags(t))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_FAILED")
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		DatabaseURL: "postgres://localhost/gatehouse",
		LogFormat:   "json",
		Auth:        AuthConfig{DefaultTokenTTL: 3600},
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "valid", mutate: func(*Config) {}, ok: true},
		{name: "dev mode needs no database", mutate: func(c *Config) {
			c.DatabaseURL = ""
			c.Dev = true
		}, ok: true},
		{name: "missing database url", mutate: func(c *Config) { c.DatabaseURL = "" }},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }},
		{name: "negative token id bytes", mutate: func(c *Config) { c.Auth.TokenIDBytes = -1 }},
		{name: "zero default ttl", mutate: func(c *Config) { c.Auth.DefaultTokenTTL = 0 }},
		{name: "ttl below eternal", mutate: func(c *Config) { c.Auth.DefaultTokenTTL = -5 }},
		{name: "eternal default ttl allowed", mutate: func(c *Config) {
			c.Auth.DefaultTokenTTL = auth.EternalTTL
		}, ok: true},
		{name: "tls cert and key together", mutate: func(c *Config) {
			c.TLSCert = "/etc/gatehouse/server.crt"
			c.TLSKey = "/etc/gatehouse/server.key"
		}, ok: true},
		{name: "tls cert without key", mutate: func(c *Config) { c.TLSCert = "/etc/gatehouse/server.crt" }},
		{name: "tls key without cert", mutate: func(c *Config) { c.TLSKey = "/etc/gatehouse/server.key" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			}
		})
	}
}

func TestConfig_Conversions(t *testing.T) {
	cfg := Config{
		Auth: AuthConfig{
			CaseSensitiveEmail: true,
			RealmRequired:      true,
			RealmDelimiter:     ":",
			DefaultTokenTTL:    600,
		},
		TokenLookup: TokenLookupConfig{
			Headers:           []string{"X-Session-Token"},
			SearchDefaultKeys: true,
			BearerBase64:      true,
		},
	}

	settings := cfg.Settings()
	assert.True(t, settings.CaseSensitiveEmail)
	assert.True(t, settings.RealmRequired)
	assert.Equal(t, ":", settings.RealmDelimiter)
	assert.Equal(t, int64(600), settings.DefaultTokenTTL)

	lookup := cfg.Lookup()
	assert.Equal(t, []string{"X-Session-Token"}, lookup.Headers)
	assert.True(t, lookup.SearchDefaultKeys)
	assert.True(t, lookup.BearerTokenBase64Encoded)
}
