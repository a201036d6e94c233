package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"TRANSPORT",
	"SMTP_LISTEN", "SMTP_DOMAIN", "SMTP_USERNAME", "SMTP_PASSWORD",
	"SMTP_MAX_MESSAGE_SIZE", "SMTP_ALLOW_INSECURE_AUTH",
	"MAILTRAP_TOKEN", "MAILTRAP_ENDPOINT", "MAILTRAP_CONNECT_TIMEOUT", "MAILTRAP_TIMEOUT", "MAILTRAP_PROXY",
	"SES_REGION", "SES_ACCESS_KEY_ID", "SES_SECRET_ACCESS_KEY", "SES_SENDER",
	"GRAPH_TENANT_ID", "GRAPH_CLIENT_ID", "GRAPH_CLIENT_SECRET", "GRAPH_SENDER",
	"RESEND_API_KEY", "RESEND_SENDER",
	"TLS_CERT_FILE", "TLS_KEY_FILE", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envVars {
		t.Setenv(env, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "stdout", cfg.Transport)
	assert.Equal(t, ":2525", cfg.SMTP.Listen)
	assert.Equal(t, "localhost", cfg.SMTP.Domain)
	assert.Equal(t, int64(26214400), cfg.SMTP.MaxMessageSize)
	assert.Equal(t, 100, cfg.SMTP.MaxRecipients)
	assert.False(t, cfg.SMTP.AllowInsecureAuth)
	assert.Empty(t, cfg.Mailtrap.Token)
	assert.Empty(t, cfg.Mailtrap.Endpoint)
	assert.Zero(t, cfg.Mailtrap.HTTP.ConnectTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TRANSPORT", "mailtrap")
	t.Setenv("SMTP_LISTEN", ":9025")
	t.Setenv("SMTP_USERNAME", "admin")
	t.Setenv("SMTP_PASSWORD", "secret123")
	t.Setenv("SMTP_MAX_MESSAGE_SIZE", "10485760")
	t.Setenv("SMTP_ALLOW_INSECURE_AUTH", "true")
	t.Setenv("MAILTRAP_TOKEN", "tok")
	t.Setenv("MAILTRAP_ENDPOINT", "sandbox.api.mailtrap.io")
	t.Setenv("MAILTRAP_CONNECT_TIMEOUT", "5s")
	t.Setenv("MAILTRAP_TIMEOUT", "30s")
	t.Setenv("MAILTRAP_PROXY", "http://proxy.local:3128")
	t.Setenv("SES_REGION", "us-east-1")
	t.Setenv("RESEND_API_KEY", "re_123")
	t.Setenv("TLS_CERT_FILE", "/certs/cert.pem")
	t.Setenv("TLS_KEY_FILE", "/certs/key.pem")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mailtrap", cfg.Transport)
	assert.Equal(t, ":9025", cfg.SMTP.Listen)
	assert.True(t, cfg.AuthEnabled())
	assert.Equal(t, int64(10485760), cfg.SMTP.MaxMessageSize)
	assert.True(t, cfg.SMTP.AllowInsecureAuth)
	assert.Equal(t, "tok", cfg.Mailtrap.Token)
	assert.Equal(t, "sandbox.api.mailtrap.io", cfg.Mailtrap.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.Mailtrap.HTTP.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.Mailtrap.HTTP.Timeout)
	assert.Equal(t, "http://proxy.local:3128", cfg.Mailtrap.HTTP.Proxy)
	assert.Equal(t, "us-east-1", cfg.SES.Region)
	assert.Equal(t, "re_123", cfg.Resend.APIKey)
	assert.Equal(t, "/certs/cert.pem", cfg.TLS.CertFile)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_InvalidEnvValues(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{env: "SMTP_MAX_MESSAGE_SIZE", value: "lots"},
		{env: "SMTP_ALLOW_INSECURE_AUTH", value: "maybe"},
		{env: "MAILTRAP_CONNECT_TIMEOUT", value: "sixty"},
		{env: "MAILTRAP_TIMEOUT", value: "10"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.env, tt.value)

			_, err := Load()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.env)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	yamlContent := `
transport: mailtrap
smtp:
  listen: ":3025"
  username: "yamluser"
  password: "yamlpass"
  max_message_size: 5242880
mailtrap:
  token: "yaml-token"
  endpoint: "bulk.api.mailtrap.io"
  http:
    connect_timeout: 10s
    timeout: 2m
    max_idle_conns: 16
graph:
  tenant_id: "yaml-tenant"
tls:
  cert_file: "/yaml/cert.pem"
  key_file: "/yaml/key.pem"
logging:
  level: "warn"
`

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	clearEnv(t)

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	assert.Equal(t, "mailtrap", cfg.Transport)
	assert.Equal(t, ":3025", cfg.SMTP.Listen)
	assert.Equal(t, "yamluser", cfg.SMTP.Username)
	assert.Equal(t, int64(5242880), cfg.SMTP.MaxMessageSize)
	assert.Equal(t, "yaml-token", cfg.Mailtrap.Token)
	assert.Equal(t, "bulk.api.mailtrap.io", cfg.Mailtrap.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Mailtrap.HTTP.ConnectTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Mailtrap.HTTP.Timeout)
	assert.Equal(t, 16, cfg.Mailtrap.HTTP.MaxIdleConns)
	assert.Equal(t, "yaml-tenant", cfg.Graph.TenantID)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// Untouched defaults survive the YAML layer.
	assert.Equal(t, "localhost", cfg.SMTP.Domain)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("mailtrap:\n  token: from-yaml\n"), 0o644))

	clearEnv(t)
	t.Setenv("MAILTRAP_TOKEN", "from-env")

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Mailtrap.Token)
}

func TestLoadFromFile_Errors(t *testing.T) {
	clearEnv(t)

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("smtp: [unclosed"), 0o644))
	_, err = LoadFromFile(bad)
	require.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "mailtrap without token", mutate: func(c *Config) { c.Transport = "mailtrap" }, wantErr: true},
		{name: "mailtrap with token", mutate: func(c *Config) {
			c.Transport = "mailtrap"
			c.Mailtrap.Token = "tok"
		}},
		{name: "ses without sender", mutate: func(c *Config) {
			c.Transport = "ses"
			c.SES.Region = "eu-west-1"
		}, wantErr: true},
		{name: "ses configured", mutate: func(c *Config) {
			c.Transport = "ses"
			c.SES = SESConfig{Region: "eu-west-1", Sender: "s@example.com"}
		}},
		{name: "graph incomplete", mutate: func(c *Config) {
			c.Transport = "graph"
			c.Graph.TenantID = "t"
		}, wantErr: true},
		{name: "resend without key", mutate: func(c *Config) { c.Transport = "resend" }, wantErr: true},
		{name: "cert without key", mutate: func(c *Config) { c.TLS.CertFile = "/c.pem" }, wantErr: true},
		{name: "zero message size", mutate: func(c *Config) { c.SMTP.MaxMessageSize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestGraphConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		graph  GraphConfig
		expect bool
	}{
		{name: "all set", graph: GraphConfig{TenantID: "t", ClientID: "c", ClientSecret: "s", Sender: "sender@example.com"}, expect: true},
		{name: "missing tenant_id", graph: GraphConfig{ClientID: "c", ClientSecret: "s", Sender: "sender@example.com"}},
		{name: "missing client_secret", graph: GraphConfig{TenantID: "t", ClientID: "c", Sender: "sender@example.com"}},
		{name: "none set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{Graph: tt.graph}
			assert.Equal(t, tt.expect, cfg.GraphConfigured())
		})
	}
}

func TestAuthEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		password string
		expect   bool
	}{
		{name: "both set", username: "user", password: "pass", expect: true},
		{name: "username only", username: "user"},
		{name: "password only", password: "pass"},
		{name: "neither set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{SMTP: SMTPConfig{Username: tt.username, Password: tt.password}}
			assert.Equal(t, tt.expect, cfg.AuthEnabled())
		})
	}
}
