// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the relay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultMaxMessageSize is 25 MB in bytes.
const defaultMaxMessageSize = 26214400

// DefaultTransport is used when no transport is selected.
const DefaultTransport = "stdout"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete application configuration.
type Config struct {
	Transport string         `yaml:"transport"`
	SMTP      SMTPConfig     `yaml:"smtp"`
	Mailtrap  MailtrapConfig `yaml:"mailtrap"`
	SES       SESConfig      `yaml:"ses"`
	Graph     GraphConfig    `yaml:"graph"`
	Resend    ResendConfig   `yaml:"resend"`
	TLS       TLSConfig      `yaml:"tls"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Listen            string        `yaml:"listen"`
	Domain            string        `yaml:"domain"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxMessageSize    int64         `yaml:"max_message_size"`
	MaxRecipients     int           `yaml:"max_recipients"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	AllowInsecureAuth bool          `yaml:"allow_insecure_auth"`
}

// MailtrapConfig holds the Mailtrap Send API settings.
type MailtrapConfig struct {
	Token    string     `yaml:"token"`
	Endpoint string     `yaml:"endpoint"`
	HTTP     HTTPConfig `yaml:"http"`
}

// HTTPConfig holds HTTP client options for API-backed transports.
// Zero values mean "use the client default".
type HTTPConfig struct {
	ConnectTimeout        time.Duration `yaml:"connect_timeout"`
	Timeout               time.Duration `yaml:"timeout"`
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout"`
	MaxIdleConns          int           `yaml:"max_idle_conns"`
	Proxy                 string        `yaml:"proxy"`
}

// SESConfig holds AWS SES settings.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// ResendConfig holds Resend API settings.
type ResendConfig struct {
	APIKey string `yaml:"api_key"`
	Sender string `yaml:"sender"`
}

// TLSConfig holds TLS certificate file paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the selected transport has what it needs.
func (c *Config) Validate() error {
	switch c.Transport {
	case "mailtrap":
		if c.Mailtrap.Token == "" {
			return fmt.Errorf("%w: mailtrap transport requires MAILTRAP_TOKEN", ErrInvalidConfig)
		}
	case "ses":
		if !c.SESConfigured() {
			return fmt.Errorf("%w: ses transport requires SES_REGION and SES_SENDER", ErrInvalidConfig)
		}
	case "graph":
		if !c.GraphConfigured() {
			return fmt.Errorf("%w: graph transport requires GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET and GRAPH_SENDER", ErrInvalidConfig)
		}
	case "resend":
		if c.Resend.APIKey == "" {
			return fmt.Errorf("%w: resend transport requires RESEND_API_KEY", ErrInvalidConfig)
		}
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("%w: TLS_CERT_FILE and TLS_KEY_FILE must be set together", ErrInvalidConfig)
	}
	if c.SMTP.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: max message size must be positive", ErrInvalidConfig)
	}
	return nil
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// SESConfigured returns true if the SES region and sender are set.
// Credentials may come from the default AWS chain.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// AuthEnabled returns true if both SMTP username and password are set.
func (c *Config) AuthEnabled() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

func (c *Config) applyDefaults() {
	c.Transport = DefaultTransport
	c.SMTP.Listen = ":2525"
	c.SMTP.Domain = "localhost"
	c.SMTP.MaxMessageSize = defaultMaxMessageSize
	c.SMTP.MaxRecipients = 100
	c.SMTP.ReadTimeout = 60 * time.Second
	c.SMTP.WriteTimeout = 60 * time.Second
	c.Logging.Level = "info"
	c.Logging.Format = "json"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() error {
	setString(&c.Transport, "TRANSPORT")

	setString(&c.SMTP.Listen, "SMTP_LISTEN")
	setString(&c.SMTP.Domain, "SMTP_DOMAIN")
	setString(&c.SMTP.Username, "SMTP_USERNAME")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	if v := os.Getenv("SMTP_MAX_MESSAGE_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: SMTP_MAX_MESSAGE_SIZE: %v", ErrInvalidConfig, err)
		}
		c.SMTP.MaxMessageSize = size
	}
	if v := os.Getenv("SMTP_ALLOW_INSECURE_AUTH"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: SMTP_ALLOW_INSECURE_AUTH: %v", ErrInvalidConfig, err)
		}
		c.SMTP.AllowInsecureAuth = allow
	}

	setString(&c.Mailtrap.Token, "MAILTRAP_TOKEN")
	setString(&c.Mailtrap.Endpoint, "MAILTRAP_ENDPOINT")
	setString(&c.Mailtrap.HTTP.Proxy, "MAILTRAP_PROXY")
	if err := setDuration(&c.Mailtrap.HTTP.ConnectTimeout, "MAILTRAP_CONNECT_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Mailtrap.HTTP.Timeout, "MAILTRAP_TIMEOUT"); err != nil {
		return err
	}

	setString(&c.SES.Region, "SES_REGION")
	setString(&c.SES.AccessKeyID, "SES_ACCESS_KEY_ID")
	setString(&c.SES.SecretAccessKey, "SES_SECRET_ACCESS_KEY")
	setString(&c.SES.Sender, "SES_SENDER")

	setString(&c.Graph.TenantID, "GRAPH_TENANT_ID")
	setString(&c.Graph.ClientID, "GRAPH_CLIENT_ID")
	setString(&c.Graph.ClientSecret, "GRAPH_CLIENT_SECRET")
	setString(&c.Graph.Sender, "GRAPH_SENDER")

	setString(&c.Resend.APIKey, "RESEND_API_KEY")
	setString(&c.Resend.Sender, "RESEND_SENDER")

	setString(&c.TLS.CertFile, "TLS_CERT_FILE")
	setString(&c.TLS.KeyFile, "TLS_KEY_FILE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, env, err)
	}
	*dst = d
	return nil
}
