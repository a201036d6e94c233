package mailtrap

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/shineum/mailtrap-relay/internal/config"
)

// DefaultConnectTimeout applies when the configuration leaves the connect
// timeout unset.
const DefaultConnectTimeout = 60 * time.Second

// NewHTTPClient builds the HTTP client used for Send API calls. Options from
// cfg are layered over the defaults; an explicit ConnectTimeout is kept.
func NewHTTPClient(cfg config.HTTPConfig) (*http.Client, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = newDialer(cfg).DialContext

	if cfg.TLSHandshakeTimeout > 0 {
		base.TLSHandshakeTimeout = cfg.TLSHandshakeTimeout
	}
	if cfg.ResponseHeaderTimeout > 0 {
		base.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
	}
	if cfg.IdleConnTimeout > 0 {
		base.IdleConnTimeout = cfg.IdleConnTimeout
	}
	if cfg.MaxIdleConns > 0 {
		base.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		base.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Transport: base,
		Timeout:   cfg.Timeout,
	}, nil
}

// newDialer returns the dialer for Send API connections. A zero
// ConnectTimeout means unset and gets DefaultConnectTimeout.
func newDialer(cfg config.HTTPConfig) *net.Dialer {
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
}
