package config

import (
	"crypto/tls"
	"fmt"
	"time"
)

// BaseHTTPConfig holds common HTTP client configuration settings.
type BaseHTTPConfig struct {
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	Timeout          time.Duration
	TLSClientConfig  *tls.Config
	Proxy            string
}

// RestyHttpClientConfig holds additional configuration settings for the resty http client.
type RestyHttpClientConfig struct {
	BaseHTTPConfig
	Debug bool
}

// DefaultHttpConfig returns the base configuration applicable to all HTTP clients.
func DefaultHttpConfig() BaseHTTPConfig {
	return BaseHTTPConfig{
		RetryCount:       3,
		RetryWaitTime:    2 * time.Second,
		RetryMaxWaitTime: 10 * time.Second,
		Timeout:          5 * time.Minute,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// RestyConfigFrom merges the YAML http_client directive over the defaults.
func RestyConfigFrom(cfg *Config) RestyHttpClientConfig {
	base := DefaultHttpConfig()
	if cfg == nil {
		return RestyHttpClientConfig{BaseHTTPConfig: base}
	}
	h := cfg.HTTPClient
	base.RetryCount = SetThen(h.RetryCount, base.RetryCount)
	base.RetryWaitTime = SetThen(h.RetryWaitTime, base.RetryWaitTime)
	base.RetryMaxWaitTime = SetThen(h.RetryMaxWaitTime, base.RetryMaxWaitTime)
	base.Timeout = SetThen(h.Timeout, base.Timeout)
	if !GetBoolValue(cfg, "HTTPClient.TLSClientConfig.Verify", true) {
		base.TLSClientConfig.InsecureSkipVerify = true
	}
	if h.Proxy.Host != "" && h.Proxy.Port != 0 {
		base.Proxy = fmt.Sprintf("%s:%d", h.Proxy.Host, h.Proxy.Port)
	}
	return RestyHttpClientConfig{
		BaseHTTPConfig: base,
		Debug:          GetBoolValue(cfg, "HTTPClient.Debug", false),
	}
}
