package network

import (
	"net/http"
	"time"

	"github.com/bitrise-io/go-videoupload/upload/network/chunkuploader"
)

const (
	// DefaultBaseURL is the member API serving line discovery and preupload.
	DefaultBaseURL = "https://member.bilibili.com"
	// DefaultScheme is prepended to the protocol-relative URLs returned by the API.
	DefaultScheme = "https:"
	// DefaultUserAgent is sent with every request unless configured otherwise.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/63.0.3239.108"

	referer = "https://www.bilibili.com/"

	uposRequestTimeout = 300 * time.Second
	kodoRequestTimeout = 60 * time.Second
)

// Config holds configuration for the upload client.
type Config struct {
	// HTTPClient carries the authenticated session (cookie jar) and the transport.
	// If nil, DefaultHTTPClient is used.
	HTTPClient *http.Client

	// UserAgent is sent with every request.
	// Default: DefaultUserAgent
	UserAgent string

	// Concurrency is the maximum number of parallel chunk uploads per file.
	// Default: 3
	Concurrency int

	// Retry configures the retries of chunk requests.
	// Default: DefaultRetryPolicy()
	Retry RetryPolicy

	// BaseURL of the member API.
	// Default: DefaultBaseURL
	BaseURL string

	// Scheme resolves protocol-relative URLs ("//host/path").
	// Default: DefaultScheme
	Scheme string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		HTTPClient:  nil, // Will be created by NewClient
		UserAgent:   DefaultUserAgent,
		Concurrency: chunkuploader.DefaultConcurrency,
		Retry:       DefaultRetryPolicy(),
		BaseURL:     DefaultBaseURL,
		Scheme:      DefaultScheme,
	}
}

// DefaultHTTPClient creates an HTTP client for chunk uploads.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		// No timeout - per-backend request timeouts are set by the client
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.HTTPClient == nil {
		c.HTTPClient = DefaultHTTPClient()
	}
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.Concurrency < 1 {
		c.Concurrency = defaults.Concurrency
	}
	if c.Retry == (RetryPolicy{}) {
		c.Retry = defaults.Retry
	}
	if c.BaseURL == "" {
		c.BaseURL = defaults.BaseURL
	}
	if c.Scheme == "" {
		c.Scheme = defaults.Scheme
	}
	return c
}
