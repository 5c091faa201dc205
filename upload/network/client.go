// Package network implements the wire protocols of the video upload service:
// line discovery and probing, upload session negotiation, and the chunk and
// finalize requests of the upos and kodo backends.
package network

import (
	"net/http"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
)

// Client uploads files to the video upload service.
// It is safe for concurrent use; all requests share the configured http.Client.
type Client struct {
	config Config
	logger log.Logger
	api    apiClient

	// apiHTTPClient sends discovery, probe, preupload and finalize requests once.
	apiHTTPClient  *retryablehttp.Client
	uposHTTPClient *retryablehttp.Client
	kodoHTTPClient *retryablehttp.Client
}

// NewClient creates a Client. Zero fields of config are replaced by their defaults.
func NewClient(config Config, logger log.Logger) *Client {
	config = config.withDefaults()

	return &Client{
		config:         config,
		logger:         logger,
		api:            newAPIClient(config.UserAgent, config.Scheme, logger),
		apiHTTPClient:  newRetryableClient(config.HTTPClient, NoRetry(), logger),
		uposHTTPClient: newRetryableClient(withTimeout(config.HTTPClient, uposRequestTimeout), config.Retry, logger),
		kodoHTTPClient: newRetryableClient(withTimeout(config.HTTPClient, kodoRequestTimeout), config.Retry, logger),
	}
}

// withTimeout returns a copy of client sharing its transport and cookie jar.
func withTimeout(client *http.Client, timeout time.Duration) *http.Client {
	c := *client
	c.Timeout = timeout
	return &c
}
