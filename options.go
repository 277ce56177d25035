package tuta

import (
	"net/http"
)

// defaultMaxInFlight bounds the fan-out of concurrent entity loads during
// folder and mail enumeration.
const defaultMaxInFlight = 5

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL     string
	httpClient  *http.Client
	userAgent   string
	maxInFlight int
	callbacks   *DecryptCallbacks
	logger      Logger
}

// Option configures the client.
type Option func(*clientConfig)

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithMaxInFlight bounds the number of simultaneous entity loads during
// list decryption. Values below one fall back to the default of five.
func WithMaxInFlight(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.maxInFlight = n
		}
	}
}

// WithDecryptCallbacks installs diagnostic callbacks on the decryptor.
func WithDecryptCallbacks(cb *DecryptCallbacks) Option {
	return func(c *clientConfig) {
		c.callbacks = cb
	}
}

// WithLogger gives this client its own diagnostics sink instead of the
// process-wide logger installed with SetLogger.
func WithLogger(l Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
