package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"
)

// Fixed client identification headers.
const (
	// ClientVersion is sent as the "cv" header on every request.
	ClientVersion = "3.118.5"
	// PlatformWeb is the "cp" header value; the CLI identifies as WEB.
	PlatformWeb = "5"

	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://app.tuta.com"

	defaultUserAgent = "tutanota-cli/" + ClientVersion
	defaultTimeout   = 30 * time.Second
)

// Entity loads are cheap and idempotent, and the session orchestrator owns
// every auth recovery, so the transport re-issues a request only a couple
// of times and only on server overload. 401 is never retried here.
const (
	defaultMaxRetries = 2
	defaultRetryDelay = 500 * time.Millisecond
	retryDelayCap     = 8 * time.Second
)

// transientStatus reports whether a status code signals a server-side
// condition worth re-issuing the same request for: throttling or a
// temporarily failing backend.
func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client is the HTTP API client.
type Client struct {
	baseURL     string
	userAgent   string
	accessToken string
	httpClient  *http.Client
	maxRetries  int
	retryDelay  time.Duration
}

// Option configures the API client.
type Option func(*Client)

// WithBaseURL sets the base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxRetries sets how often a transiently failing request is
// re-issued. Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the first retry delay; it doubles per attempt.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// New creates a new API client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: defaultUserAgent,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAccessToken sets the access token sent on authenticated requests.
// An empty token clears it.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// retryBackoff is the wait before re-issuing attempt n: the base delay
// doubled per attempt, capped, with the upper half randomized so parallel
// folder loads do not hammer a recovering backend in lockstep.
func (c *Client) retryBackoff(attempt int) time.Duration {
	delay := c.retryDelay << attempt
	if delay > retryDelayCap {
		delay = retryDelayCap
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do issues one request against path. modelVersion is the "v" header.
// A GET body is encoded as the _body query parameter; other methods carry
// it as JSON. The parsed JSON response is decoded into result when non-nil.
func (c *Client) do(ctx context.Context, method, path, modelVersion string, query url.Values, body, result any) error {
	var bodyData []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		if method == http.MethodGet {
			if query == nil {
				query = url.Values{}
			}
			query.Set("_body", string(data))
		} else {
			bodyData = data
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyData != nil {
			bodyReader = bytes.NewReader(bodyData)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(req, modelVersion)

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return &NetworkError{Err: err, URL: u}
		}
		if attempt >= c.maxRetries || !transientStatus(resp.StatusCode) {
			break
		}
		resp.Body.Close()
		if err := sleep(ctx, c.retryBackoff(attempt)); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: string(text)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, modelVersion string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("v", modelVersion)
	req.Header.Set("cv", ClientVersion)
	req.Header.Set("cp", PlatformWeb)
	req.Header.Set("User-Agent", c.userAgent)
	if c.accessToken != "" {
		req.Header.Set("accessToken", c.accessToken)
	}
}
