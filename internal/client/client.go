// Package client provides the retrying, OAuth-authenticated HTTP core shared
// by the identity-platform and CIEM API clients.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/joshsymonds/accesslens/pkg/logger"
)

// Rate-limit retry policy: HTTP 429 is retried with exponential backoff up
// to maxRetries attempts; every other failure is surfaced immediately.
const (
	defaultMaxRetries    = 10
	defaultRetryInterval = 2 * time.Second
)

// Config configures a Client.
type Config struct {
	// HTTPClient overrides the underlying transport; used by tests.
	// When set, OAuth token handling is skipped.
	HTTPClient   *http.Client
	Logger       logger.Logger
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	MaxRetries   uint64
	// RetryInterval overrides the initial retry backoff; used by tests.
	RetryInterval time.Duration
}

// Client is an HTTP client with an OAuth client-credentials token cache and
// bounded retry on rate-limit responses.
type Client struct {
	http          *http.Client
	logger        logger.Logger
	baseURL       string
	maxRetries    uint64
	retryInterval time.Duration
	calls         atomic.Int64
}

// New creates a Client. The OAuth token source caches the access token and
// refreshes it when absent or expired.
func New(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		creds := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		base := &http.Client{Timeout: 2 * time.Minute}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = oauth2.NewClient(ctx, creds.TokenSource(ctx))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	retryInterval := cfg.RetryInterval
	if retryInterval == 0 {
		retryInterval = defaultRetryInterval
	}

	return &Client{
		http:          httpClient,
		logger:        log,
		baseURL:       cfg.BaseURL,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
	}
}

// Calls returns the number of API requests issued, including retries.
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// BaseURL returns the base URL requests are issued against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response after retries were exhausted or skipped.
type APIError struct {
	Method     string
	URL        string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Get issues a GET request against the configured base URL and decodes the
// JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST request with a JSON body and decodes the JSON response
// into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	operation := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, requestURL, bytes.NewReader(payload))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		c.calls.Add(1)
		resp, err := c.http.Do(req)
		if err != nil {
			// Transport errors are not retried; the pipeline treats them
			// as "no data" and continues.
			return nil, backoff.Permanent(err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			c.logger.Debug("Rate limited, retrying request",
				"method", method,
				"url", requestURL,
			)
			return nil, fmt.Errorf("rate limited: %s %s", method, requestURL)
		}
		return resp, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval

	resp, err := backoff.RetryWithData(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
	if err != nil {
		return fmt.Errorf("requesting %s %s: %w", method, requestURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Request config is logged without credentials: the Authorization
		// header never leaves the transport.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			Method:     method,
			URL:        requestURL,
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, requestURL, err)
	}
	return nil
}
