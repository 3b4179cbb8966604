package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/accesslens/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(Config{
		HTTPClient:    server.Client(),
		BaseURL:       server.URL,
		Logger:        logger.NewMockLogger(),
		MaxRetries:    3,
		RetryInterval: time.Millisecond,
	})
	return c, server
}

func TestGetDecodesJSON(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/accounts", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "bob"}`))
	}))

	var out struct {
		Name string `json:"name"`
	}
	query := url.Values{}
	query.Set("limit", "7")
	require.NoError(t, c.Get(context.Background(), "/v3/accounts", query, &out))
	assert.Equal(t, "bob", out.Name)
	assert.Equal(t, int64(1), c.Calls())
}

func TestPostSendsJSONBody(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`[]`))
	}))

	var out []string
	body := map[string]string{"query": "id:\"x\""}
	require.NoError(t, c.Post(context.Background(), "/v3/search", body, &out))
	assert.Empty(t, out)
}

func TestRateLimitedRequestsAreRetried(t *testing.T) {
	var attempts atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.Get(context.Background(), "/v3/accounts", nil, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int64(3), attempts.Load())
	assert.Equal(t, int64(3), c.Calls())
}

func TestRateLimitRetriesAreBounded(t *testing.T) {
	var attempts atomic.Int64
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	err := c.Get(context.Background(), "/v3/accounts", nil, nil)
	require.Error(t, err)
	// Initial attempt plus MaxRetries.
	assert.Equal(t, int64(4), attempts.Load())
}

func TestNonSuccessStatusReturnsAPIError(t *testing.T) {
	c, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detailCode": "403 Forbidden"}`))
	}))

	err := c.Get(context.Background(), "/v3/accounts", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, http.MethodGet, apiErr.Method)
	assert.Contains(t, apiErr.URL, server.URL)
	assert.Contains(t, apiErr.Body, "Forbidden")
}

func TestTransportErrorsAreNotRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := New(Config{
		HTTPClient:    &http.Client{},
		BaseURL:       server.URL,
		Logger:        logger.NewMockLogger(),
		RetryInterval: time.Millisecond,
	})

	err := c.Get(context.Background(), "/v3/accounts", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int64(1), c.Calls())
}
