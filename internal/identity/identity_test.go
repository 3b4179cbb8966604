package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/accesslens/internal/client"
	"github.com/joshsymonds/accesslens/internal/models"
	"github.com/joshsymonds/accesslens/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api := client.New(client.Config{
		HTTPClient:    server.Client(),
		BaseURL:       server.URL,
		Logger:        logger.NewMockLogger(),
		RetryInterval: time.Millisecond,
	})
	return NewClient(api, logger.NewMockLogger())
}

func TestListAccountsByNativeIdentitiesChunksFilters(t *testing.T) {
	var filters []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/accounts", r.URL.Path)
		filters = append(filters, r.URL.Query().Get("filters"))
		_, _ = w.Write([]byte(`[{"id": "acct-1", "nativeIdentity": "bob"}]`))
	}))

	accounts, err := c.ListAccountsByNativeIdentities(context.Background(), []string{"bob", "alice", "carol"}, false, 2)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	require.Len(t, filters, 2)
	assert.Equal(t, `nativeIdentity in ("bob", "alice")`, filters[0])
	assert.Equal(t, `nativeIdentity in ("carol")`, filters[1])
}

func TestListAccountsByNativeIdentitiesCorrelatedOnly(t *testing.T) {
	var filter string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter = r.URL.Query().Get("filters")
		_, _ = w.Write([]byte(`[]`))
	}))

	_, err := c.ListAccountsByNativeIdentities(context.Background(), []string{"bob"}, true, 75)
	require.NoError(t, err)
	assert.Equal(t, `nativeIdentity in ("bob") and uncorrelated eq false`, filter)
}

func TestListAccountsByNativeIdentitiesEmptyInput(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty input")
	}))

	accounts, err := c.ListAccountsByNativeIdentities(context.Background(), nil, false, 75)
	require.NoError(t, err)
	assert.Nil(t, accounts)
}

func TestSearchIdentitiesByIDs(t *testing.T) {
	var request struct {
		Query struct {
			Query string `json:"query"`
		} `json:"query"`
		QueryResultFilter struct {
			Includes []string `json:"includes"`
		} `json:"queryResultFilter"`
		Indices []string `json:"indices"`
		Sort    []string `json:"sort"`
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		_, _ = w.Write([]byte(`[{"id": "id-1", "displayName": "Bob B"}]`))
	}))

	identities, err := c.SearchIdentitiesByIDs(context.Background(), []string{"id-1", "id-2"}, []string{"id", "displayName"})
	require.NoError(t, err)
	require.Len(t, identities, 1)
	assert.Equal(t, "Bob B", identities[0].DisplayName)

	assert.Equal(t, `id:"id-1" OR id:"id-2"`, request.Query.Query)
	assert.Equal(t, []string{"identities"}, request.Indices)
	assert.Equal(t, []string{"id"}, request.Sort)
	assert.Equal(t, []string{"id", "displayName"}, request.QueryResultFilter.Includes)
}

func TestSearchIdentitiesPaginatesWithSearchAfter(t *testing.T) {
	var searchAfters [][]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SearchAfter []string `json:"searchAfter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		searchAfters = append(searchAfters, req.SearchAfter)

		if len(searchAfters) == 1 {
			// Full page forces another request.
			page := make([]models.IdentityDocument, searchPageSize)
			for i := range page {
				page[i].ID = "id-0"
			}
			page[searchPageSize-1].ID = "id-last"
			require.NoError(t, json.NewEncoder(w).Encode(page))
			return
		}
		_, _ = w.Write([]byte(`[{"id": "id-final"}]`))
	}))

	identities, err := c.SearchIdentitiesByQuery(context.Background(), `id:"x"`, nil)
	require.NoError(t, err)
	assert.Len(t, identities, searchPageSize+1)

	require.Len(t, searchAfters, 2)
	assert.Nil(t, searchAfters[0])
	assert.Equal(t, []string{"id-last"}, searchAfters[1])
}

func TestListEntitlementsForAccount(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/accounts/acct-1/entitlements", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id": "e-1", "name": "admin", "cloudGoverned": true},
			{"id": "e-2", "name": "reader", "cloudGoverned": false}
		]`))
	}))

	entitlements, err := c.ListEntitlementsForAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, entitlements, 2)

	cloud := FilterCloudGoverned(entitlements)
	require.Len(t, cloud, 1)
	assert.Equal(t, "e-1", cloud[0].ID)
}
