// Package identity wraps the identity-governance platform APIs used for
// correlation: account listing by filter, identity search with attribute
// projection, and entitlement lookups.
package identity

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/joshsymonds/accesslens/internal/client"
	"github.com/joshsymonds/accesslens/internal/models"
	"github.com/joshsymonds/accesslens/internal/records"
	"github.com/joshsymonds/accesslens/pkg/logger"
)

// API endpoint paths.
const (
	accountsPath     = "/v3/accounts"
	searchPath       = "/v3/search"
	entitlementsPath = "/v3/accounts/%s/entitlements"
)

const (
	listPageSize   = 250
	searchPageSize = 10000
)

// Client calls the identity-platform APIs.
type Client struct {
	api    *client.Client
	logger logger.Logger
}

// NewClient creates an identity-platform client on top of the shared
// HTTP core.
func NewClient(api *client.Client, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Client{api: api, logger: log}
}

// ListAccountsByFilter lists accounts matching a platform filter string,
// following pagination until exhausted.
func (c *Client) ListAccountsByFilter(ctx context.Context, filter string) ([]models.Account, error) {
	var accounts []models.Account
	for offset := 0; ; offset += listPageSize {
		query := url.Values{}
		query.Set("filters", filter)
		query.Set("limit", strconv.Itoa(listPageSize))
		query.Set("offset", strconv.Itoa(offset))

		var page []models.Account
		if err := c.api.Get(ctx, accountsPath, query, &page); err != nil {
			return nil, fmt.Errorf("listing accounts by filter: %w", err)
		}
		accounts = append(accounts, page...)
		if len(page) < listPageSize {
			return accounts, nil
		}
	}
}

// ListAccountsByNativeIdentities fetches the accounts for a set of
// provider-native identifiers in chunks, so the generated `nativeIdentity
// in (...)` filter stays within the platform's query size limits. With
// correlatedOnly set, uncorrelated accounts are excluded server-side.
func (c *Client) ListAccountsByNativeIdentities(ctx context.Context, nativeIdentities []string, correlatedOnly bool, chunkSize int) ([]models.Account, error) {
	if len(nativeIdentities) == 0 {
		return nil, nil
	}

	var accounts []models.Account
	for _, chunk := range records.Chunk(nativeIdentities, chunkSize) {
		filter := records.BuildQuery(chunk, records.QueryOptions{
			Prefix: "nativeIdentity in (",
			Joiner: ", ",
			Suffix: ")",
			Quote:  true,
		})
		if correlatedOnly {
			filter += " and uncorrelated eq false"
		}

		results, err := c.ListAccountsByFilter(ctx, filter)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, results...)
	}
	return accounts, nil
}

// searchRequest is the platform search API request body.
type searchRequest struct {
	QueryResultFilter *queryResultFilter `json:"queryResultFilter,omitempty"`
	Query             searchQuery        `json:"query"`
	Indices           []string           `json:"indices"`
	Sort              []string           `json:"sort"`
	SearchAfter       []string           `json:"searchAfter,omitempty"`
	Limit             int                `json:"limit"`
}

type searchQuery struct {
	Query string `json:"query"`
}

type queryResultFilter struct {
	Includes []string `json:"includes,omitempty"`
}

// SearchIdentitiesByQuery searches identity documents by a search query
// string, projecting only the included attributes. Results are sorted by id
// and paginated deterministically via searchAfter.
func (c *Client) SearchIdentitiesByQuery(ctx context.Context, searchText string, includedAttributes []string) ([]models.IdentityDocument, error) {
	if searchText == "" {
		return nil, nil
	}

	request := searchRequest{
		Indices: []string{"identities"},
		Query:   searchQuery{Query: searchText},
		Sort:    []string{"id"},
		Limit:   searchPageSize,
	}
	if len(includedAttributes) > 0 {
		request.QueryResultFilter = &queryResultFilter{Includes: includedAttributes}
	}

	var identities []models.IdentityDocument
	for {
		var page []models.IdentityDocument
		if err := c.api.Post(ctx, searchPath, request, &page); err != nil {
			return nil, fmt.Errorf("searching identities: %w", err)
		}
		identities = append(identities, page...)
		if len(page) < searchPageSize {
			return identities, nil
		}
		request.SearchAfter = []string{page[len(page)-1].ID}
	}
}

// SearchIdentitiesByIDs searches identity documents for a set of identity
// ids with the given attribute projection.
func (c *Client) SearchIdentitiesByIDs(ctx context.Context, identityIDs, includedAttributes []string) ([]models.IdentityDocument, error) {
	if len(identityIDs) == 0 {
		return nil, nil
	}
	searchText := records.BuildQuery(identityIDs, records.QueryOptions{
		ItemPrefix: "id:",
		Joiner:     " OR ",
		Quote:      true,
	})
	return c.SearchIdentitiesByQuery(ctx, searchText, includedAttributes)
}

// ListEntitlementsForAccount lists the entitlements granted to an account.
func (c *Client) ListEntitlementsForAccount(ctx context.Context, accountID string) ([]models.Entitlement, error) {
	if accountID == "" {
		return nil, nil
	}

	path := fmt.Sprintf(entitlementsPath, url.PathEscape(accountID))
	var entitlements []models.Entitlement
	for offset := 0; ; offset += listPageSize {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(listPageSize))
		query.Set("offset", strconv.Itoa(offset))

		var page []models.Entitlement
		if err := c.api.Get(ctx, path, query, &page); err != nil {
			return nil, fmt.Errorf("listing entitlements for account %s: %w", accountID, err)
		}
		entitlements = append(entitlements, page...)
		if len(page) < listPageSize {
			return entitlements, nil
		}
	}
}

// SearchEntitlementsByQuery searches entitlement documents by query string.
func (c *Client) SearchEntitlementsByQuery(ctx context.Context, searchText string) ([]models.Entitlement, error) {
	if searchText == "" {
		return nil, nil
	}

	request := searchRequest{
		Indices: []string{"entitlements"},
		Query:   searchQuery{Query: searchText},
		Sort:    []string{"id"},
		Limit:   searchPageSize,
	}

	var entitlements []models.Entitlement
	for {
		var page []models.Entitlement
		if err := c.api.Post(ctx, searchPath, request, &page); err != nil {
			return nil, fmt.Errorf("searching entitlements: %w", err)
		}
		entitlements = append(entitlements, page...)
		if len(page) < searchPageSize {
			return entitlements, nil
		}
		request.SearchAfter = []string{page[len(page)-1].ID}
	}
}

// FilterCloudGoverned narrows an entitlement list to cloud-governed entries.
func FilterCloudGoverned(entitlements []models.Entitlement) []models.Entitlement {
	return records.Filter(entitlements, func(e models.Entitlement) bool {
		return e.CloudGoverned
	})
}
