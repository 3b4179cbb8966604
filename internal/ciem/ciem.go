// Package ciem wraps the cloud-infrastructure-entitlement-management
// analysis APIs: cloud-enabled entitlements per account and pre-computed
// resource access paths.
package ciem

import (
	"context"
	"fmt"
	"net/url"

	"github.com/joshsymonds/accesslens/internal/client"
	"github.com/joshsymonds/accesslens/internal/models"
	"github.com/joshsymonds/accesslens/pkg/logger"
)

// API endpoint paths.
const (
	cloudEntitlementsPath = "/beta/cloud-enabled-entitlements"
	accessPathsPath       = "/beta/resource-access-paths"
)

// Client calls the CIEM analysis APIs and decodes access path strings.
type Client struct {
	api           *client.Client
	logger        logger.Logger
	pathSeparator string
	stepSeparator string
}

// NewClient creates a CIEM client. The separators configure how raw access
// path strings are decoded into steps.
func NewClient(api *client.Client, pathSeparator, stepSeparator string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Client{
		api:           api,
		logger:        log,
		pathSeparator: pathSeparator,
		stepSeparator: stepSeparator,
	}
}

type cloudEntitlementsResponse struct {
	Entitlements []models.CloudEntitlement `json:"effective_access_supported_entitlements"`
}

// CloudEnabledEntitlementsForAccount returns the provider-specific
// entitlement records the CIEM system tracks for one account.
func (c *Client) CloudEnabledEntitlementsForAccount(ctx context.Context, accountID string) ([]models.CloudEntitlement, error) {
	query := url.Values{}
	query.Set("account_id", accountID)

	var response cloudEntitlementsResponse
	if err := c.api.Get(ctx, cloudEntitlementsPath, query, &response); err != nil {
		return nil, fmt.Errorf("fetching cloud enabled entitlements for account %s: %w", accountID, err)
	}
	return response.Entitlements, nil
}

// AccessPathQuery identifies the account/resource pair to trace.
type AccessPathQuery struct {
	AccountNativeID   string
	AccountType       string
	AccountSourceType string
	Service           string
	ResourceType      string
	ResourceID        string
}

type accessPathsResponse struct {
	AccessPaths []models.ResourceAccessPath `json:"effective_access_resource_access_paths"`
}

// ResourceAccessPathsForAccount returns every access path between the
// account and the resource, each decoded into an ordered step sequence.
func (c *Client) ResourceAccessPathsForAccount(ctx context.Context, q AccessPathQuery) ([]*models.AccessPath, error) {
	query := url.Values{}
	query.Set("identity_native_id", q.AccountNativeID)
	query.Set("identity_type", q.AccountType)
	query.Set("identity_source_type", q.AccountSourceType)
	query.Set("service_type", q.Service)
	query.Set("resource_type", q.ResourceType)
	query.Set("resource_native_id", q.ResourceID)

	var response accessPathsResponse
	if err := c.api.Get(ctx, accessPathsPath, query, &response); err != nil {
		return nil, fmt.Errorf("fetching access paths between account %s and resource %s: %w", q.AccountNativeID, q.ResourceID, err)
	}

	paths := make([]*models.AccessPath, 0, len(response.AccessPaths))
	for _, raw := range response.AccessPaths {
		paths = append(paths, models.ParseAccessPath(raw.Path, c.pathSeparator, c.stepSeparator))
	}
	return paths, nil
}
