// Package enrichment implements the identity-correlation and
// access-path-resolution pipeline for resource-access report records.
package enrichment

import (
	"context"
	"sync"

	"github.com/joshsymonds/accesslens/internal/models"
	"github.com/joshsymonds/accesslens/internal/records"
	"github.com/joshsymonds/accesslens/pkg/logger"
)

// IdentityAPI is the identity-platform surface the correlator needs.
type IdentityAPI interface {
	ListAccountsByNativeIdentities(ctx context.Context, nativeIdentities []string, correlatedOnly bool, chunkSize int) ([]models.Account, error)
	SearchIdentitiesByIDs(ctx context.Context, identityIDs, includedAttributes []string) ([]models.IdentityDocument, error)
}

// Correlator maintains the identity correlation cache: raw cloud-account
// native identifier to resolved identity context. Each distinct identifier
// is fetched at most once per Correlator instance.
type Correlator struct {
	identity  IdentityAPI
	logger    logger.Logger
	cache     map[string]*models.CorrelatedIdentity
	included  []models.AttributeMapping
	chunkSize int
	mu        sync.RWMutex
}

// NewCorrelator creates an empty correlation cache.
func NewCorrelator(identity IdentityAPI, included []models.AttributeMapping, chunkSize int, log logger.Logger) *Correlator {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Correlator{
		identity:  identity,
		logger:    log,
		cache:     make(map[string]*models.CorrelatedIdentity),
		included:  included,
		chunkSize: chunkSize,
	}
}

// FillCache resolves identity context for every native identifier not yet
// cached. Accounts are fetched in chunks; the correlated subset is then
// resolved to identity documents in one batched search. API failures are
// logged and degrade to UNKNOWN entries; they never abort the run.
func (c *Correlator) FillCache(ctx context.Context, accountNativeIDs []string) {
	c.mu.RLock()
	missing := records.DiffKeys(accountNativeIDs, c.cache)
	c.mu.RUnlock()
	if len(missing) == 0 {
		return
	}
	c.logger.Debug("Filling correlation cache", "new_account_ids", len(missing))

	// Uncorrelated accounts must stay visible here: filtering them out
	// server-side would make them indistinguishable from unknown ones.
	accounts, err := c.identity.ListAccountsByNativeIdentities(ctx, missing, false, c.chunkSize)
	if err != nil {
		c.logger.Error("Unable to list accounts for native identifiers", "error", err)
		accounts = nil
	}

	var identities []models.IdentityDocument
	if len(accounts) > 0 {
		c.logger.Debug("Found accounts for correlation", "count", len(accounts))
		correlated := records.Filter(accounts, func(a models.Account) bool {
			return !a.Uncorrelated && a.IdentityID != ""
		})
		if len(correlated) > 0 {
			identityIDs := records.UniqueValues(correlated, func(a models.Account) string {
				return a.IdentityID
			})
			paths := make([]string, 0, len(c.included))
			for _, mapping := range c.included {
				paths = append(paths, mapping.Path)
			}
			identities, err = c.identity.SearchIdentitiesByIDs(ctx, identityIDs, paths)
			if err != nil {
				c.logger.Error("Unable to search identities for correlated accounts", "error", err)
				identities = nil
			}
		}
	}

	c.update(missing, accounts, identities)
}

// update builds one CorrelatedIdentity per requested native identifier.
// Population is idempotent: an id already cached is left untouched.
func (c *Correlator) update(accountNativeIDs []string, accounts []models.Account, identities []models.IdentityDocument) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, nativeID := range accountNativeIDs {
		if _, ok := c.cache[nativeID]; ok {
			continue
		}

		account, found := records.FindByAttribute(accounts, nativeID, func(a models.Account) string {
			return a.NativeIdentity
		})
		if !found {
			c.logger.Debug("Unknown cloud account", "account_native_id", nativeID)
			c.cache[nativeID] = models.NewCorrelatedIdentity(models.AccountTypeUnknown, nil, nil, c.included)
			continue
		}

		if account.Uncorrelated || account.IdentityID == "" {
			c.logger.Debug("Uncorrelated cloud account", "account_native_id", nativeID)
			c.cache[nativeID] = models.NewCorrelatedIdentity(models.AccountTypeUncorrelated, &account, nil, c.included)
			continue
		}

		identity, found := records.FindByAttribute(identities, account.IdentityID, func(d models.IdentityDocument) string {
			return d.ID
		})
		if !found {
			c.logger.Error("Could not find identity for account",
				"identity_id", account.IdentityID,
				"account_native_id", nativeID,
			)
			c.cache[nativeID] = models.NewCorrelatedIdentity(models.AccountTypeUncorrelated, &account, nil, c.included)
			continue
		}

		c.cache[nativeID] = models.NewCorrelatedIdentity(models.AccountTypeCorrelated, &account, &identity, c.included)
	}
}

// Lookup returns the cached identity context for a native identifier, or a
// fresh UNKNOWN context when nothing was cached.
func (c *Correlator) Lookup(nativeID string) *models.CorrelatedIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if ci, ok := c.cache[nativeID]; ok {
		return ci
	}
	return models.NewCorrelatedIdentity(models.AccountTypeUnknown, nil, nil, c.included)
}

// Size returns the number of cached entries.
func (c *Correlator) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Reset clears the cache.
func (c *Correlator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*models.CorrelatedIdentity)
}
