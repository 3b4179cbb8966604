package enrichment

import (
	"context"
	"strings"
	"sync"

	"github.com/joshsymonds/accesslens/internal/models"
	"github.com/joshsymonds/accesslens/pkg/logger"
)

// EntitlementCatalog is the CIEM surface the resolver needs: the set of
// cloud-enabled entitlements granted to one account.
type EntitlementCatalog interface {
	CloudEnabledEntitlementsForAccount(ctx context.Context, accountID string) ([]models.CloudEntitlement, error)
}

// Resolver maps the entitlement step of an access path back to the directly
// assigned entitlement in the governance catalog. Results are memoized per
// source and entitlement so each pair is resolved at most once.
type Resolver struct {
	catalog EntitlementCatalog
	logger  logger.Logger
	cache   map[string]*models.CloudEntitlement
	mu      sync.Mutex
}

// NewResolver creates an empty resolver cache.
func NewResolver(catalog EntitlementCatalog, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Resolver{
		catalog: catalog,
		logger:  log,
		cache:   make(map[string]*models.CloudEntitlement),
	}
}

// matchRule decides whether one catalog entitlement corresponds to one
// access-path step. Rules are evaluated in order and the first rule whose
// applies() holds settles the outcome, even when its match finds nothing:
// a miss under an applicable rule never falls through to a later rule.
type matchRule struct {
	name    string
	applies func(step models.AccessPathStep, hasScope bool) bool
	match   func(step, scope models.AccessPathStep, ent models.CloudEntitlement) bool
}

// matchRules encodes the provider-specific naming conventions that link a
// path step to its catalog entry. The scoped rules only apply when the path
// carries a scope step; without one the step falls through to the default
// resource-id rule. The final rule is unconditional so evaluation always
// terminates at some rule.
var matchRules = []matchRule{
	{
		// AWS inline policies are keyed "<principal>@<policy>" in path
		// steps but "<principal>:InlinePolicy:<policy>" in the catalog.
		name: "aws-inline-policy",
		applies: func(step models.AccessPathStep, _ bool) bool {
			return step.CSP == "AWS" && step.Type == "iam/UserInlinePolicy"
		},
		match: func(step, _ models.AccessPathStep, ent models.CloudEntitlement) bool {
			return strings.Replace(step.ID, "@", ":InlinePolicy:", 1) == ent.ResourceID
		},
	},
	{
		// GCP policy bindings carry "<role>:<display>" step names; the
		// catalog names them "<display> (on) <scope> [<scope type>]".
		name: "gcp-policy-binding",
		applies: func(step models.AccessPathStep, hasScope bool) bool {
			return step.CSP == "GCP" && step.Type == "PolicyBinding" && strings.Index(step.Name, ":") > 0 && hasScope
		},
		match: func(step, scope models.AccessPathStep, ent models.CloudEntitlement) bool {
			role := step.Name[strings.Index(step.Name, ":")+1:]
			return role+" (on) "+scope.Name+" ["+scope.Type+"]" == ent.Name
		},
	},
	{
		name: "azure-role-assignment",
		applies: func(step models.AccessPathStep, hasScope bool) bool {
			return step.CSP == "Azure" && step.Type == "Microsoft.Authorization/roleAssignments" && hasScope
		},
		match: func(step, scope models.AccessPathStep, ent models.CloudEntitlement) bool {
			return step.Name+" [on] "+scope.Name == ent.Name
		},
	},
	{
		name:    "default",
		applies: func(models.AccessPathStep, bool) bool { return true },
		match: func(step, _ models.AccessPathStep, ent models.CloudEntitlement) bool {
			return step.ID == ent.ResourceID
		},
	},
}

// cacheKey namespaces an entitlement by its source so identical ids from
// different sources never collide. Comparison is case-insensitive.
func cacheKey(sourceID, entitlementID string) string {
	return strings.ToLower("#" + sourceID + "#" + entitlementID + "#")
}

// Resolve finds the directly assigned catalog entitlement behind the
// entitlement step of path, consulting the cache first. A nil entitlement
// with nil error means the step had no catalog counterpart; that negative
// result is cached too. Errors from the catalog fetch are returned without
// caching so a later call can retry.
func (r *Resolver) Resolve(ctx context.Context, accountID, sourceID string, path *models.AccessPath) (*models.CloudEntitlement, error) {
	step, ok := path.EntitlementStep()
	if !ok {
		return nil, nil
	}

	key := cacheKey(sourceID, step.ID)
	r.mu.Lock()
	if cached, hit := r.cache[key]; hit {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	entitlements, err := r.catalog.CloudEnabledEntitlementsForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	scope, hasScope := path.EntitlementScopeStep()
	resolved := matchEntitlement(step, scope, hasScope, entitlements)
	if resolved == nil {
		r.logger.Debug("No direct entitlement matched access path step",
			"entitlement_id", step.ID,
			"source_id", sourceID,
		)
	}

	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()
	return resolved, nil
}

// matchEntitlement applies the first applicable rule and returns its
// outcome. Returns nil when the rule's match finds no entitlement.
func matchEntitlement(step, scope models.AccessPathStep, hasScope bool, entitlements []models.CloudEntitlement) *models.CloudEntitlement {
	for _, rule := range matchRules {
		if !rule.applies(step, hasScope) {
			continue
		}
		for i := range entitlements {
			if rule.match(step, scope, entitlements[i]) {
				ent := entitlements[i]
				return &ent
			}
		}
		return nil
	}
	return nil
}

// Size returns the number of cached resolutions, hits and misses alike.
func (r *Resolver) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// Reset clears the cache.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*models.CloudEntitlement)
}
