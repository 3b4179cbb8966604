package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/accesslens/internal/models"
	"github.com/joshsymonds/accesslens/pkg/logger"
)

type fakeCatalog struct {
	entitlements []models.CloudEntitlement
	err          error
	calls        int
	mu           sync.Mutex
}

func (f *fakeCatalog) CloudEnabledEntitlementsForAccount(context.Context, string) ([]models.CloudEntitlement, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.entitlements, f.err
}

func pathFromSteps(steps ...models.AccessPathStep) *models.AccessPath {
	return &models.AccessPath{Steps: steps}
}

func TestResolveMatchRules(t *testing.T) {
	userStep := models.AccessPathStep{CSP: "AWS", Type: "iam/User", ID: "u-1", Name: "bob"}

	tests := []struct {
		name         string
		entitlement  models.AccessPathStep
		scope        models.AccessPathStep
		entitlements []models.CloudEntitlement
		wantID       string
	}{
		{
			name: "aws inline policy rewrites the separator",
			entitlement: models.AccessPathStep{
				CSP: "AWS", Type: "iam/UserInlinePolicy",
				ID: "arn:aws:iam::123:user/bob@MyPolicy", Name: "MyPolicy",
			},
			scope: models.AccessPathStep{CSP: "AWS", Type: "s3/Bucket", ID: "b-1", Name: "logs"},
			entitlements: []models.CloudEntitlement{
				{ID: "e-1", ResourceID: "arn:aws:iam::123:user/bob:InlinePolicy:MyPolicy"},
				{ID: "e-2", ResourceID: "arn:aws:iam::123:user/bob@MyPolicy"},
			},
			wantID: "e-1",
		},
		{
			name: "gcp policy binding composes the scoped name",
			entitlement: models.AccessPathStep{
				CSP: "GCP", Type: "PolicyBinding", ID: "pb-1", Name: "roles/viewer:Viewer",
			},
			scope: models.AccessPathStep{CSP: "GCP", Type: "Project", ID: "prj-1", Name: "proj1"},
			entitlements: []models.CloudEntitlement{
				{ID: "e-1", Name: "Viewer (on) proj1 [Project]"},
				{ID: "e-2", Name: "Viewer"},
			},
			wantID: "e-1",
		},
		{
			name: "azure role assignment composes the scoped name",
			entitlement: models.AccessPathStep{
				CSP: "Azure", Type: "Microsoft.Authorization/roleAssignments", ID: "ra-1", Name: "Reader",
			},
			scope: models.AccessPathStep{CSP: "Azure", Type: "ResourceGroup", ID: "rg-1", Name: "prod-rg"},
			entitlements: []models.CloudEntitlement{
				{ID: "e-1", Name: "Reader [on] prod-rg"},
			},
			wantID: "e-1",
		},
		{
			name: "default rule matches step id against resource id",
			entitlement: models.AccessPathStep{
				CSP: "AWS", Type: "iam/Policy", ID: "arn:aws:iam::123:policy/ReadOnly", Name: "ReadOnly",
			},
			scope: models.AccessPathStep{CSP: "AWS", Type: "s3/Bucket", ID: "b-1", Name: "logs"},
			entitlements: []models.CloudEntitlement{
				{ID: "e-1", ResourceID: "arn:aws:iam::123:policy/ReadOnly"},
			},
			wantID: "e-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &fakeCatalog{entitlements: tt.entitlements}
			r := NewResolver(catalog, logger.NewMockLogger())

			resolved, err := r.Resolve(context.Background(), "acct-1", "src-1",
				pathFromSteps(userStep, tt.entitlement, tt.scope))
			require.NoError(t, err)
			require.NotNil(t, resolved)
			assert.Equal(t, tt.wantID, resolved.ID)
		})
	}
}

func TestResolveApplicableRuleMissDoesNotFallThrough(t *testing.T) {
	// The inline policy rule applies, finds nothing, and settles the
	// outcome even though the default rule would have matched by id.
	step := models.AccessPathStep{
		CSP: "AWS", Type: "iam/UserInlinePolicy", ID: "u-1@MyPolicy", Name: "MyPolicy",
	}
	catalog := &fakeCatalog{entitlements: []models.CloudEntitlement{
		{ID: "e-1", ResourceID: "u-1@MyPolicy"},
	}}
	r := NewResolver(catalog, logger.NewMockLogger())

	resolved, err := r.Resolve(context.Background(), "acct-1", "src-1",
		pathFromSteps(models.AccessPathStep{CSP: "AWS"}, step))
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestResolveWithoutScopeFallsBackToDefaultRule(t *testing.T) {
	// The scoped GCP and Azure rules only apply when the path carries a
	// scope step. Without one, the step falls through to the default
	// resource-id rule instead of settling as no entitlement.
	tests := []struct {
		name        string
		entitlement models.AccessPathStep
	}{
		{
			name: "gcp policy binding",
			entitlement: models.AccessPathStep{
				CSP: "GCP", Type: "PolicyBinding", ID: "pb-1", Name: "roles/viewer:Viewer",
			},
		},
		{
			name: "azure role assignment",
			entitlement: models.AccessPathStep{
				CSP: "Azure", Type: "Microsoft.Authorization/roleAssignments", ID: "ra-1", Name: "Reader",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &fakeCatalog{entitlements: []models.CloudEntitlement{
				{ID: "e-1", Name: "Reader [on] prod-rg", ResourceID: "other"},
				{ID: "e-2", ResourceID: tt.entitlement.ID},
			}}
			r := NewResolver(catalog, logger.NewMockLogger())

			resolved, err := r.Resolve(context.Background(), "acct-1", "src-1",
				pathFromSteps(models.AccessPathStep{CSP: tt.entitlement.CSP}, tt.entitlement))
			require.NoError(t, err)
			require.NotNil(t, resolved)
			assert.Equal(t, "e-2", resolved.ID)
		})
	}
}

func TestResolveCachesPerSourceAndEntitlement(t *testing.T) {
	catalog := &fakeCatalog{entitlements: []models.CloudEntitlement{
		{ID: "e-1", ResourceID: "p-1"},
	}}
	r := NewResolver(catalog, logger.NewMockLogger())
	path := pathFromSteps(
		models.AccessPathStep{CSP: "AWS", Type: "iam/User", ID: "u-1", Name: "bob"},
		models.AccessPathStep{CSP: "AWS", Type: "iam/Policy", ID: "p-1", Name: "ReadOnly"},
	)

	first, err := r.Resolve(context.Background(), "acct-1", "src-1", path)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := r.Resolve(context.Background(), "acct-1", "src-1", path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, catalog.calls)

	// Identifiers differing only in case share the cache entry.
	_, err = r.Resolve(context.Background(), "acct-1", "SRC-1", path)
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.calls)

	// A different source is a different entry.
	_, err = r.Resolve(context.Background(), "acct-1", "src-2", path)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.calls)
	assert.Equal(t, 2, r.Size())
}

func TestResolveCachesNegativeResults(t *testing.T) {
	catalog := &fakeCatalog{}
	r := NewResolver(catalog, logger.NewMockLogger())
	path := pathFromSteps(
		models.AccessPathStep{CSP: "AWS", Type: "iam/User", ID: "u-1", Name: "bob"},
		models.AccessPathStep{CSP: "AWS", Type: "iam/Policy", ID: "p-1", Name: "ReadOnly"},
	)

	resolved, err := r.Resolve(context.Background(), "acct-1", "src-1", path)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	_, err = r.Resolve(context.Background(), "acct-1", "src-1", path)
	require.NoError(t, err)
	assert.Equal(t, 1, catalog.calls)
}

func TestResolveErrorsAreNotCached(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("boom")}
	r := NewResolver(catalog, logger.NewMockLogger())
	path := pathFromSteps(
		models.AccessPathStep{CSP: "AWS", Type: "iam/User", ID: "u-1", Name: "bob"},
		models.AccessPathStep{CSP: "AWS", Type: "iam/Policy", ID: "p-1", Name: "ReadOnly"},
	)

	_, err := r.Resolve(context.Background(), "acct-1", "src-1", path)
	require.Error(t, err)
	assert.Equal(t, 0, r.Size())

	// The fetch is retried once the catalog recovers.
	catalog.err = nil
	catalog.entitlements = []models.CloudEntitlement{{ID: "e-1", ResourceID: "p-1"}}
	resolved, err := r.Resolve(context.Background(), "acct-1", "src-1", path)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, 2, catalog.calls)
}

func TestResolveUnknownPathIsNoop(t *testing.T) {
	catalog := &fakeCatalog{}
	r := NewResolver(catalog, logger.NewMockLogger())

	resolved, err := r.Resolve(context.Background(), "acct-1", "src-1", models.NewUnknownAccessPath())
	require.NoError(t, err)
	assert.Nil(t, resolved)
	assert.Equal(t, 0, catalog.calls)
}
