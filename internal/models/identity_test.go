package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupAttribute(t *testing.T) {
	doc := &IdentityDocument{
		ID:          "id-1",
		Name:        "bob",
		DisplayName: "Bob B",
		Attributes: map[string]any{
			"department": "Platform",
			"level":      7,
		},
		Manager: &IdentityReference{ID: "id-2", Name: "alice", DisplayName: "Alice A"},
		Source:  &IdentityReference{Name: "Workday"},
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"top-level id", "id", "id-1"},
		{"top-level displayName", "displayName", "Bob B"},
		{"attribute", "attributes.department", "Platform"},
		{"non-string attribute", "attributes.level", "7"},
		{"missing attribute", "attributes.nope", ""},
		{"manager displayName", "manager.displayName", "Alice A"},
		{"source name", "source.name", "Workday"},
		{"nil reference", "identityProfile.name", ""},
		{"unknown path", "whatever", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, doc.LookupAttribute(tt.path))
		})
	}
}

func TestAttributeMappingDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		mapping AttributeMapping
		want    string
	}{
		{"explicit name wins", AttributeMapping{Path: "attributes.department", Name: "Dept"}, "Dept"},
		{"derived from last segment", AttributeMapping{Path: "manager.displayName"}, "Display Name"},
		{"single word", AttributeMapping{Path: "attributes.department"}, "Department"},
		{"top level", AttributeMapping{Path: "name"}, "Name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mapping.DisplayName())
		})
	}
}

func TestNewCorrelatedIdentity(t *testing.T) {
	included := []AttributeMapping{
		{Path: "displayName", Name: "Identity"},
		{Path: "attributes.department", Name: "Department"},
	}
	account := &Account{
		ID:         "acct-1",
		Name:       "bob@example.com",
		SourceID:   "src-1",
		SourceName: "AWS Prod",
		IdentityID: "id-1",
	}
	identity := &IdentityDocument{
		ID:          "id-1",
		DisplayName: "Bob B",
		Attributes:  map[string]any{"department": "Platform"},
	}

	t.Run("correlated", func(t *testing.T) {
		ci := NewCorrelatedIdentity(AccountTypeCorrelated, account, identity, included)

		assert.Equal(t, "id-1", ci.ID)
		assert.False(t, ci.IsUnknown())
		assert.False(t, ci.IsUncorrelated())
		assert.Equal(t, Record{"Identity": "Bob B", "Department": "Platform"}, ci.IdentityAttributes)
		assert.Equal(t, "acct-1", ci.AccountAttributes[ColumnAccountInternalID])
		assert.Equal(t, "bob@example.com", ci.AccountAttributes[ColumnAccountDisplayName])
		assert.Equal(t, "src-1", ci.AccountAttributes[ColumnAccountSourceInternalID])
		assert.Equal(t, "AWS Prod", ci.AccountAttributes[ColumnAccountSourceName])
	})

	t.Run("uncorrelated keeps account attributes", func(t *testing.T) {
		ci := NewCorrelatedIdentity(AccountTypeUncorrelated, account, nil, included)

		require.True(t, ci.IsUncorrelated())
		assert.Equal(t, "UNCORRELATED", ci.ID)
		assert.Equal(t, Record{"Identity": "UNCORRELATED", "Department": "UNCORRELATED"}, ci.IdentityAttributes)
		assert.Equal(t, "acct-1", ci.AccountAttributes[ColumnAccountInternalID])
	})

	t.Run("unknown fills every column with the tag", func(t *testing.T) {
		ci := NewCorrelatedIdentity(AccountTypeUnknown, nil, nil, included)

		require.True(t, ci.IsUnknown())
		assert.Equal(t, Record{"Identity": "UNKNOWN", "Department": "UNKNOWN"}, ci.IdentityAttributes)
		assert.Equal(t, Record{
			ColumnAccountInternalID:       "UNKNOWN",
			ColumnAccountDisplayName:      "UNKNOWN",
			ColumnAccountSourceInternalID: "UNKNOWN",
			ColumnAccountSourceName:       "UNKNOWN",
		}, ci.AccountAttributes)
	})

	t.Run("missing source name becomes unknown", func(t *testing.T) {
		bare := &Account{ID: "acct-2", Name: "svc"}
		ci := NewCorrelatedIdentity(AccountTypeUncorrelated, bare, nil, nil)

		assert.Equal(t, "UNKNOWN", ci.AccountAttributes[ColumnAccountSourceName])
	})
}
