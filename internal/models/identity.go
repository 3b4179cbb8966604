package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AccountType classifies how a cloud account was resolved against the
// identity platform. The values double as sentinel placeholder tags in
// report columns.
type AccountType string

const (
	AccountTypeCorrelated   AccountType = "CORRELATED"
	AccountTypeUncorrelated AccountType = "UNCORRELATED"
	AccountTypeUnknown      AccountType = "UNKNOWN"
)

// Account is an identity-platform account record.
type Account struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	NativeIdentity string `json:"nativeIdentity"`
	SourceID       string `json:"sourceId"`
	SourceName     string `json:"sourceName,omitempty"`
	IdentityID     string `json:"identityId,omitempty"`
	Uncorrelated   bool   `json:"uncorrelated"`
}

// IdentityReference is a nested sub-object of an identity document.
type IdentityReference struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
}

// IdentityDocument is an identity-platform search document.
type IdentityDocument struct {
	Attributes      map[string]any     `json:"attributes,omitempty"`
	Manager         *IdentityReference `json:"manager,omitempty"`
	Source          *IdentityReference `json:"source,omitempty"`
	IdentityProfile *IdentityReference `json:"identityProfile,omitempty"`
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	DisplayName     string             `json:"displayName,omitempty"`
}

// Dotted prefixes for nested identity attribute lookups.
const (
	attributesPrefix      = "attributes."
	managerPrefix         = "manager."
	sourcePrefix          = "source."
	identityProfilePrefix = "identityProfile."
)

// LookupAttribute resolves a configured attribute path against the identity
// document, supporting the dotted prefixes for nested sub-objects. Unknown
// paths resolve to the empty string.
func (d *IdentityDocument) LookupAttribute(path string) string {
	switch {
	case strings.HasPrefix(path, attributesPrefix):
		if d.Attributes == nil {
			return ""
		}
		value, ok := d.Attributes[strings.TrimPrefix(path, attributesPrefix)]
		if !ok || value == nil {
			return ""
		}
		return fmt.Sprintf("%v", value)
	case strings.HasPrefix(path, managerPrefix):
		return lookupReference(d.Manager, strings.TrimPrefix(path, managerPrefix))
	case strings.HasPrefix(path, sourcePrefix):
		return lookupReference(d.Source, strings.TrimPrefix(path, sourcePrefix))
	case strings.HasPrefix(path, identityProfilePrefix):
		return lookupReference(d.IdentityProfile, strings.TrimPrefix(path, identityProfilePrefix))
	}
	// Top level identity document fields.
	switch path {
	case "id":
		return d.ID
	case "name":
		return d.Name
	case "displayName":
		return d.DisplayName
	}
	return ""
}

func lookupReference(ref *IdentityReference, field string) string {
	if ref == nil {
		return ""
	}
	switch field {
	case "id":
		return ref.ID
	case "name":
		return ref.Name
	case "displayName":
		return ref.DisplayName
	}
	return ""
}

// AttributeMapping maps an identity attribute path to a report column name.
// The configured list is ordered; output columns follow it.
type AttributeMapping struct {
	Path string `yaml:"path" json:"path"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

var titleCaser = cases.Title(language.English)

// DisplayName returns the configured column name, or one derived from the
// final path segment when none was configured ("manager.displayName" becomes
// "Display Name" only given no explicit name).
func (m AttributeMapping) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	segment := m.Path
	if idx := strings.LastIndex(segment, "."); idx >= 0 {
		segment = segment[idx+1:]
	}
	// Split camelCase into words before title-casing.
	var words []string
	start := 0
	for i, r := range segment {
		if i > 0 && r >= 'A' && r <= 'Z' {
			words = append(words, segment[start:i])
			start = i
		}
	}
	words = append(words, segment[start:])
	return titleCaser.String(strings.Join(words, " "))
}

// CorrelatedIdentity is the resolved identity and account context for one
// cloud-account record. Built once per distinct native identifier and never
// mutated afterwards.
type CorrelatedIdentity struct {
	IdentityAttributes Record
	AccountAttributes  Record
	ID                 string
	Type               AccountType
}

// NewCorrelatedIdentity builds the identity context for an account. Both
// attribute maps are always fully populated: the account type tag stands in
// wherever no real account or identity data exists.
func NewCorrelatedIdentity(accountType AccountType, account *Account, identity *IdentityDocument, included []AttributeMapping) *CorrelatedIdentity {
	ci := &CorrelatedIdentity{
		Type:               accountType,
		ID:                 string(accountType),
		IdentityAttributes: make(Record, len(included)),
		AccountAttributes:  make(Record, 4),
	}

	if account != nil && account.ID != "" {
		ci.AccountAttributes[ColumnAccountInternalID] = account.ID
		ci.AccountAttributes[ColumnAccountDisplayName] = account.Name
		ci.AccountAttributes[ColumnAccountSourceInternalID] = account.SourceID
		ci.AccountAttributes[ColumnAccountSourceName] = account.SourceName
		if account.SourceName == "" {
			ci.AccountAttributes[ColumnAccountSourceName] = string(AccountTypeUnknown)
		}
	} else {
		ci.AccountAttributes[ColumnAccountInternalID] = string(accountType)
		ci.AccountAttributes[ColumnAccountDisplayName] = string(accountType)
		ci.AccountAttributes[ColumnAccountSourceInternalID] = string(accountType)
		ci.AccountAttributes[ColumnAccountSourceName] = string(accountType)
	}

	if identity == nil {
		for _, mapping := range included {
			ci.IdentityAttributes[mapping.DisplayName()] = string(accountType)
		}
		return ci
	}

	ci.ID = identity.ID
	for _, mapping := range included {
		ci.IdentityAttributes[mapping.DisplayName()] = identity.LookupAttribute(mapping.Path)
	}
	return ci
}

// IsUnknown reports whether no account was found for the native identifier.
func (c *CorrelatedIdentity) IsUnknown() bool {
	return c.Type == AccountTypeUnknown
}

// IsUncorrelated reports whether the account exists but has no identity.
func (c *CorrelatedIdentity) IsUncorrelated() bool {
	return c.Type == AccountTypeUncorrelated
}
