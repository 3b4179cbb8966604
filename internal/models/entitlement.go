package models

// CloudEntitlement is one provider-specific entitlement record from the
// CIEM "cloud-enabled entitlements for account" API.
type CloudEntitlement struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Attribute     string `json:"attribute"`
	Value         string `json:"value"`
	ResourceID    string `json:"resource_id"`
	CloudGoverned bool   `json:"cloudGoverned"`
}

// Entitlement is an identity-platform entitlement record.
type Entitlement struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Attribute     string `json:"attribute,omitempty"`
	Value         string `json:"value,omitempty"`
	SourceID      string `json:"sourceId,omitempty"`
	CloudGoverned bool   `json:"cloudGoverned"`
}

// ResourceAccessPath is one raw encoded path string from the CIEM
// "resource access paths for account" API.
type ResourceAccessPath struct {
	Path string `json:"path"`
}
