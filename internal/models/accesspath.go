package models

import (
	"fmt"
	"net/url"
	"strings"
)

// UnknownPlaceholder is rendered for steps and entitlement attributes that
// could not be resolved.
const UnknownPlaceholder = "Unknown"

// Direct-entitlement columns attached to expanded report records.
const (
	ColumnDirectEntitlementID        = "DirectEntitlementID"
	ColumnDirectEntitlementName      = "DirectEntitlementName"
	ColumnDirectEntitlementAttribute = "DirectEntitlementAttribute"
	ColumnDirectEntitlementValue     = "DirectEntitlementValue"
)

// AccessPathStep is one hop in a resolved access chain.
type AccessPathStep struct {
	CSP     string
	Type    string
	ID      string
	Name    string
	Unknown bool
}

// ParseAccessPathStep splits a raw step substring into its four fields
// (provider, type, id, name). Anything that does not split cleanly becomes
// the unknown sentinel step; parse failures never propagate.
func ParseAccessPathStep(raw, fieldSeparator string) AccessPathStep {
	if raw == "" || fieldSeparator == "" {
		return AccessPathStep{Unknown: true}
	}
	fields := strings.Split(raw, fieldSeparator)
	if len(fields) < 4 {
		return AccessPathStep{Unknown: true}
	}
	return AccessPathStep{
		CSP:  fields[0],
		Type: fields[1],
		ID:   fields[2],
		Name: fields[3],
	}
}

// Display renders the step as "name (csp type)" or "name (csp type - id)".
// Unknown steps render the fixed placeholder regardless of includeID.
func (s AccessPathStep) Display(includeID, enclose bool) string {
	if s.Unknown {
		return UnknownPlaceholder
	}
	display := fmt.Sprintf("%s (%s %s", s.Name, s.CSP, s.Type)
	if includeID {
		display += " - " + s.ID
	}
	display += ")"
	if enclose {
		return "[" + display + "]"
	}
	return display
}

// AccessPath is an ordered sequence of access path steps. Index 0 is the
// originating identity, index 1 the entitlement granting access, index 2 an
// optional scope qualifier. A path always has at least one step.
type AccessPath struct {
	directEntitlement *CloudEntitlement
	Steps             []AccessPathStep
}

// NewUnknownAccessPath returns the sentinel path with a single unknown step,
// used when an access path lookup failed or was skipped.
func NewUnknownAccessPath() *AccessPath {
	return &AccessPath{Steps: []AccessPathStep{{Unknown: true}}}
}

// ParseAccessPath URL-decodes the raw path string and splits it into steps.
// An empty or undecodable input yields the single-unknown-step sentinel.
func ParseAccessPath(raw, pathSeparator, fieldSeparator string) *AccessPath {
	if raw == "" || pathSeparator == "" {
		return NewUnknownAccessPath()
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return NewUnknownAccessPath()
	}
	rawSteps := strings.Split(decoded, pathSeparator)
	steps := make([]AccessPathStep, 0, len(rawSteps))
	for _, rawStep := range rawSteps {
		steps = append(steps, ParseAccessPathStep(rawStep, fieldSeparator))
	}
	if len(steps) == 0 {
		return NewUnknownAccessPath()
	}
	return &AccessPath{Steps: steps}
}

// EntitlementStep returns the step that grants access, if present.
func (p *AccessPath) EntitlementStep() (AccessPathStep, bool) {
	if len(p.Steps) < 2 || p.Steps[1].Unknown {
		return AccessPathStep{}, false
	}
	return p.Steps[1], true
}

// EntitlementScopeStep returns the scope qualifier step, if present.
func (p *AccessPath) EntitlementScopeStep() (AccessPathStep, bool) {
	if len(p.Steps) < 3 || p.Steps[2].Unknown {
		return AccessPathStep{}, false
	}
	return p.Steps[2], true
}

// SetDirectEntitlement attaches the resolved entitlement that grants this
// path's access. Set at most once, after successful resolution.
func (p *AccessPath) SetDirectEntitlement(e *CloudEntitlement) {
	p.directEntitlement = e
}

// DirectEntitlement returns the attached entitlement, if any.
func (p *AccessPath) DirectEntitlement() *CloudEntitlement {
	return p.directEntitlement
}

// DirectEntitlementAttributes returns the fixed four-column projection of
// the attached entitlement. Placeholders are used when nothing is attached,
// so every output record carries the same column set.
func (p *AccessPath) DirectEntitlementAttributes() Record {
	if p.directEntitlement == nil {
		return Record{
			ColumnDirectEntitlementID:        UnknownPlaceholder,
			ColumnDirectEntitlementName:      UnknownPlaceholder,
			ColumnDirectEntitlementAttribute: UnknownPlaceholder,
			ColumnDirectEntitlementValue:     UnknownPlaceholder,
		}
	}
	return Record{
		ColumnDirectEntitlementID:        p.directEntitlement.ID,
		ColumnDirectEntitlementName:      p.directEntitlement.Name,
		ColumnDirectEntitlementAttribute: p.directEntitlement.Attribute,
		ColumnDirectEntitlementValue:     p.directEntitlement.Value,
	}
}

// String renders the path as ">> step >> step" with display names only.
func (p *AccessPath) String() string {
	return p.Render(false)
}

// Render renders each step with a ">> " prefix, optionally including
// provider-native ids.
func (p *AccessPath) Render(includeIDs bool) string {
	var b strings.Builder
	for _, step := range p.Steps {
		b.WriteString(">> ")
		b.WriteString(step.Display(includeIDs, false))
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}
