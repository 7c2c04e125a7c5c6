// Package access implements the permission core of the training platform:
// the grant store, the replace-all reconciliation engine, the point access
// evaluator and the coverage reporter. A grant ties a role to a module and
// optionally to one section; a grant without a section is a wildcard meaning
// "entire module".
package access

import "errors"

// Sentinel errors surfaced by the reconciliation entry points.
var (
	// ErrRoleNotFound indicates the target role of an update does not exist.
	ErrRoleNotFound = errors.New("access: role not found")
	// ErrValidation indicates a malformed desired state (unknown section,
	// section outside its module, non-positive ids).
	ErrValidation = errors.New("access: validation failed")
	// ErrAlreadySeeded reports that the bootstrap dataset is already present.
	// A no-op conflict, not a failure.
	ErrAlreadySeeded = errors.New("access: legacy dataset already seeded")
)

// Grant is a persisted (role, module, optional section) permission row.
// SectionID == nil denotes the whole-module wildcard. The External* fields
// correlate rows with the retired ERP numbering and are carried for
// traceability only; the evaluator never looks rows up by them.
type Grant struct {
	ID        int64
	RoleID    int64
	ModuleID  int64
	SectionID *int64
	CanView   bool
	CanEdit   bool
	CanDelete bool
	IsActive  bool

	ExternalRoleID    string
	ExternalModuleID  string
	ExternalSectionID string
}

// IsWildcard reports whether the grant covers the entire module.
func (g Grant) IsWildcard() bool {
	return g.SectionID == nil
}

// GrantDetail is a grant denormalized with role, module and section names
// for listing endpoints.
type GrantDetail struct {
	Grant
	RoleName    string
	ModuleName  string
	SectionName string
}

// ModuleAccessInput is one entry of a desired grant set: either the whole
// module (empty SectionIDs) or an explicit list of sections.
type ModuleAccessInput struct {
	ModuleID   int64
	SectionIDs []int64
}

// RoleAccessInput pairs a role with its desired grant set for bulk updates.
type RoleAccessInput struct {
	RoleID       int64
	ModuleAccess []ModuleAccessInput
}

// EvaluationPolicy selects how HasAccess treats wildcard grants when a
// specific section is asked for.
type EvaluationPolicy int

const (
	// ExactMatch answers section checks by exact row match only: a
	// whole-module wildcard does NOT satisfy a section-specific check. This
	// mirrors the historical behavior of the system; whether it is intended
	// is an open product question, so it stays the default.
	ExactMatch EvaluationPolicy = iota
	// WildcardFallback falls back to the module wildcard row when no exact
	// section row exists.
	WildcardFallback
)

// GrantsForRole expands a desired state into the grant rows it implies: one
// wildcard row per module with an empty section list, otherwise one row per
// section. Duplicate section ids collapse into one row. Every row starts
// active and viewable.
func GrantsForRole(roleID int64, desired []ModuleAccessInput) []Grant {
	var grants []Grant
	for _, entry := range desired {
		if len(entry.SectionIDs) == 0 {
			grants = append(grants, Grant{
				RoleID:   roleID,
				ModuleID: entry.ModuleID,
				CanView:  true,
				IsActive: true,
			})
			continue
		}
		seen := make(map[int64]struct{}, len(entry.SectionIDs))
		for _, sectionID := range entry.SectionIDs {
			if _, dup := seen[sectionID]; dup {
				continue
			}
			seen[sectionID] = struct{}{}
			sid := sectionID
			grants = append(grants, Grant{
				RoleID:    roleID,
				ModuleID:  entry.ModuleID,
				SectionID: &sid,
				CanView:   true,
				IsActive:  true,
			})
		}
	}
	return grants
}
