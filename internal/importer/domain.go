// Package importer translates externally authored role/module/section
// documents into grant rows. The whole document applies in one transaction:
// roles and sections referenced but missing are created on the way, every
// named role's grant set is fully replaced, and any failure rolls the entire
// import back.
package importer

import "time"

// Document is the import payload: a list of roles with their desired module
// and section access.
type Document struct {
	Roles []RoleImport `json:"roles" validate:"required,min=1,dive"`
}

// RoleImport describes one role's desired access.
type RoleImport struct {
	RoleName     string         `json:"roleName" validate:"required"`
	ERPRoleID    string         `json:"erpRoleId"`
	ModuleAccess []ModuleImport `json:"moduleAccess" validate:"required,min=1,dive"`
}

// ModuleImport grants a role access to one module. An absent or empty
// Sections list produces a single whole-module wildcard grant carrying the
// entry's capabilities; otherwise one grant per section.
type ModuleImport struct {
	ModuleID  int64           `json:"moduleId" validate:"required,gt=0"`
	CanEdit   bool            `json:"canEdit"`
	CanDelete bool            `json:"canDelete"`
	Sections  []SectionImport `json:"sections" validate:"omitempty,dive"`
}

// SectionImport grants access to one section, creating the section under
// the module when it does not exist yet.
type SectionImport struct {
	SectionID    int64  `json:"sectionId" validate:"required,gt=0"`
	SectionName  string `json:"sectionName" validate:"required"`
	Description  string `json:"description"`
	ERPSectionID string `json:"erpSectionId"`
	Order        int    `json:"order"`
	CanView      bool   `json:"canView"`
	CanEdit      bool   `json:"canEdit"`
	CanDelete    bool   `json:"canDelete"`
}

// Result reports a completed import.
type Result struct {
	BatchID        string    `json:"batchId"`
	RolesProcessed int       `json:"rolesProcessed"`
	CompletedAt    time.Time `json:"completedAt"`
}
