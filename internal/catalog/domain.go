// Package catalog is the read model for training modules and their sections.
// Modules and sections carry externally assigned numeric ids; import and seed
// flows may create them on demand.
package catalog

import "time"

// Module is a top-level content grouping.
type Module struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Section is a child resource of exactly one module; it is the finest grain
// of explicit permission.
type Section struct {
	ID          int64
	ModuleID    int64
	Title       string
	Description string
	SortOrder   int
	ExternalID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ModuleWithSections pairs a module with its ordered sections.
type ModuleWithSections struct {
	Module   Module
	Sections []Section
}
