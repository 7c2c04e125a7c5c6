package access

import (
	"context"
	"fmt"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/meridian-training/meridian/internal/catalog"
	"github.com/meridian-training/meridian/internal/roles"
)

// CatalogReadPort lists the full module/section tree for aggregation.
type CatalogReadPort interface {
	ListModulesWithSections(ctx context.Context) ([]catalog.ModuleWithSections, error)
}

// RoleListPort lists the known roles.
type RoleListPort interface {
	ListRoles(ctx context.Context) ([]roles.Role, error)
	GetRole(ctx context.Context, id int64) (roles.Role, error)
}

// GrantReadPort reads grant rows for aggregation.
type GrantReadPort interface {
	ListByRole(ctx context.Context, roleID int64) ([]Grant, error)
	ListAll(ctx context.Context) ([]Grant, error)
}

// SectionAccessView is one section of a module with the per-role verdict.
type SectionAccessView struct {
	SectionID   int64  `json:"sectionId"`
	SectionName string `json:"sectionName"`
	HasAccess   bool   `json:"hasAccess"`
}

// ModuleSectionsView is the per-module breakdown for one role.
type ModuleSectionsView struct {
	ModuleID   int64               `json:"moduleId"`
	ModuleName string              `json:"moduleName"`
	Sections   []SectionAccessView `json:"sections"`
}

// ModuleCoverageView summarizes one role's coverage of one module.
type ModuleCoverageView struct {
	ModuleID               int64    `json:"moduleId"`
	ModuleName             string   `json:"moduleName"`
	TotalSections          int      `json:"totalSections"`
	AccessibleSections     int      `json:"accessibleSections"`
	AccessibleSectionNames []string `json:"accessibleSectionNames"`
}

// RoleCoverageView summarizes one role across all modules.
type RoleCoverageView struct {
	RoleID       int64                `json:"roleId"`
	RoleName     string               `json:"roleName"`
	ModuleAccess []ModuleCoverageView `json:"moduleAccess"`
}

// Reporter produces read-only aggregations for administration dashboards.
// Counting is by exact section match, the same semantics as the evaluator's
// ExactMatch policy: a role holding only a module wildcard reports zero
// accessible sections even though it conceptually has the whole module. That
// asymmetry is deliberate and mirrors the evaluator; see EvaluationPolicy.
type Reporter struct {
	catalog  CatalogReadPort
	roles    RoleListPort
	grants   GrantReadPort
	collator *collate.Collator
}

// NewReporter constructs a Reporter.
func NewReporter(catalogPort CatalogReadPort, rolePort RoleListPort, grantPort GrantReadPort) *Reporter {
	return &Reporter{
		catalog:  catalogPort,
		roles:    rolePort,
		grants:   grantPort,
		collator: collate.New(language.English, collate.IgnoreCase),
	}
}

// ModulesWithSectionsForRole walks the full catalog and marks every section
// with whether the role holds an exact grant for it.
func (r *Reporter) ModulesWithSectionsForRole(ctx context.Context, roleID int64) ([]ModuleSectionsView, error) {
	if _, err := r.roles.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	tree, err := r.catalog.ListModulesWithSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("access: load catalog: %w", err)
	}
	grants, err := r.grants.ListByRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("access: load grants: %w", err)
	}

	granted := make(map[int64]struct{}, len(grants))
	for _, g := range grants {
		if g.SectionID != nil {
			granted[*g.SectionID] = struct{}{}
		}
	}

	views := make([]ModuleSectionsView, 0, len(tree))
	for _, mws := range tree {
		view := ModuleSectionsView{
			ModuleID:   mws.Module.ID,
			ModuleName: mws.Module.Title,
			Sections:   make([]SectionAccessView, 0, len(mws.Sections)),
		}
		for _, sec := range mws.Sections {
			_, has := granted[sec.ID]
			view.Sections = append(view.Sections, SectionAccessView{
				SectionID:   sec.ID,
				SectionName: sec.Title,
				HasAccess:   has,
			})
		}
		views = append(views, view)
	}
	return views, nil
}

// RolesWithAccess reports per-role, per-module coverage: how many of the
// module's sections the role holds explicit grants for, with the section
// names sorted case-insensitively.
func (r *Reporter) RolesWithAccess(ctx context.Context) ([]RoleCoverageView, error) {
	allRoles, err := r.roles.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("access: load roles: %w", err)
	}
	tree, err := r.catalog.ListModulesWithSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("access: load catalog: %w", err)
	}
	grants, err := r.grants.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("access: load grants: %w", err)
	}

	sectionNames := make(map[int64]string)
	for _, mws := range tree {
		for _, sec := range mws.Sections {
			sectionNames[sec.ID] = sec.Title
		}
	}

	// role -> module -> set of granted section ids
	type moduleKey struct{ roleID, moduleID int64 }
	grantedSections := make(map[moduleKey]map[int64]struct{})
	for _, g := range grants {
		if g.SectionID == nil {
			continue
		}
		key := moduleKey{g.RoleID, g.ModuleID}
		if grantedSections[key] == nil {
			grantedSections[key] = make(map[int64]struct{})
		}
		grantedSections[key][*g.SectionID] = struct{}{}
	}

	views := make([]RoleCoverageView, 0, len(allRoles))
	for _, role := range allRoles {
		view := RoleCoverageView{
			RoleID:       role.ID,
			RoleName:     role.Name,
			ModuleAccess: make([]ModuleCoverageView, 0, len(tree)),
		}
		for _, mws := range tree {
			sections := grantedSections[moduleKey{role.ID, mws.Module.ID}]
			names := make([]string, 0, len(sections))
			for id := range sections {
				names = append(names, sectionNames[id])
			}
			r.collator.SortStrings(names)
			view.ModuleAccess = append(view.ModuleAccess, ModuleCoverageView{
				ModuleID:               mws.Module.ID,
				ModuleName:             mws.Module.Title,
				TotalSections:          len(mws.Sections),
				AccessibleSections:     len(sections),
				AccessibleSectionNames: names,
			})
		}
		views = append(views, view)
	}
	return views, nil
}
