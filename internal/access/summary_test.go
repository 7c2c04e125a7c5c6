package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-training/meridian/internal/catalog"
	"github.com/meridian-training/meridian/internal/roles"
)

type stubCatalogTree struct {
	tree []catalog.ModuleWithSections
}

func (s stubCatalogTree) ListModulesWithSections(ctx context.Context) ([]catalog.ModuleWithSections, error) {
	return s.tree, nil
}

type stubRoleList struct {
	roles []roles.Role
}

func (s stubRoleList) ListRoles(ctx context.Context) ([]roles.Role, error) {
	return s.roles, nil
}

func (s stubRoleList) GetRole(ctx context.Context, id int64) (roles.Role, error) {
	for _, r := range s.roles {
		if r.ID == id {
			return r, nil
		}
	}
	return roles.Role{}, roles.ErrNotFound
}

type stubGrantRead struct {
	grants []Grant
}

func (s stubGrantRead) ListByRole(ctx context.Context, roleID int64) ([]Grant, error) {
	var out []Grant
	for _, g := range s.grants {
		if g.RoleID == roleID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s stubGrantRead) ListAll(ctx context.Context) ([]Grant, error) {
	return append([]Grant(nil), s.grants...), nil
}

func testTree() []catalog.ModuleWithSections {
	return []catalog.ModuleWithSections{
		{
			Module: catalog.Module{ID: 1, Title: "Operations"},
			Sections: []catalog.Section{
				{ID: 301, ModuleID: 1, Title: "Shift Handover"},
				{ID: 302, ModuleID: 1, Title: "Incident Intake"},
				{ID: 303, ModuleID: 1, Title: "Daily Briefing"},
			},
		},
		{
			Module: catalog.Module{ID: 4, Title: "Equipment"},
			Sections: []catalog.Section{
				{ID: 401, ModuleID: 4, Title: "Calibration"},
			},
		},
	}
}

func TestModulesWithSectionsForRole(t *testing.T) {
	reporter := NewReporter(
		stubCatalogTree{tree: testTree()},
		stubRoleList{roles: []roles.Role{{ID: 1, Name: "Training Administrator"}}},
		stubGrantRead{grants: []Grant{
			{RoleID: 1, ModuleID: 1, SectionID: sectionPtr(301)},
			{RoleID: 1, ModuleID: 1, SectionID: sectionPtr(303)},
		}},
	)

	views, err := reporter.ModulesWithSectionsForRole(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, views, 2)

	ops := views[0]
	require.Equal(t, int64(1), ops.ModuleID)
	require.Len(t, ops.Sections, 3)
	require.True(t, ops.Sections[0].HasAccess)
	require.False(t, ops.Sections[1].HasAccess)
	require.True(t, ops.Sections[2].HasAccess)

	equipment := views[1]
	require.Len(t, equipment.Sections, 1)
	require.False(t, equipment.Sections[0].HasAccess)
}

func TestModulesWithSectionsForUnknownRole(t *testing.T) {
	reporter := NewReporter(stubCatalogTree{}, stubRoleList{}, stubGrantRead{})

	_, err := reporter.ModulesWithSectionsForRole(context.Background(), 42)
	require.ErrorIs(t, err, roles.ErrNotFound)
}

func TestRolesWithAccessCoverage(t *testing.T) {
	reporter := NewReporter(
		stubCatalogTree{tree: testTree()},
		stubRoleList{roles: []roles.Role{
			{ID: 1, Name: "Training Administrator"},
			{ID: 2, Name: "Field Operator"},
		}},
		stubGrantRead{grants: []Grant{
			{RoleID: 1, ModuleID: 1, SectionID: sectionPtr(303)},
			{RoleID: 1, ModuleID: 1, SectionID: sectionPtr(301)},
			{RoleID: 1, ModuleID: 4, SectionID: sectionPtr(401)},
		}},
	)

	views, err := reporter.RolesWithAccess(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	admin := views[0]
	require.Equal(t, "Training Administrator", admin.RoleName)
	require.Len(t, admin.ModuleAccess, 2)
	require.Equal(t, 3, admin.ModuleAccess[0].TotalSections)
	require.Equal(t, 2, admin.ModuleAccess[0].AccessibleSections)
	require.Equal(t, []string{"Daily Briefing", "Shift Handover"}, admin.ModuleAccess[0].AccessibleSectionNames,
		"section names sort case-insensitively")
	require.Equal(t, 1, admin.ModuleAccess[1].AccessibleSections)

	operator := views[1]
	require.Equal(t, 0, operator.ModuleAccess[0].AccessibleSections)
	require.Empty(t, operator.ModuleAccess[0].AccessibleSectionNames)
}

func TestRolesWithAccessSkipsWildcards(t *testing.T) {
	reporter := NewReporter(
		stubCatalogTree{tree: testTree()},
		stubRoleList{roles: []roles.Role{{ID: 1, Name: "Training Supervisor"}}},
		stubGrantRead{grants: []Grant{
			// Whole-module wildcard only; counting is by explicit section rows.
			{RoleID: 1, ModuleID: 1, SectionID: nil},
		}},
	)

	views, err := reporter.RolesWithAccess(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, 0, views[0].ModuleAccess[0].AccessibleSections)
}
