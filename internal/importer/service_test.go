package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-training/meridian/internal/access"
	"github.com/meridian-training/meridian/internal/catalog"
	"github.com/meridian-training/meridian/internal/legacy"
)

type memoryImportStore struct {
	rolesByName map[string]int64
	nextRoleID  int64
	sections    map[int64]catalog.Section
	grants      map[int64][]access.Grant

	failOnInsert int
	inserts      int
}

func newMemoryImportStore() *memoryImportStore {
	return &memoryImportStore{
		rolesByName: make(map[string]int64),
		sections:    make(map[int64]catalog.Section),
		grants:      make(map[int64][]access.Grant),
	}
}

func (s *memoryImportStore) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	rolesSnap := make(map[string]int64, len(s.rolesByName))
	for k, v := range s.rolesByName {
		rolesSnap[k] = v
	}
	sectionsSnap := make(map[int64]catalog.Section, len(s.sections))
	for k, v := range s.sections {
		sectionsSnap[k] = v
	}
	grantsSnap := make(map[int64][]access.Grant, len(s.grants))
	for k, v := range s.grants {
		grantsSnap[k] = append([]access.Grant(nil), v...)
	}
	s.inserts = 0
	if err := fn(ctx, s); err != nil {
		s.rolesByName = rolesSnap
		s.sections = sectionsSnap
		s.grants = grantsSnap
		return err
	}
	return nil
}

func (s *memoryImportStore) EnsureRole(ctx context.Context, name, description string) (int64, error) {
	if id, ok := s.rolesByName[name]; ok {
		return id, nil
	}
	s.nextRoleID++
	s.rolesByName[name] = s.nextRoleID
	return s.nextRoleID, nil
}

func (s *memoryImportStore) EnsureSection(ctx context.Context, sec catalog.Section) error {
	if _, ok := s.sections[sec.ID]; !ok {
		s.sections[sec.ID] = sec
	}
	return nil
}

func (s *memoryImportStore) SectionInModule(ctx context.Context, sectionID, moduleID int64) (bool, error) {
	sec, ok := s.sections[sectionID]
	return ok && sec.ModuleID == moduleID, nil
}

func (s *memoryImportStore) LockRole(ctx context.Context, roleID int64) error { return nil }

func (s *memoryImportStore) DeleteGrantsForRole(ctx context.Context, roleID int64) (int64, error) {
	removed := int64(len(s.grants[roleID]))
	delete(s.grants, roleID)
	return removed, nil
}

func (s *memoryImportStore) InsertGrant(ctx context.Context, g access.Grant) error {
	s.inserts++
	if s.failOnInsert > 0 && s.inserts == s.failOnInsert {
		return errors.New("injected insert failure")
	}
	s.grants[g.RoleID] = append(s.grants[g.RoleID], g)
	return nil
}

func (s *memoryImportStore) GrantExists(ctx context.Context, roleID, moduleID int64, sectionID *int64) (bool, error) {
	for _, g := range s.grants[roleID] {
		if g.ModuleID != moduleID {
			continue
		}
		if sectionID == nil && g.SectionID == nil {
			return true, nil
		}
		if sectionID != nil && g.SectionID != nil && *g.SectionID == *sectionID {
			return true, nil
		}
	}
	return false, nil
}

func newTestImporter(t *testing.T, store *memoryImportStore) *Service {
	t.Helper()
	mapping, err := legacy.Load()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(logger, store, mapping, nil)
}

func validDocument() Document {
	return Document{Roles: []RoleImport{
		{
			RoleName:  "Training Administrator",
			ERPRoleID: "10",
			ModuleAccess: []ModuleImport{
				{
					ModuleID: 1,
					Sections: []SectionImport{
						{SectionID: 301, SectionName: "Shift Handover", CanView: true, CanEdit: true},
						{SectionID: 999, SectionName: "Night Operations", ERPSectionID: "L-999", CanView: true},
					},
				},
				{ModuleID: 4, CanEdit: true, CanDelete: true},
			},
		},
		{
			RoleName: "Course Author",
			ModuleAccess: []ModuleImport{
				{ModuleID: 2, Sections: []SectionImport{
					{SectionID: 211, SectionName: "Policy Review", CanView: true},
				}},
			},
		},
	}}
}

func TestImportRolesAppliesDocument(t *testing.T) {
	store := newMemoryImportStore()
	svc := newTestImporter(t, store)

	res, err := svc.ImportRoles(context.Background(), validDocument())
	require.NoError(t, err)
	require.Equal(t, 2, res.RolesProcessed)
	require.NotEmpty(t, res.BatchID)

	adminID := store.rolesByName["Training Administrator"]
	require.NotZero(t, adminID)
	grants := store.grants[adminID]
	require.Len(t, grants, 3)

	bySection := make(map[int64]access.Grant)
	var wildcard *access.Grant
	for i, g := range grants {
		if g.SectionID == nil {
			wildcard = &grants[i]
			continue
		}
		bySection[*g.SectionID] = g
	}

	require.NotNil(t, wildcard, "an empty section list yields a whole-module grant")
	require.Equal(t, int64(4), wildcard.ModuleID)
	require.True(t, wildcard.CanView)
	require.True(t, wildcard.CanEdit)
	require.True(t, wildcard.CanDelete)
	require.Equal(t, "10", wildcard.ExternalRoleID)
	require.Equal(t, "4", wildcard.ExternalModuleID)

	handover := bySection[301]
	require.True(t, handover.CanEdit)
	require.False(t, handover.CanDelete)

	night := bySection[999]
	require.Equal(t, "L-999", night.ExternalSectionID)
}

func TestImportRolesCreatesMissingSections(t *testing.T) {
	store := newMemoryImportStore()
	svc := newTestImporter(t, store)

	_, err := svc.ImportRoles(context.Background(), validDocument())
	require.NoError(t, err)

	sec, ok := store.sections[999]
	require.True(t, ok, "a referenced section missing from the catalog is created")
	require.Equal(t, "Night Operations", sec.Title)
	require.Equal(t, int64(1), sec.ModuleID)
	require.Equal(t, "L-999", sec.ExternalID)
}

func TestImportRolesReplacesExistingGrants(t *testing.T) {
	store := newMemoryImportStore()
	svc := newTestImporter(t, store)
	ctx := context.Background()

	_, err := svc.ImportRoles(ctx, validDocument())
	require.NoError(t, err)

	doc := Document{Roles: []RoleImport{{
		RoleName:     "Training Administrator",
		ERPRoleID:    "10",
		ModuleAccess: []ModuleImport{{ModuleID: 2}},
	}}}
	_, err = svc.ImportRoles(ctx, doc)
	require.NoError(t, err)

	adminID := store.rolesByName["Training Administrator"]
	grants := store.grants[adminID]
	require.Len(t, grants, 1, "re-importing a role replaces its grant set")
	require.Equal(t, int64(2), grants[0].ModuleID)
}

func TestImportRolesRejectsInvalidDocument(t *testing.T) {
	store := newMemoryImportStore()
	svc := newTestImporter(t, store)

	cases := []struct {
		name string
		doc  Document
	}{
		{"no roles", Document{}},
		{"role without name", Document{Roles: []RoleImport{{ModuleAccess: []ModuleImport{{ModuleID: 1}}}}}},
		{"role without modules", Document{Roles: []RoleImport{{RoleName: "X"}}}},
		{"non-positive module id", Document{Roles: []RoleImport{{RoleName: "X", ModuleAccess: []ModuleImport{{ModuleID: 0}}}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ImportRoles(context.Background(), tc.doc)
			require.ErrorIs(t, err, access.ErrValidation)
			require.Empty(t, store.rolesByName, "a rejected document writes nothing")
		})
	}
}

func TestImportRolesRejectsSectionUnderWrongModule(t *testing.T) {
	store := newMemoryImportStore()
	svc := newTestImporter(t, store)
	ctx := context.Background()

	_, err := svc.ImportRoles(ctx, validDocument())
	require.NoError(t, err)

	// Section 301 already belongs to module 1; the no-op upsert must not let
	// a grant claim it under module 2.
	doc := Document{Roles: []RoleImport{{
		RoleName: "Course Author",
		ModuleAccess: []ModuleImport{{ModuleID: 2, Sections: []SectionImport{
			{SectionID: 301, SectionName: "Shift Handover", CanView: true},
		}}},
	}}}
	_, err = svc.ImportRoles(ctx, doc)
	require.ErrorIs(t, err, access.ErrValidation)

	require.Equal(t, int64(1), store.sections[301].ModuleID, "the section keeps its owning module")
	authorID := store.rolesByName["Course Author"]
	require.Len(t, store.grants[authorID], 1, "the rejected import leaves prior grants untouched")
	require.Equal(t, int64(2), store.grants[authorID][0].ModuleID)
	require.Equal(t, int64(211), *store.grants[authorID][0].SectionID)
}

func TestImportRolesRollsBackWholeDocument(t *testing.T) {
	store := newMemoryImportStore()
	svc := newTestImporter(t, store)
	ctx := context.Background()

	_, err := svc.ImportRoles(ctx, Document{Roles: []RoleImport{{
		RoleName:     "Course Author",
		ModuleAccess: []ModuleImport{{ModuleID: 2}},
	}}})
	require.NoError(t, err)

	// First role replaces fine, the failure hits while writing the second.
	store.failOnInsert = 4
	_, err = svc.ImportRoles(ctx, validDocument())
	require.Error(t, err)

	require.NotContains(t, store.rolesByName, "Training Administrator",
		"roles created mid-document roll back with it")
	authorID := store.rolesByName["Course Author"]
	require.Len(t, store.grants[authorID], 1, "prior grants survive a failed import")
	require.Nil(t, store.grants[authorID][0].SectionID)
}

func TestImportRolesFallsBackToLegacyERPID(t *testing.T) {
	store := newMemoryImportStore()
	svc := newTestImporter(t, store)

	doc := Document{Roles: []RoleImport{{
		RoleName:     "Training Supervisor",
		ModuleAccess: []ModuleImport{{ModuleID: 1}},
	}}}
	_, err := svc.ImportRoles(context.Background(), doc)
	require.NoError(t, err)

	id := store.rolesByName["Training Supervisor"]
	require.Len(t, store.grants[id], 1)
	require.Equal(t, "20", store.grants[id][0].ExternalRoleID,
		"a known role name without an explicit ERP id resolves through the mapping")
}
