// Package seeder performs the one-shot migration of the legacy ERP's
// role/module/section dataset into the live schema. The dataset is a
// versioned embedded asset, applied by a generic ensure-catalog plus
// ensure-grants routine, and the whole run is idempotent: a guard on the
// known legacy role ids makes repeat calls a no-op conflict.
package seeder

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/meridian-training/meridian/internal/access"
	"github.com/meridian-training/meridian/internal/catalog"
	"github.com/meridian-training/meridian/internal/legacy"
)

//go:embed fixture.json
var fixtureJSON []byte

// Fixture is the embedded legacy dataset.
type Fixture struct {
	Version int             `json:"version"`
	Modules []FixtureModule `json:"modules"`
	Roles   []FixtureRole   `json:"roles"`
	Grants  []FixtureGrant  `json:"grants"`
}

// FixtureModule is a module to ensure before grants are applied.
type FixtureModule struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// FixtureRole is a role to ensure, correlated by its legacy id.
type FixtureRole struct {
	ERPRoleID string `json:"erpRoleId"`
	Name      string `json:"name"`
}

// FixtureGrant is one legacy (role, module, section) triple.
type FixtureGrant struct {
	ERPRoleID   string `json:"erpRoleId"`
	ModuleID    int64  `json:"moduleId"`
	SectionID   int64  `json:"sectionId"`
	SectionName string `json:"sectionName"`
}

var (
	fixtureOnce sync.Once
	fixture     *Fixture
	fixtureErr  error
)

// LoadFixture parses the embedded dataset once.
func LoadFixture() (*Fixture, error) {
	fixtureOnce.Do(func() {
		var f Fixture
		if err := json.Unmarshal(fixtureJSON, &f); err != nil {
			fixtureErr = fmt.Errorf("seeder: parse fixture: %w", err)
			return
		}
		fixture = &f
	})
	return fixture, fixtureErr
}

// Store is the transactional surface a seed run writes through. The guard
// check lives here rather than on the port so it shares the write
// transaction.
type Store interface {
	access.GrantWriter
	EnsureModule(ctx context.Context, m catalog.Module) error
	EnsureRole(ctx context.Context, name, description string) (int64, error)
	EnsureSection(ctx context.Context, s catalog.Section) error
	// LockSeed serializes concurrent seed runs on a fixed advisory key.
	LockSeed(ctx context.Context) error
	AnyWithExternalRoleID(ctx context.Context, erpRoleIDs []string) (bool, error)
}

// RepositoryPort describes the persistence used by the seeder.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
}

// Service runs the bootstrap seed.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	mapping *legacy.Mapping
	cache   *access.DecisionCache
}

// NewService constructs the seeder. cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, mapping *legacy.Mapping, cache *access.DecisionCache) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, mapping: mapping, cache: cache}
}

// Seed applies the embedded legacy dataset once. It returns the number of
// grants created, or access.ErrAlreadySeeded when any grant already carries
// one of the known legacy role ids. All writes happen in one transaction;
// any failure rolls the whole run back.
func (s *Service) Seed(ctx context.Context) (int, error) {
	fix, err := LoadFixture()
	if err != nil {
		return 0, err
	}

	knownIDs := s.mapping.KnownERPRoleIDs()
	created := 0
	roleIDs := make([]int64, 0, len(fix.Roles))
	err = s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
		if err := store.LockSeed(ctx); err != nil {
			return fmt.Errorf("seeder: lock seed: %w", err)
		}
		seeded, err := store.AnyWithExternalRoleID(ctx, knownIDs)
		if err != nil {
			return fmt.Errorf("seeder: check guard: %w", err)
		}
		if seeded {
			return access.ErrAlreadySeeded
		}

		for _, m := range fix.Modules {
			if err := store.EnsureModule(ctx, catalog.Module{ID: m.ID, Title: m.Title}); err != nil {
				return err
			}
		}

		roleIDByERP := make(map[string]int64, len(fix.Roles))
		for _, r := range fix.Roles {
			id, err := store.EnsureRole(ctx, r.Name, "migrated from legacy ERP")
			if err != nil {
				return err
			}
			roleIDByERP[r.ERPRoleID] = id
			roleIDs = append(roleIDs, id)
		}

		order := make(map[int64]int)
		for _, g := range fix.Grants {
			roleID, ok := roleIDByERP[g.ERPRoleID]
			if !ok {
				return fmt.Errorf("seeder: fixture references unknown legacy role %q", g.ERPRoleID)
			}
			order[g.ModuleID]++
			if err := store.EnsureSection(ctx, catalog.Section{
				ID:         g.SectionID,
				ModuleID:   g.ModuleID,
				Title:      g.SectionName,
				SortOrder:  order[g.ModuleID],
				ExternalID: strconv.FormatInt(g.SectionID, 10),
			}); err != nil {
				return err
			}

			sid := g.SectionID
			exists, err := store.GrantExists(ctx, roleID, g.ModuleID, &sid)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := store.InsertGrant(ctx, access.Grant{
				RoleID:            roleID,
				ModuleID:          g.ModuleID,
				SectionID:         &sid,
				CanView:           true,
				CanEdit:           s.mapping.CanEdit(g.ERPRoleID),
				CanDelete:         s.mapping.CanDelete(g.ERPRoleID),
				IsActive:          true,
				ExternalRoleID:    g.ERPRoleID,
				ExternalModuleID:  strconv.FormatInt(g.ModuleID, 10),
				ExternalSectionID: strconv.FormatInt(g.SectionID, 10),
			}); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, access.ErrAlreadySeeded) {
			s.logger.Error("seed legacy dataset", slog.Any("error", err))
		}
		return 0, err
	}

	if err := s.cache.InvalidateRoles(ctx, roleIDs...); err != nil {
		s.logger.Warn("invalidate decision cache", slog.Any("error", err))
	}
	s.logger.Info("legacy dataset seeded", slog.Int("grants", created))
	return created, nil
}
