package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-training/meridian/internal/access"
	"github.com/meridian-training/meridian/internal/catalog"
	"github.com/meridian-training/meridian/internal/legacy"
)

// RepositoryPort opens the document-wide transaction.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
}

// Service applies import documents.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	mapping  *legacy.Mapping
	cache    *access.DecisionCache
	validate *validator.Validate
}

// NewService constructs the importer. mapping supplies ERP role ids for
// roles whose document entry omits one; cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, mapping *legacy.Mapping, cache *access.DecisionCache) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:   logger,
		repo:     repo,
		mapping:  mapping,
		cache:    cache,
		validate: validator.New(),
	}
}

// ImportRoles validates and applies an import document. All roles in the
// document succeed or none do. Returns the number of roles processed.
func (s *Service) ImportRoles(ctx context.Context, doc Document) (Result, error) {
	if err := s.validate.Struct(doc); err != nil {
		return Result{}, fmt.Errorf("%w: %s", access.ErrValidation, validationDetail(err))
	}

	batchID := uuid.NewString()
	roleIDs := make([]int64, 0, len(doc.Roles))

	err := s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
		for _, role := range doc.Roles {
			roleID, err := store.EnsureRole(ctx, role.RoleName, "")
			if err != nil {
				return fmt.Errorf("importer: ensure role %q: %w", role.RoleName, err)
			}
			grants, err := s.buildGrants(ctx, store, roleID, role)
			if err != nil {
				return err
			}
			if err := access.ReplaceGrantsInTx(ctx, store, roleID, grants); err != nil {
				return err
			}
			roleIDs = append(roleIDs, roleID)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("role import failed",
			slog.String("batch", batchID), slog.Int("roles", len(doc.Roles)), slog.Any("error", err))
		return Result{}, err
	}

	if err := s.cache.InvalidateRoles(ctx, roleIDs...); err != nil {
		s.logger.Warn("invalidate decision cache", slog.Any("error", err))
	}
	s.logger.Info("role import applied",
		slog.String("batch", batchID), slog.Int("roles", len(roleIDs)))
	return Result{BatchID: batchID, RolesProcessed: len(roleIDs), CompletedAt: time.Now().UTC()}, nil
}

// buildGrants expands one role's document entry into grant rows, creating
// referenced sections on demand.
func (s *Service) buildGrants(ctx context.Context, store Store, roleID int64, role RoleImport) ([]access.Grant, error) {
	erpRoleID := role.ERPRoleID
	if erpRoleID == "" && s.mapping != nil {
		if m, ok := s.mapping.ByName(role.RoleName); ok {
			erpRoleID = m.ERPRoleID
		}
	}

	var grants []access.Grant
	for _, mod := range role.ModuleAccess {
		if len(mod.Sections) == 0 {
			grants = append(grants, access.Grant{
				RoleID:           roleID,
				ModuleID:         mod.ModuleID,
				CanView:          true,
				CanEdit:          mod.CanEdit,
				CanDelete:        mod.CanDelete,
				IsActive:         true,
				ExternalRoleID:   erpRoleID,
				ExternalModuleID: strconv.FormatInt(mod.ModuleID, 10),
			})
			continue
		}
		for _, sec := range mod.Sections {
			if err := store.EnsureSection(ctx, catalog.Section{
				ID:          sec.SectionID,
				ModuleID:    mod.ModuleID,
				Title:       sec.SectionName,
				Description: sec.Description,
				SortOrder:   sec.Order,
				ExternalID:  sec.ERPSectionID,
			}); err != nil {
				return nil, err
			}
			// EnsureSection no-ops when the id already exists, so the row may
			// belong to another module. Reject the grant in that case.
			ok, err := store.SectionInModule(ctx, sec.SectionID, mod.ModuleID)
			if err != nil {
				return nil, fmt.Errorf("importer: check section %d: %w", sec.SectionID, err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: section %d does not belong to module %d", access.ErrValidation, sec.SectionID, mod.ModuleID)
			}
			sid := sec.SectionID
			grants = append(grants, access.Grant{
				RoleID:            roleID,
				ModuleID:          mod.ModuleID,
				SectionID:         &sid,
				CanView:           sec.CanView,
				CanEdit:           sec.CanEdit,
				CanDelete:         sec.CanDelete,
				IsActive:          true,
				ExternalRoleID:    erpRoleID,
				ExternalModuleID:  strconv.FormatInt(mod.ModuleID, 10),
				ExternalSectionID: sec.ERPSectionID,
			})
		}
	}
	return grants, nil
}

func validationDetail(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "invalid document"
	}
	first := verrs[0]
	return fmt.Sprintf("field %s failed rule %s", first.Namespace(), first.Tag())
}
