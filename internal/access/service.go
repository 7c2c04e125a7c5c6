package access

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// RepositoryPort describes the grant persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, GrantWriter) error) error
	ListByRole(ctx context.Context, roleID int64) ([]Grant, error)
	ListDetailed(ctx context.Context, roleID *int64) ([]GrantDetail, error)
	Exists(ctx context.Context, roleID, moduleID int64, sectionID *int64) (bool, error)
}

// RolesPort resolves role existence in the registry.
type RolesPort interface {
	RoleExists(ctx context.Context, id int64) (bool, error)
}

// CatalogPort validates section/module relationships.
type CatalogPort interface {
	SectionInModule(ctx context.Context, sectionID, moduleID int64) (bool, error)
}

// Service is the reconciliation engine and access evaluator.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	roles   RolesPort
	catalog CatalogPort
	policy  EvaluationPolicy
	cache   *DecisionCache
}

// NewService constructs the service. cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, roles RolesPort, catalog CatalogPort, policy EvaluationPolicy, cache *DecisionCache) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, repo: repo, roles: roles, catalog: catalog, policy: policy, cache: cache}
}

// ListGrantsForRole returns all grants of one role.
func (s *Service) ListGrantsForRole(ctx context.Context, roleID int64) ([]Grant, error) {
	return s.repo.ListByRole(ctx, roleID)
}

// ListGrantsDetailed returns denormalized grants, optionally filtered by role.
func (s *Service) ListGrantsDetailed(ctx context.Context, roleID *int64) ([]GrantDetail, error) {
	return s.repo.ListDetailed(ctx, roleID)
}

// UpdateRoleAccess replaces the entire grant set of one role with the
// desired state: delete everything, insert one wildcard row per module with
// an empty section list, otherwise one row per section. All of it commits or
// none of it does; a failed call leaves the prior grant set intact.
func (s *Service) UpdateRoleAccess(ctx context.Context, roleID int64, desired []ModuleAccessInput) error {
	grants, err := s.prepareRole(ctx, roleID, desired)
	if err != nil {
		return err
	}

	opID := uuid.NewString()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx GrantWriter) error {
		return ReplaceGrantsInTx(ctx, tx, roleID, grants)
	})
	if err != nil {
		s.logger.Error("reconcile role access",
			slog.String("op", opID), slog.Int64("role_id", roleID), slog.Any("error", err))
		return fmt.Errorf("access: update role %d: %w", roleID, err)
	}

	s.invalidate(ctx, roleID)
	s.logger.Info("role access reconciled",
		slog.String("op", opID), slog.Int64("role_id", roleID), slog.Int("grants", len(grants)))
	return nil
}

// BulkUpdateRoleAccess replaces the grant sets of every listed role inside a
// single transaction: either all roles are replaced or none. Roles are
// locked in ascending id order so two concurrent bulk calls cannot deadlock.
func (s *Service) BulkUpdateRoleAccess(ctx context.Context, updates []RoleAccessInput) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: no roles given", ErrValidation)
	}

	prepared := make(map[int64][]Grant, len(updates))
	order := make([]int64, 0, len(updates))
	for _, u := range updates {
		if _, dup := prepared[u.RoleID]; dup {
			return fmt.Errorf("%w: role %d listed twice", ErrValidation, u.RoleID)
		}
		grants, err := s.prepareRole(ctx, u.RoleID, u.ModuleAccess)
		if err != nil {
			return err
		}
		prepared[u.RoleID] = grants
		order = append(order, u.RoleID)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	opID := uuid.NewString()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx GrantWriter) error {
		for _, roleID := range order {
			if err := ReplaceGrantsInTx(ctx, tx, roleID, prepared[roleID]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("bulk reconcile role access",
			slog.String("op", opID), slog.Int("roles", len(order)), slog.Any("error", err))
		return fmt.Errorf("access: bulk update: %w", err)
	}

	s.invalidate(ctx, order...)
	s.logger.Info("bulk role access reconciled",
		slog.String("op", opID), slog.Int("roles", len(order)))
	return nil
}

// prepareRole verifies the role and desired state and expands it into grant
// rows. Section membership is checked against the catalog so a grant can
// never point at a section outside its module.
func (s *Service) prepareRole(ctx context.Context, roleID int64, desired []ModuleAccessInput) ([]Grant, error) {
	if roleID <= 0 {
		return nil, fmt.Errorf("%w: role id must be positive", ErrValidation)
	}
	exists, err := s.roles.RoleExists(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("access: check role %d: %w", roleID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: role %d", ErrRoleNotFound, roleID)
	}
	for _, entry := range desired {
		if entry.ModuleID <= 0 {
			return nil, fmt.Errorf("%w: module id must be positive", ErrValidation)
		}
		for _, sectionID := range entry.SectionIDs {
			ok, err := s.catalog.SectionInModule(ctx, sectionID, entry.ModuleID)
			if err != nil {
				return nil, fmt.Errorf("access: check section %d: %w", sectionID, err)
			}
			if !ok {
				return nil, fmt.Errorf("%w: section %d does not belong to module %d", ErrValidation, sectionID, entry.ModuleID)
			}
		}
	}
	return GrantsForRole(roleID, desired), nil
}

// HasAccess reports whether any of the given roles has a grant for the
// module (and section, when given). Lookups are by exact row match; under
// the default ExactMatch policy a wildcard grant does not satisfy a
// section-specific check. Unknown roles simply match nothing: the evaluator
// fails closed.
func (s *Service) HasAccess(ctx context.Context, roleIDs []int64, moduleID int64, sectionID *int64) (bool, error) {
	for _, roleID := range roleIDs {
		ok, err := s.roleHasAccess(ctx, roleID, moduleID, sectionID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) roleHasAccess(ctx context.Context, roleID, moduleID int64, sectionID *int64) (bool, error) {
	if verdict, cached := s.cache.Get(ctx, roleID, moduleID, sectionID); cached {
		return verdict, nil
	}

	verdict, err := s.repo.Exists(ctx, roleID, moduleID, sectionID)
	if err != nil {
		return false, fmt.Errorf("access: evaluate role %d: %w", roleID, err)
	}
	if !verdict && sectionID != nil && s.policy == WildcardFallback {
		verdict, err = s.repo.Exists(ctx, roleID, moduleID, nil)
		if err != nil {
			return false, fmt.Errorf("access: evaluate wildcard role %d: %w", roleID, err)
		}
	}

	s.cache.Put(ctx, roleID, moduleID, sectionID, verdict)
	return verdict, nil
}

func (s *Service) invalidate(ctx context.Context, roleIDs ...int64) {
	if err := s.cache.InvalidateRoles(ctx, roleIDs...); err != nil {
		s.logger.Warn("invalidate decision cache", slog.Any("error", err))
	}
}
