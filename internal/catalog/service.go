package catalog

import (
	"context"
)

// RepositoryPort describes the persistence operations used by Service.
type RepositoryPort interface {
	ListModules(ctx context.Context) ([]Module, error)
	GetModule(ctx context.Context, id int64) (Module, error)
	ListSections(ctx context.Context, moduleID int64) ([]Section, error)
	ListModulesWithSections(ctx context.Context) ([]ModuleWithSections, error)
	SectionInModule(ctx context.Context, sectionID, moduleID int64) (bool, error)
}

// Service exposes the catalog read model.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListModules returns all modules.
func (s *Service) ListModules(ctx context.Context) ([]Module, error) {
	return s.repo.ListModules(ctx)
}

// ListSections returns the sections of one module. The module must exist.
func (s *Service) ListSections(ctx context.Context, moduleID int64) ([]Section, error) {
	if _, err := s.repo.GetModule(ctx, moduleID); err != nil {
		return nil, err
	}
	return s.repo.ListSections(ctx, moduleID)
}

// ListModulesWithSections returns every module with its sections.
func (s *Service) ListModulesWithSections(ctx context.Context) ([]ModuleWithSections, error) {
	return s.repo.ListModulesWithSections(ctx)
}

// SectionInModule reports whether a section belongs to a module.
func (s *Service) SectionInModule(ctx context.Context, sectionID, moduleID int64) (bool, error) {
	return s.repo.SectionInModule(ctx, sectionID, moduleID)
}
