package roles

import (
	"context"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	RoleExists(ctx context.Context, id int64) (bool, error)
	EnsureByName(ctx context.Context, name, description string) (int64, error)
}

// Service handles role registry logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches one role.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// RoleExists reports whether the role id is known.
func (s *Service) RoleExists(ctx context.Context, id int64) (bool, error) {
	return s.repo.RoleExists(ctx, id)
}
