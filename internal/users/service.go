package users

import (
	"context"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListRoleIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Service handles user role resolution.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// RoleIDs resolves the role ids assigned to a user.
func (s *Service) RoleIDs(ctx context.Context, userID int64) ([]int64, error) {
	return s.repo.ListRoleIDs(ctx, userID)
}
