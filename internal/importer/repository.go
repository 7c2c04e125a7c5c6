package importer

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-training/meridian/internal/access"
	"github.com/meridian-training/meridian/internal/catalog"
	"github.com/meridian-training/meridian/internal/platform/db"
	"github.com/meridian-training/meridian/internal/roles"
)

// Store is the transactional surface an import runs against. It combines
// the shared grant writer with role and section find-or-create.
type Store interface {
	access.GrantWriter
	EnsureRole(ctx context.Context, name, description string) (int64, error)
	EnsureSection(ctx context.Context, s catalog.Section) error
	SectionInModule(ctx context.Context, sectionID, moduleID int64) (bool, error)
}

// Repository opens import transactions against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txStore struct {
	access.GrantWriter
	roles   *roles.Repository
	catalog *catalog.Repository
}

func (s *txStore) EnsureRole(ctx context.Context, name, description string) (int64, error) {
	return s.roles.EnsureByName(ctx, name, description)
}

func (s *txStore) EnsureSection(ctx context.Context, sec catalog.Section) error {
	return s.catalog.EnsureSection(ctx, sec)
}

func (s *txStore) SectionInModule(ctx context.Context, sectionID, moduleID int64) (bool, error) {
	return s.catalog.SectionInModule(ctx, sectionID, moduleID)
}

// WithTx wraps fn in one repeatable-read transaction covering the whole
// document.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{
			GrantWriter: access.NewGrantWriter(tx),
			roles:       roles.NewRepository(tx),
			catalog:     catalog.NewRepository(tx),
		})
	})
}
