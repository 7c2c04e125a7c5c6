package seeder

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-training/meridian/internal/access"
	"github.com/meridian-training/meridian/internal/catalog"
	"github.com/meridian-training/meridian/internal/platform/db"
	"github.com/meridian-training/meridian/internal/roles"
)

// Repository opens seed transactions against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txStore struct {
	access.GrantWriter
	tx      pgx.Tx
	roles   *roles.Repository
	catalog *catalog.Repository
}

// seedLockKey serializes concurrent seed runs so the guard check and the
// writes share one critical section.
const seedLockKey = 0x5345

func (s *txStore) LockSeed(ctx context.Context) error {
	_, err := s.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, int32(seedLockKey), int32(0))
	return err
}

func (s *txStore) AnyWithExternalRoleID(ctx context.Context, erpRoleIDs []string) (bool, error) {
	return access.AnyWithExternalRoleID(ctx, s.tx, erpRoleIDs)
}

func (s *txStore) EnsureModule(ctx context.Context, m catalog.Module) error {
	return s.catalog.EnsureModule(ctx, m)
}

func (s *txStore) EnsureRole(ctx context.Context, name, description string) (int64, error) {
	return s.roles.EnsureByName(ctx, name, description)
}

func (s *txStore) EnsureSection(ctx context.Context, sec catalog.Section) error {
	return s.catalog.EnsureSection(ctx, sec)
}

// WithTx wraps fn in one repeatable-read transaction covering the whole run.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{
			GrantWriter: access.NewGrantWriter(tx),
			tx:          tx,
			roles:       roles.NewRepository(tx),
			catalog:     catalog.NewRepository(tx),
		})
	})
}
