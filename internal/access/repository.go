package access

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-training/meridian/internal/platform/db"
)

// GrantWriter is the in-transaction write surface over the grant table. The
// reconciliation engine, the role importer and the bootstrap seeder all share
// it so replace semantics exist in exactly one place.
type GrantWriter interface {
	// LockRole takes a transaction-scoped advisory lock keyed by the role id.
	// Concurrent replaces of the same role serialize on it instead of racing
	// delete/insert interleavings.
	LockRole(ctx context.Context, roleID int64) error
	DeleteGrantsForRole(ctx context.Context, roleID int64) (int64, error)
	InsertGrant(ctx context.Context, g Grant) error
	GrantExists(ctx context.Context, roleID, moduleID int64, sectionID *int64) (bool, error)
}

// Repository provides PostgreSQL backed persistence for grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction, handing it the
// transactional grant writer. Rollback on error, commit otherwise.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, GrantWriter) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewGrantWriter(tx))
	})
}

// ListByRole returns every grant of one role, any state.
func (r *Repository) ListByRole(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, role_id, module_id, section_id, can_view, can_edit, can_delete, is_active,
		       COALESCE(external_role_id, ''), COALESCE(external_module_id, ''), COALESCE(external_section_id, '')
		FROM role_module_access
		WHERE role_id = $1
		ORDER BY module_id, section_id NULLS FIRST`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGrants(rows)
}

// ListAll returns every grant row.
func (r *Repository) ListAll(ctx context.Context) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, role_id, module_id, section_id, can_view, can_edit, can_delete, is_active,
		       COALESCE(external_role_id, ''), COALESCE(external_module_id, ''), COALESCE(external_section_id, '')
		FROM role_module_access
		ORDER BY role_id, module_id, section_id NULLS FIRST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanGrants(rows)
}

// ListDetailed returns grants denormalized with role, module and section
// names. A nil roleID returns all rows.
func (r *Repository) ListDetailed(ctx context.Context, roleID *int64) ([]GrantDetail, error) {
	const query = `
		SELECT g.id, g.role_id, g.module_id, g.section_id, g.can_view, g.can_edit, g.can_delete, g.is_active,
		       COALESCE(g.external_role_id, ''), COALESCE(g.external_module_id, ''), COALESCE(g.external_section_id, ''),
		       r.name, m.title, COALESCE(s.title, '')
		FROM role_module_access g
		JOIN roles r ON r.id = g.role_id
		JOIN modules m ON m.id = g.module_id
		LEFT JOIN sections s ON s.id = g.section_id
		WHERE $1::bigint IS NULL OR g.role_id = $1
		ORDER BY r.name, g.module_id, g.section_id NULLS FIRST`
	rows, err := r.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var details []GrantDetail
	for rows.Next() {
		var d GrantDetail
		if err := rows.Scan(
			&d.ID, &d.RoleID, &d.ModuleID, &d.SectionID,
			&d.CanView, &d.CanEdit, &d.CanDelete, &d.IsActive,
			&d.ExternalRoleID, &d.ExternalModuleID, &d.ExternalSectionID,
			&d.RoleName, &d.ModuleName, &d.SectionName,
		); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// Exists reports whether a grant row matches (roleID, moduleID, sectionID)
// exactly, NULL section included.
func (r *Repository) Exists(ctx context.Context, roleID, moduleID int64, sectionID *int64) (bool, error) {
	return grantExists(ctx, r.pool, roleID, moduleID, sectionID)
}

// AnyWithExternalRoleID reports whether any grant carries one of the given
// legacy role ids. The bootstrap seeder runs it inside its transaction as
// the idempotence guard.
func AnyWithExternalRoleID(ctx context.Context, q db.Querier, erpRoleIDs []string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM role_module_access WHERE external_role_id = ANY($1))`,
		erpRoleIDs).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// grantWriter implements GrantWriter over a db.Querier (a pgx.Tx in
// production paths).
type grantWriter struct {
	db db.Querier
}

// NewGrantWriter wraps a querier in the shared grant write surface. Importer
// and seeder repositories use it to reuse the grant SQL inside their own
// transactions.
func NewGrantWriter(q db.Querier) GrantWriter {
	return &grantWriter{db: q}
}

// lockNamespace separates grant-replace advisory locks from other advisory
// lock users of the same database.
const lockNamespace = 0x4d45

func (w *grantWriter) LockRole(ctx context.Context, roleID int64) error {
	if _, err := w.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, int32(lockNamespace), int32(roleID)); err != nil {
		return fmt.Errorf("access: lock role %d: %w", roleID, err)
	}
	return nil
}

func (w *grantWriter) DeleteGrantsForRole(ctx context.Context, roleID int64) (int64, error) {
	tag, err := w.db.Exec(ctx, `DELETE FROM role_module_access WHERE role_id = $1`, roleID)
	if err != nil {
		return 0, fmt.Errorf("access: delete grants for role %d: %w", roleID, err)
	}
	return tag.RowsAffected(), nil
}

func (w *grantWriter) InsertGrant(ctx context.Context, g Grant) error {
	_, err := w.db.Exec(ctx, `
		INSERT INTO role_module_access
			(role_id, module_id, section_id, can_view, can_edit, can_delete, is_active,
			 external_role_id, external_module_id, external_section_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NOW(), NOW())`,
		g.RoleID, g.ModuleID, g.SectionID, g.CanView, g.CanEdit, g.CanDelete, g.IsActive,
		g.ExternalRoleID, g.ExternalModuleID, g.ExternalSectionID)
	if err != nil {
		return fmt.Errorf("access: insert grant role=%d module=%d: %w", g.RoleID, g.ModuleID, err)
	}
	return nil
}

func (w *grantWriter) GrantExists(ctx context.Context, roleID, moduleID int64, sectionID *int64) (bool, error) {
	return grantExists(ctx, w.db, roleID, moduleID, sectionID)
}

func grantExists(ctx context.Context, q db.Querier, roleID, moduleID int64, sectionID *int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_module_access
			WHERE role_id = $1 AND module_id = $2 AND section_id IS NOT DISTINCT FROM $3
		)`, roleID, moduleID, sectionID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func scanGrants(rows pgx.Rows) ([]Grant, error) {
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(
			&g.ID, &g.RoleID, &g.ModuleID, &g.SectionID,
			&g.CanView, &g.CanEdit, &g.CanDelete, &g.IsActive,
			&g.ExternalRoleID, &g.ExternalModuleID, &g.ExternalSectionID,
		); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// ReplaceGrantsInTx deletes every grant of the role and inserts the given
// rows, under the writer's transaction and the per-role advisory lock. This
// is the single replace primitive behind the reconciliation engine, the role
// importer and bulk updates.
func ReplaceGrantsInTx(ctx context.Context, w GrantWriter, roleID int64, grants []Grant) error {
	if err := w.LockRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := w.DeleteGrantsForRole(ctx, roleID); err != nil {
		return err
	}
	for _, g := range grants {
		if err := w.InsertGrant(ctx, g); err != nil {
			return err
		}
	}
	return nil
}
