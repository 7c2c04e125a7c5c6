package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridian-training/meridian/internal/platform/db"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Repository provides PostgreSQL backed persistence. It accepts a db.Querier
// so the same queries run against the pool or inside a caller's transaction.
type Repository struct {
	db db.Querier
}

// NewRepository constructs a repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// ListModules returns all modules ordered by id.
func (r *Repository) ListModules(ctx context.Context) ([]Module, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title, created_at, updated_at FROM modules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var modules []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Title, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// GetModule fetches one module by id.
func (r *Repository) GetModule(ctx context.Context, id int64) (Module, error) {
	var m Module
	err := r.db.QueryRow(ctx, `SELECT id, title, created_at, updated_at FROM modules WHERE id = $1`, id).
		Scan(&m.ID, &m.Title, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, ErrNotFound
		}
		return Module{}, err
	}
	return m, nil
}

// ListSections returns all sections of one module ordered by sort order.
func (r *Repository) ListSections(ctx context.Context, moduleID int64) ([]Section, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, module_id, title, description, sort_order, COALESCE(external_id, ''), created_at, updated_at
		FROM sections WHERE module_id = $1 ORDER BY sort_order, id`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sections []Section
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.ID, &s.ModuleID, &s.Title, &s.Description, &s.SortOrder, &s.ExternalID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// ListModulesWithSections returns every module with its sections attached.
func (r *Repository) ListModulesWithSections(ctx context.Context) ([]ModuleWithSections, error) {
	modules, err := r.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, module_id, title, description, sort_order, COALESCE(external_id, ''), created_at, updated_at
		FROM sections ORDER BY module_id, sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byModule := make(map[int64][]Section)
	for rows.Next() {
		var s Section
		if err := rows.Scan(&s.ID, &s.ModuleID, &s.Title, &s.Description, &s.SortOrder, &s.ExternalID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		byModule[s.ModuleID] = append(byModule[s.ModuleID], s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]ModuleWithSections, 0, len(modules))
	for _, m := range modules {
		out = append(out, ModuleWithSections{Module: m, Sections: byModule[m.ID]})
	}
	return out, nil
}

// SectionInModule reports whether the section exists and belongs to the
// given module.
func (r *Repository) SectionInModule(ctx context.Context, sectionID, moduleID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sections WHERE id = $1 AND module_id = $2)`,
		sectionID, moduleID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// EnsureModule inserts the module if it does not already exist. The insert is
// a single upsert statement so concurrent callers cannot race a
// check-then-insert.
func (r *Repository) EnsureModule(ctx context.Context, m Module) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO modules (id, title, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`, m.ID, m.Title)
	if err != nil {
		return fmt.Errorf("catalog: ensure module %d: %w", m.ID, err)
	}
	return nil
}

// EnsureSection inserts the section if it does not already exist, same
// upsert semantics as EnsureModule.
func (r *Repository) EnsureSection(ctx context.Context, s Section) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sections (id, module_id, title, description, sort_order, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`,
		s.ID, s.ModuleID, s.Title, s.Description, s.SortOrder, s.ExternalID)
	if err != nil {
		return fmt.Errorf("catalog: ensure section %d: %w", s.ID, err)
	}
	return nil
}
