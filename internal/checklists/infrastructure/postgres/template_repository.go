package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	checklists "solarops-cloud/internal/checklists/domain"
)

const defaultTemplatesTable = "checklist_templates"

// DBTX is the shared query surface of *sql.DB and *sql.Tx.
type DBTX interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TemplateRepository is a Postgres implementation for checklist templates.
type TemplateRepository struct {
	db    DBTX
	table string
}

// NewTemplateRepository constructs a repository.
func NewTemplateRepository(db DBTX, opts ...TemplateOption) *TemplateRepository {
	repo := &TemplateRepository{db: db, table: defaultTemplatesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// TemplateOption configures the repository.
type TemplateOption func(*TemplateRepository)

// WithTemplatesTable overrides the default table name.
func WithTemplatesTable(table string) TemplateOption {
	return func(repo *TemplateRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a template by id.
func (r *TemplateRepository) Get(ctx context.Context, id string) (*checklists.Template, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("template repo: nil db")
	}
	if id == "" {
		return nil, errors.New("template repo: empty id")
	}
	query := fmt.Sprintf(`
SELECT id, tenant_id, name, phase, kind, items, active, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var template checklists.Template
	var items []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&template.ID, &template.TenantID, &template.Name, &template.Phase, &template.Kind,
		&items, &template.Active, &template.CreatedAt, &template.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &template.Items); err != nil {
		return nil, err
	}
	template.CreatedAt = template.CreatedAt.UTC()
	template.UpdatedAt = template.UpdatedAt.UTC()
	return &template, nil
}

// ListActive returns active templates matching tenant and kind scope. A
// template with an empty kind applies to every installation kind.
func (r *TemplateRepository) ListActive(ctx context.Context, tenantID, kind string) ([]*checklists.Template, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("template repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, tenant_id, name, phase, kind, items, active, created_at, updated_at
FROM %s
WHERE active = TRUE
  AND ($1 = '' OR tenant_id = $1)
  AND ($2 = '' OR kind = '' OR kind = $2)
ORDER BY name`, r.table)

	rows, err := r.db.QueryContext(ctx, query, tenantID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*checklists.Template
	for rows.Next() {
		var template checklists.Template
		var items []byte
		if err := rows.Scan(
			&template.ID, &template.TenantID, &template.Name, &template.Phase, &template.Kind,
			&items, &template.Active, &template.CreatedAt, &template.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(items, &template.Items); err != nil {
			return nil, err
		}
		template.CreatedAt = template.CreatedAt.UTC()
		template.UpdatedAt = template.UpdatedAt.UTC()
		templates = append(templates, &template)
	}
	return templates, rows.Err()
}

// Save upserts a template.
func (r *TemplateRepository) Save(ctx context.Context, template *checklists.Template) error {
	if r == nil || r.db == nil {
		return errors.New("template repo: nil db")
	}
	if template == nil {
		return checklists.ErrNilTemplate
	}
	items, err := json.Marshal(template.Items)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, tenant_id, name, phase, kind, items, active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	phase = EXCLUDED.phase,
	kind = EXCLUDED.kind,
	items = EXCLUDED.items,
	active = EXCLUDED.active,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		template.ID, template.TenantID, template.Name, template.Phase, template.Kind,
		items, template.Active, template.CreatedAt.UTC(), template.UpdatedAt.UTC(),
	)
	return err
}
