package templates

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

// Template is a reusable project-creation preset. It is copied into a
// project at creation time; editing a template never changes projects
// made from it.
type Template struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Tags          []string        `json:"tags"`
	Configuration json.RawMessage `json:"configuration"`
	IsPublic      bool            `json:"is_public"`
	UseCount      int             `json:"use_count"`
	Mine          bool            `json:"mine"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

const templateCols = `id::text, name, description, category, tags, configuration, is_public, use_count, created_at, updated_at`

func (r *Repo) Create(ctx context.Context, userDBID, name, description, category string, tags []string, configuration json.RawMessage, isPublic bool) (*Template, error) {
	if tags == nil {
		tags = []string{}
	}

	const q = `
insert into templates (user_id, name, description, category, tags, configuration, is_public)
values ($1::uuid, $2, $3, $4, $5, $6, $7)
returning ` + templateCols + `;`

	t, err := scanTemplate(r.db.QueryRow(ctx, q, userDBID, name, description, category, tags, configuration, isPublic))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	t.Mine = true
	return t, nil
}

// List returns the caller's templates plus public ones.
func (r *Repo) List(ctx context.Context, userDBID string) ([]Template, error) {
	const q = `
select ` + templateCols + `, user_id = $1::uuid
from templates
where user_id = $1::uuid or is_public
order by use_count desc, created_at desc;
`
	rows, err := r.db.Query(ctx, q, userDBID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Template, 0, 16)
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.Tags, &t.Configuration,
			&t.IsPublic, &t.UseCount, &t.CreatedAt, &t.UpdatedAt, &t.Mine); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get returns a template visible to the caller: their own or a public
// one. Anything else reads as not found.
func (r *Repo) Get(ctx context.Context, userDBID, id string) (*Template, error) {
	const q = `
select ` + templateCols + `, user_id = $1::uuid
from templates
where id = $2::uuid and (user_id = $1::uuid or is_public);
`
	var t Template
	err := r.db.QueryRow(ctx, q, userDBID, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.Tags, &t.Configuration,
			&t.IsPublic, &t.UseCount, &t.CreatedAt, &t.UpdatedAt, &t.Mine)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update modifies the caller's own template. Nil fields are left as-is.
func (r *Repo) Update(ctx context.Context, userDBID, id string, name, description, category *string, tags []string, configuration json.RawMessage, isPublic *bool) (*Template, error) {
	const q = `
update templates
set name = coalesce($3, name),
    description = coalesce($4, description),
    category = coalesce($5, category),
    tags = coalesce($6, tags),
    configuration = coalesce($7, configuration),
    is_public = coalesce($8, is_public),
    updated_at = now()
where id = $2::uuid and user_id = $1::uuid
returning ` + templateCols + `;`

	t, err := scanTemplate(r.db.QueryRow(ctx, q, userDBID, id, name, description, category, tags, configuration, isPublic))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	t.Mine = true
	return t, nil
}

func (r *Repo) Delete(ctx context.Context, userDBID, id string) (bool, error) {
	const q = `delete from templates where id = $2::uuid and user_id = $1::uuid;`
	ct, err := r.db.Exec(ctx, q, userDBID, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// Use bumps the template's use counter and returns it, for callers
// about to copy its configuration into a new project.
func (r *Repo) Use(ctx context.Context, userDBID, id string) (*Template, error) {
	const q = `
update templates
set use_count = use_count + 1, updated_at = now()
where id = $2::uuid and (user_id = $1::uuid or is_public)
returning ` + templateCols + `;`

	t, err := scanTemplate(r.db.QueryRow(ctx, q, userDBID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.Tags, &t.Configuration,
		&t.IsPublic, &t.UseCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
