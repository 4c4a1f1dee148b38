package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

// totalStages is the divisor for derived progress.
var totalStages = len(domain.StageOrder)

func (r *Repo) Create(ctx context.Context, userDBID, title, description string) (*domain.Project, error) {
	if title == "" {
		return nil, fmt.Errorf("title required")
	}

	for i := 0; i < 5; i++ {
		publicID, err := NewPublicID("hacf")
		if err != nil {
			return nil, err
		}

		const q = `
insert into projects (public_id, user_id, title, description)
values ($1, $2::uuid, $3, $4)
returning public_id, title, description, created_at, updated_at;
`
		var p domain.Project
		err = r.db.QueryRow(ctx, q, publicID, userDBID, title, description).
			Scan(&p.PublicID, &p.Title, &p.Description, &p.CreatedAt, &p.UpdatedAt)

		if err == nil {
			return &p, nil
		}

		// unique violation on public_id → retry
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed to generate unique project id")
}

func (r *Repo) Get(ctx context.Context, userDBID, publicID string) (*domain.Project, error) {
	const q = `
select p.public_id, p.title, p.description, p.created_at, p.updated_at,
       (select count(*) from project_stages s where s.project_id = p.id and s.completed)::float / $3
from projects p
where p.user_id = $1::uuid and p.public_id = $2 and p.deleted_at is null;
`
	var p domain.Project
	err := r.db.QueryRow(ctx, q, userDBID, publicID, totalStages).
		Scan(&p.PublicID, &p.Title, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.Progress)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context, userDBID string) ([]domain.Project, error) {
	const q = `
select p.public_id, p.title, p.description, p.created_at, p.updated_at,
       (select count(*) from project_stages s where s.project_id = p.id and s.completed)::float / $2
from projects p
where p.user_id = $1::uuid and p.deleted_at is null
order by p.created_at desc;
`
	rows, err := r.db.Query(ctx, q, userDBID, totalStages)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.PublicID, &p.Title, &p.Description, &p.CreatedAt, &p.UpdatedAt, &p.Progress); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, userDBID, publicID string, title, description *string) (*domain.Project, error) {
	const q = `
update projects
set title = coalesce($3, title),
    description = coalesce($4, description),
    updated_at = now()
where user_id = $1::uuid and public_id = $2 and deleted_at is null
returning public_id, title, description, created_at, updated_at;
`
	var p domain.Project
	err := r.db.QueryRow(ctx, q, userDBID, publicID, title, description).
		Scan(&p.PublicID, &p.Title, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) SoftDelete(ctx context.Context, userDBID, publicID string) (bool, error) {
	const q = `
update projects
set deleted_at = now(), updated_at = now()
where user_id = $1::uuid and public_id = $2 and deleted_at is null;
`
	ct, err := r.db.Exec(ctx, q, userDBID, publicID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// PurgeDeleted hard-deletes soft-deleted projects older than the given
// number of days. Stages and files go with them via FK cascade.
func (r *Repo) PurgeDeleted(ctx context.Context, olderThanDays int) (int64, error) {
	const q = `
delete from projects
where deleted_at is not null and deleted_at < now() - ($1 || ' days')::interval;
`
	ct, err := r.db.Exec(ctx, q, olderThanDays)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// projectDBID resolves a (user, public id) pair to the internal row id.
func (r *Repo) projectDBID(ctx context.Context, userDBID, publicID string) (string, error) {
	const q = `
select id::text from projects
where user_id = $1::uuid and public_id = $2 and deleted_at is null;
`
	var id string
	err := r.db.QueryRow(ctx, q, userDBID, publicID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrProjectNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
