package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. Statements are idempotent so repeated
// boots are safe; real migration tooling can take over later without
// conflicting with any of these.
const schema = `
create extension if not exists pgcrypto;

create table if not exists users (
    id           uuid primary key default gen_random_uuid(),
    external_id  text not null unique,
    email        text,
    display_name text,
    created_at   timestamptz not null default now(),
    updated_at   timestamptz not null default now()
);

create table if not exists projects (
    id          uuid primary key default gen_random_uuid(),
    public_id   text not null unique,
    user_id     uuid not null references users(id) on delete cascade,
    title       text not null,
    description text not null default '',
    created_at  timestamptz not null default now(),
    updated_at  timestamptz not null default now(),
    deleted_at  timestamptz
);

create table if not exists project_stages (
    id         uuid primary key default gen_random_uuid(),
    project_id uuid not null references projects(id) on delete cascade,
    stage_type text not null,
    content    text not null default '',
    completed  boolean not null default false,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    unique (project_id, stage_type)
);

create table if not exists project_files (
    id         uuid primary key default gen_random_uuid(),
    project_id uuid not null references projects(id) on delete cascade,
    name       text not null,
    content    text not null default '',
    created_at timestamptz not null default now(),
    unique (project_id, name)
);

create table if not exists templates (
    id            uuid primary key default gen_random_uuid(),
    user_id       uuid not null references users(id) on delete cascade,
    name          text not null,
    description   text not null default '',
    category      text not null default 'general',
    tags          text[] not null default '{}',
    configuration jsonb not null default '{}',
    is_public     boolean not null default false,
    use_count     integer not null default 0,
    created_at    timestamptz not null default now(),
    updated_at    timestamptz not null default now(),
    unique (user_id, name)
);

create index if not exists idx_projects_user on projects(user_id) where deleted_at is null;
create index if not exists idx_stages_project on project_stages(project_id);
create index if not exists idx_files_project on project_files(project_id);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
