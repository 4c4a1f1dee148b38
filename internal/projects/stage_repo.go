package projects

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

// UpsertStage writes a stage's content and completion flag, creating
// the row on first write. Last write wins per (project, stage_type);
// sequencing is the pipeline runner's concern, not the store's.
func (r *Repo) UpsertStage(ctx context.Context, userDBID, publicID string, stageType domain.StageType, content string, completed bool) (*domain.Stage, error) {
	pid, err := r.projectDBID(ctx, userDBID, publicID)
	if err != nil {
		return nil, err
	}

	const q = `
insert into project_stages (project_id, stage_type, content, completed)
values ($1::uuid, $2, $3, $4)
on conflict (project_id, stage_type) do update
set content = excluded.content,
    completed = excluded.completed,
    updated_at = now()
returning project_id::text, stage_type, content, completed, created_at, updated_at;
`
	var s domain.Stage
	err = r.db.QueryRow(ctx, q, pid, stageType, content, completed).
		Scan(&s.ProjectID, &s.StageType, &s.Content, &s.Completed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) GetStage(ctx context.Context, userDBID, publicID string, stageType domain.StageType) (*domain.Stage, error) {
	pid, err := r.projectDBID(ctx, userDBID, publicID)
	if err != nil {
		return nil, err
	}

	const q = `
select project_id::text, stage_type, content, completed, created_at, updated_at
from project_stages
where project_id = $1::uuid and stage_type = $2;
`
	var s domain.Stage
	err = r.db.QueryRow(ctx, q, pid, stageType).
		Scan(&s.ProjectID, &s.StageType, &s.Content, &s.Completed, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStages returns the project's stages in pipeline order, not
// insertion order.
func (r *Repo) ListStages(ctx context.Context, userDBID, publicID string) ([]domain.Stage, error) {
	pid, err := r.projectDBID(ctx, userDBID, publicID)
	if err != nil {
		return nil, err
	}

	const q = `
select project_id::text, stage_type, content, completed, created_at, updated_at
from project_stages
where project_id = $1::uuid;
`
	rows, err := r.db.Query(ctx, q, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byType := make(map[domain.StageType]domain.Stage, len(domain.StageOrder))
	for rows.Next() {
		var s domain.Stage
		if err := rows.Scan(&s.ProjectID, &s.StageType, &s.Content, &s.Completed, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		byType[s.StageType] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Stage, 0, len(byType))
	for _, st := range domain.StageOrder {
		if s, ok := byType[st]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// InvalidateDownstream clears the completed flag on every stage after
// the given one. Content is kept so the UI can show the stale output.
func (r *Repo) InvalidateDownstream(ctx context.Context, userDBID, publicID string, after domain.StageType) (int64, error) {
	downstream := make([]string, 0, len(domain.StageOrder))
	for _, st := range domain.StageOrder {
		if st.Order() > after.Order() {
			downstream = append(downstream, string(st))
		}
	}
	if len(downstream) == 0 {
		return 0, nil
	}

	pid, err := r.projectDBID(ctx, userDBID, publicID)
	if err != nil {
		return 0, err
	}

	const q = `
update project_stages
set completed = false, updated_at = now()
where project_id = $1::uuid and completed and stage_type = any($2);
`
	ct, err := r.db.Exec(ctx, q, pid, downstream)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
