package projects

import (
	"context"

	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

// ReplaceFiles swaps a project's extracted file set for a new one.
// Duplicate names inside the batch collapse to the last occurrence,
// matching the extractor's last-write-wins contract.
func (r *Repo) ReplaceFiles(ctx context.Context, userDBID, publicID string, files []domain.ProjectFile) error {
	pid, err := r.projectDBID(ctx, userDBID, publicID)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `delete from project_files where project_id = $1::uuid;`, pid); err != nil {
		return err
	}

	const q = `
insert into project_files (project_id, name, content)
values ($1::uuid, $2, $3)
on conflict (project_id, name) do update
set content = excluded.content;
`
	for _, f := range files {
		if _, err := tx.Exec(ctx, q, pid, f.Name, f.Content); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *Repo) ListFiles(ctx context.Context, userDBID, publicID string) ([]domain.ProjectFile, error) {
	pid, err := r.projectDBID(ctx, userDBID, publicID)
	if err != nil {
		return nil, err
	}

	const q = `
select name, content from project_files
where project_id = $1::uuid
order by name;
`
	rows, err := r.db.Query(ctx, q, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ProjectFile, 0, 8)
	for rows.Next() {
		var f domain.ProjectFile
		if err := rows.Scan(&f.Name, &f.Content); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
