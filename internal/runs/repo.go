package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

const (
	runKeyPrefix     = "hacf:run:"     // run data: hacf:run:{run_id}
	projectSetPrefix = "hacf:project:" // run IDs per project: hacf:project:{user}:{public_id}
	runTTL           = 7 * 24 * time.Hour
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one pipeline-stage invocation. Runs are transient
// observability records with a TTL, not part of the durable store.
type Run struct {
	RunID      string           `json:"run_id"`
	UserID     string           `json:"user_id"`
	ProjectID  string           `json:"project_id"`
	StageType  domain.StageType `json:"stage_type"`
	Status     string           `json:"status"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// Repo handles Redis operations for pipeline runs.
type Repo struct {
	client *redis.Client
}

func NewRepo(client *redis.Client) *Repo {
	return &Repo{client: client}
}

// Start records a new running invocation and returns its run ID.
func (r *Repo) Start(ctx context.Context, userDBID, publicID string, stageType domain.StageType) (string, error) {
	run := Run{
		RunID:     uuid.New().String(),
		UserID:    userDBID,
		ProjectID: publicID,
		StageType: stageType,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	data, err := json.Marshal(run)
	if err != nil {
		return "", fmt.Errorf("marshal run: %w", err)
	}

	setKey := r.projectSetKey(userDBID, publicID)
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.runKey(run.RunID), data, runTTL)
	pipe.SAdd(ctx, setKey, run.RunID)
	pipe.Expire(ctx, setKey, runTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store run: %w", err)
	}

	return run.RunID, nil
}

// Finish marks a run completed or failed depending on runErr.
func (r *Repo) Finish(ctx context.Context, runID string, runErr error) error {
	run, err := r.Get(ctx, runID)
	if err != nil {
		return err
	}

	now := time.Now()
	run.FinishedAt = &now
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = StatusCompleted
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return r.client.Set(ctx, r.runKey(runID), data, runTTL).Err()
}

func (r *Repo) Get(ctx context.Context, runID string) (*Run, error) {
	data, err := r.client.Get(ctx, r.runKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, err
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &run, nil
}

// ListByProject returns a project's runs, newest first. Runs whose
// keys have expired are skipped.
func (r *Repo) ListByProject(ctx context.Context, userDBID, publicID string) ([]Run, error) {
	ids, err := r.client.SMembers(ctx, r.projectSetKey(userDBID, publicID)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Run, 0, len(ids))
	for _, id := range ids {
		run, err := r.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *run)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (r *Repo) runKey(runID string) string {
	return runKeyPrefix + runID
}

func (r *Repo) projectSetKey(userDBID, publicID string) string {
	return projectSetPrefix + userDBID + ":" + publicID
}
