package runs

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

func setupRepo(t *testing.T) *Repo {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRepo(client)
}

func TestStartAndGet(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	runID, err := repo.Start(ctx, "user-1", "hacf-11111-2222", domain.StageTaskDefinition)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := repo.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, "hacf-11111-2222", run.ProjectID)
	assert.Equal(t, domain.StageTaskDefinition, run.StageType)
	assert.Nil(t, run.FinishedAt)
}

func TestFinish_Completed(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	runID, err := repo.Start(ctx, "user-1", "hacf-11111-2222", domain.StageRefinement)
	require.NoError(t, err)

	require.NoError(t, repo.Finish(ctx, runID, nil))

	run, err := repo.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Empty(t, run.Error)
	assert.NotNil(t, run.FinishedAt)
}

func TestFinish_Failed(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	runID, err := repo.Start(ctx, "user-1", "hacf-11111-2222", domain.StageDevelopment)
	require.NoError(t, err)

	require.NoError(t, repo.Finish(ctx, runID, errors.New("remote chat call failed")))

	run, err := repo.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "remote chat call failed", run.Error)
}

func TestFinish_UnknownRun(t *testing.T) {
	repo := setupRepo(t)

	err := repo.Finish(context.Background(), "nope", nil)

	assert.Error(t, err)
}

func TestListByProject(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	id1, err := repo.Start(ctx, "user-1", "hacf-11111-2222", domain.StageTaskDefinition)
	require.NoError(t, err)
	require.NoError(t, repo.Finish(ctx, id1, nil))

	_, err = repo.Start(ctx, "user-1", "hacf-11111-2222", domain.StageRefinement)
	require.NoError(t, err)

	// A different project's run stays out of the listing.
	_, err = repo.Start(ctx, "user-1", "hacf-99999-8888", domain.StageTaskDefinition)
	require.NoError(t, err)

	items, err := repo.ListByProject(ctx, "user-1", "hacf-11111-2222")
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, run := range items {
		assert.Equal(t, "hacf-11111-2222", run.ProjectID)
	}
}
