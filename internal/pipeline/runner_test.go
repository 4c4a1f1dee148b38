package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacf-ai/hacf-backend/internal/llm"
	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

type fakeStore struct {
	project      *domain.Project
	stages       map[domain.StageType]*domain.Stage
	upserts      int
	invalidated  []domain.StageType
	upsertErr    error
	lastUpserted *domain.Stage
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		project: &domain.Project{PublicID: "hacf-12345-6789", Title: "Todo app", Description: "A todo list"},
		stages:  make(map[domain.StageType]*domain.Stage),
	}
}

func (f *fakeStore) Get(ctx context.Context, userDBID, publicID string) (*domain.Project, error) {
	if publicID != f.project.PublicID {
		return nil, domain.ErrProjectNotFound
	}
	return f.project, nil
}

func (f *fakeStore) GetStage(ctx context.Context, userDBID, publicID string, stageType domain.StageType) (*domain.Stage, error) {
	s, ok := f.stages[stageType]
	if !ok {
		return nil, domain.ErrStageNotFound
	}
	return s, nil
}

func (f *fakeStore) UpsertStage(ctx context.Context, userDBID, publicID string, stageType domain.StageType, content string, completed bool) (*domain.Stage, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserts++
	s := &domain.Stage{ProjectID: publicID, StageType: stageType, Content: content, Completed: completed}
	f.stages[stageType] = s
	f.lastUpserted = s
	return s, nil
}

func (f *fakeStore) InvalidateDownstream(ctx context.Context, userDBID, publicID string, after domain.StageType) (int64, error) {
	f.invalidated = append(f.invalidated, after)
	var n int64
	for st, s := range f.stages {
		if st.Order() > after.Order() && s.Completed {
			s.Completed = false
			n++
		}
	}
	return n, nil
}

type fakeChat struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeChat) Chat(ctx context.Context, prompt string) (*llm.Result, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Result{Kind: llm.KindPlain, Text: f.reply}, nil
}

func TestRunStage_FirstStageUsesProjectBrief(t *testing.T) {
	store := newFakeStore()
	chat := &fakeChat{reply: "the plan"}
	runner := NewRunner(store, chat, nil)

	out, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageTaskDefinition, "")

	require.NoError(t, err)
	assert.Equal(t, "the plan", out)
	require.Len(t, chat.prompts, 1)
	assert.Contains(t, chat.prompts[0], "Todo app")
	assert.Contains(t, chat.prompts[0], "A todo list")

	require.NotNil(t, store.lastUpserted)
	assert.True(t, store.lastUpserted.Completed)
	assert.Equal(t, "the plan", store.lastUpserted.Content)
}

func TestRunStage_UnknownProject(t *testing.T) {
	runner := NewRunner(newFakeStore(), &fakeChat{reply: "x"}, nil)

	_, err := runner.RunStage(context.Background(), "u1", "hacf-00000-0000", domain.StageTaskDefinition, "")

	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestRunStage_SequenceErrorWhenPredecessorMissing(t *testing.T) {
	store := newFakeStore()
	runner := NewRunner(store, &fakeChat{reply: "x"}, nil)

	for _, st := range domain.StageOrder[1:] {
		t.Run(string(st), func(t *testing.T) {
			_, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, st, "ignored")
			assert.ErrorIs(t, err, domain.ErrStageSequence)
		})
	}
	assert.Zero(t, store.upserts)
}

func TestRunStage_SequenceErrorWhenPredecessorIncomplete(t *testing.T) {
	store := newFakeStore()
	store.stages[domain.StageTaskDefinition] = &domain.Stage{StageType: domain.StageTaskDefinition, Content: "stale", Completed: false}
	runner := NewRunner(store, &fakeChat{reply: "x"}, nil)

	_, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageRefinement, "")

	assert.ErrorIs(t, err, domain.ErrStageSequence)
}

func TestRunStage_FirstStageEmptyInput(t *testing.T) {
	store := newFakeStore()
	store.project.Title = ""
	store.project.Description = ""
	runner := NewRunner(store, &fakeChat{reply: "x"}, nil)

	_, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageTaskDefinition, "   ")

	assert.ErrorIs(t, err, domain.ErrStageSequence)
}

func TestRunStage_SecondStageConsumesFirstOutput(t *testing.T) {
	store := newFakeStore()
	store.stages[domain.StageTaskDefinition] = &domain.Stage{StageType: domain.StageTaskDefinition, Content: "plan from stage one", Completed: true}
	chat := &fakeChat{reply: "the roadmap"}
	runner := NewRunner(store, chat, nil)

	out, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageRefinement, "")

	require.NoError(t, err)
	assert.Equal(t, "the roadmap", out)
	require.Len(t, chat.prompts, 1)
	assert.Contains(t, chat.prompts[0], "plan from stage one")
}

func TestRunStage_InputOverrideBeatsStoredOutput(t *testing.T) {
	store := newFakeStore()
	store.stages[domain.StageTaskDefinition] = &domain.Stage{StageType: domain.StageTaskDefinition, Content: "stored", Completed: true}
	chat := &fakeChat{reply: "out"}
	runner := NewRunner(store, chat, nil)

	_, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageRefinement, "explicit input")

	require.NoError(t, err)
	assert.Contains(t, chat.prompts[0], "explicit input")
	assert.False(t, strings.Contains(chat.prompts[0], "stored"))
}

func TestRunStage_ChatFailureLeavesNoCompletedStage(t *testing.T) {
	store := newFakeStore()
	chatErr := fmt.Errorf("%w: connection refused", llm.ErrRemote)
	runner := NewRunner(store, &fakeChat{err: chatErr}, nil)

	_, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageTaskDefinition, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrRemote)
	assert.Zero(t, store.upserts)
	_, ok := store.stages[domain.StageTaskDefinition]
	assert.False(t, ok)
}

func TestRunStage_RerunInvalidatesDownstream(t *testing.T) {
	store := newFakeStore()
	for _, st := range domain.StageOrder[:3] {
		store.stages[st] = &domain.Stage{StageType: st, Content: "done", Completed: true}
	}
	runner := NewRunner(store, &fakeChat{reply: "rewritten plan"}, nil)

	_, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageTaskDefinition, "")

	require.NoError(t, err)
	assert.Equal(t, []domain.StageType{domain.StageTaskDefinition}, store.invalidated)
	assert.False(t, store.stages[domain.StageRefinement].Completed)
	assert.False(t, store.stages[domain.StageDevelopment].Completed)
	assert.True(t, store.stages[domain.StageTaskDefinition].Completed)
}

func TestRunStage_UnknownStageType(t *testing.T) {
	store := newFakeStore()
	runner := NewRunner(store, &fakeChat{reply: "x"}, nil)

	_, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageType("deployment"), "")

	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrStageSequence))
}

type recordingTracker struct {
	started  int
	finished []error
}

func (r *recordingTracker) Start(ctx context.Context, userDBID, publicID string, stageType domain.StageType) (string, error) {
	r.started++
	return "run-1", nil
}

func (r *recordingTracker) Finish(ctx context.Context, runID string, runErr error) error {
	r.finished = append(r.finished, runErr)
	return nil
}

func TestRunStage_TracksRuns(t *testing.T) {
	store := newFakeStore()
	tracker := &recordingTracker{}
	runner := NewRunner(store, &fakeChat{reply: "ok"}, tracker)

	_, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageTaskDefinition, "")

	require.NoError(t, err)
	assert.Equal(t, 1, tracker.started)
	require.Len(t, tracker.finished, 1)
	assert.NoError(t, tracker.finished[0])
}

func TestRunStage_TracksFailedRuns(t *testing.T) {
	store := newFakeStore()
	tracker := &recordingTracker{}
	runner := NewRunner(store, &fakeChat{err: fmt.Errorf("%w: boom", llm.ErrRemote)}, tracker)

	_, err := runner.RunStage(context.Background(), "u1", store.project.PublicID, domain.StageTaskDefinition, "")

	require.Error(t, err)
	require.Len(t, tracker.finished, 1)
	assert.Error(t, tracker.finished[0])
}
