package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hacf-ai/hacf-backend/internal/llm"
	"github.com/hacf-ai/hacf-backend/internal/pipeline/prompts"
	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

// Store is the slice of the project store the runner needs. The store
// is a dumb persistence layer; all sequencing lives here.
type Store interface {
	Get(ctx context.Context, userDBID, publicID string) (*domain.Project, error)
	GetStage(ctx context.Context, userDBID, publicID string, stageType domain.StageType) (*domain.Stage, error)
	UpsertStage(ctx context.Context, userDBID, publicID string, stageType domain.StageType, content string, completed bool) (*domain.Stage, error)
	InvalidateDownstream(ctx context.Context, userDBID, publicID string, after domain.StageType) (int64, error)
}

// ChatClient issues a single prompt to the remote chat capability.
type ChatClient interface {
	Chat(ctx context.Context, prompt string) (*llm.Result, error)
}

// Tracker records pipeline invocations for observability. Optional.
type Tracker interface {
	Start(ctx context.Context, userDBID, publicID string, stageType domain.StageType) (string, error)
	Finish(ctx context.Context, runID string, runErr error) error
}

// Runner drives a project through the fixed stage sequence, one stage
// per call. It never auto-chains: clients advance the pipeline by
// calling RunStage again, so each stage call is independently
// transactional and independently retriable.
type Runner struct {
	store   Store
	chat    ChatClient
	tracker Tracker
}

func NewRunner(store Store, chat ChatClient, tracker Tracker) *Runner {
	return &Runner{store: store, chat: chat, tracker: tracker}
}

// RunStage executes one stage: resolve input → fill template → one
// chat call → persist output as completed. A failed chat call leaves
// the completed flag untouched. Re-running a stage invalidates every
// completed stage after it.
func (r *Runner) RunStage(ctx context.Context, userDBID, publicID string, stageType domain.StageType, inputOverride string) (string, error) {
	if !stageType.Valid() {
		return "", fmt.Errorf("unknown stage type %q", stageType)
	}

	project, err := r.store.Get(ctx, userDBID, publicID)
	if err != nil {
		return "", err
	}

	input, err := r.resolveInput(ctx, userDBID, publicID, project, stageType, inputOverride)
	if err != nil {
		return "", err
	}

	prompt, err := prompts.Build(stageType, input)
	if err != nil {
		return "", err
	}

	runID := r.trackStart(ctx, userDBID, publicID, stageType)

	res, err := r.chat.Chat(ctx, prompt)
	if err != nil {
		r.trackFinish(ctx, runID, err)
		return "", err
	}

	if _, err := r.store.UpsertStage(ctx, userDBID, publicID, stageType, res.Text, true); err != nil {
		r.trackFinish(ctx, runID, err)
		return "", err
	}

	// Rewriting an earlier stage leaves later outputs stale; their
	// completed flags are cleared so the UI locks them again.
	if _, err := r.store.InvalidateDownstream(ctx, userDBID, publicID, stageType); err != nil {
		r.trackFinish(ctx, runID, err)
		return "", err
	}

	r.trackFinish(ctx, runID, nil)
	return res.Text, nil
}

// resolveInput applies the sequencing precondition and picks the stage
// input: the explicit override, the previous stage's stored output, or
// the project brief for the first stage.
func (r *Runner) resolveInput(ctx context.Context, userDBID, publicID string, project *domain.Project, stageType domain.StageType, override string) (string, error) {
	prev := stageType.Prev()

	if prev == "" {
		input := strings.TrimSpace(override)
		if input == "" {
			input = strings.TrimSpace(project.Title + "\n\n" + project.Description)
		}
		if input == "" {
			return "", fmt.Errorf("%w: first stage needs a non-empty input", domain.ErrStageSequence)
		}
		return input, nil
	}

	prevStage, err := r.store.GetStage(ctx, userDBID, publicID, prev)
	if errors.Is(err, domain.ErrStageNotFound) {
		return "", fmt.Errorf("%w: run %s first", domain.ErrStageSequence, prev)
	}
	if err != nil {
		return "", err
	}
	if !prevStage.Completed {
		return "", fmt.Errorf("%w: %s is not complete", domain.ErrStageSequence, prev)
	}

	if strings.TrimSpace(override) != "" {
		return override, nil
	}
	return prevStage.Content, nil
}

// Run tracking is best-effort; a tracker failure never blocks a stage.

func (r *Runner) trackStart(ctx context.Context, userDBID, publicID string, stageType domain.StageType) string {
	if r.tracker == nil {
		return ""
	}
	runID, err := r.tracker.Start(ctx, userDBID, publicID, stageType)
	if err != nil {
		log.Printf("pipeline: track start failed: %v", err)
		return ""
	}
	return runID
}

func (r *Runner) trackFinish(ctx context.Context, runID string, runErr error) {
	if r.tracker == nil || runID == "" {
		return
	}
	if err := r.tracker.Finish(ctx, runID, runErr); err != nil {
		log.Printf("pipeline: track finish failed: %v", err)
	}
}
