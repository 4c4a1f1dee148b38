package projects

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hacf-ai/hacf-backend/internal/auth"
	"github.com/hacf-ai/hacf-backend/internal/extract"
	"github.com/hacf-ai/hacf-backend/internal/llm"
	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
	"github.com/hacf-ai/hacf-backend/internal/runs"
)

// StageRunner executes one pipeline stage (see internal/pipeline).
type StageRunner interface {
	RunStage(ctx context.Context, userDBID, publicID string, stageType domain.StageType, inputOverride string) (string, error)
}

// PipelineHandler serves the endpoints the form/chat UI drives the
// pipeline with: create_project, process_layer, project_zip,
// project_json, plus the per-project run history.
type PipelineHandler struct {
	repo   *Repo
	runner StageRunner
	runs   *runs.Repo
}

// RegisterPipeline mounts the pipeline routes on the API group.
// processMiddleware (rate limiting) wraps only the layer-processing
// endpoint, since that is what spends chat calls.
func RegisterPipeline(rg *gin.RouterGroup, repo *Repo, runner StageRunner, runRepo *runs.Repo, processMiddleware ...gin.HandlerFunc) {
	h := &PipelineHandler{repo: repo, runner: runner, runs: runRepo}

	rg.POST("/create_project", h.createProject)

	process := append([]gin.HandlerFunc{}, processMiddleware...)
	process = append(process, h.processLayer)
	rg.POST("/process_layer/:public_id/:layer", process...)

	rg.GET("/project_zip/:public_id", h.projectZip)
	rg.GET("/project_json/:public_id", h.projectJSON)
	rg.GET("/projects/:public_id/runs", h.listRuns)
}

type createProjectReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (h *PipelineHandler) createProject(c *gin.Context) {
	var req createProjectReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "title is required"})
		return
	}

	userID := auth.UserDBID(c)
	p, err := h.repo.Create(c.Request.Context(), userID, strings.TrimSpace(req.Title), req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "project_id": p.PublicID})
}

type processLayerReq struct {
	Input string `json:"input"`
}

func (h *PipelineHandler) processLayer(c *gin.Context) {
	stageType := parseStage(c.Param("layer"))
	if stageType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "unknown layer"})
		return
	}

	var req processLayerReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid body"})
			return
		}
	}

	userID := auth.UserDBID(c)
	publicID := c.Param("public_id")

	output, err := h.runner.RunStage(c.Request.Context(), userID, publicID, stageType, req.Input)
	if err != nil {
		status, message := pipelineErrorResponse(err)
		c.JSON(status, gin.H{"status": "error", "message": message})
		return
	}

	if stageType != domain.StageFinalOutput {
		c.JSON(http.StatusOK, gin.H{"status": "success", "output": output})
		return
	}

	// The final layer's output is the deliverable: extract the file
	// collection and persist it alongside the stage.
	files := extract.Extract(output)
	if err := h.repo.ReplaceFiles(c.Request.Context(), userID, publicID, files); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "output": output, "files": files})
}

func (h *PipelineHandler) projectZip(c *gin.Context) {
	userID := auth.UserDBID(c)
	publicID := c.Param("public_id")

	files, err := h.projectFiles(c, userID, publicID)
	if err != nil {
		return // response already written
	}

	name, data, zipped, err := extract.Package(files)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	if zipped {
		c.Header("Content-Disposition", `attachment; filename="`+publicID+`.zip"`)
		c.Data(http.StatusOK, "application/zip", data)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

func (h *PipelineHandler) projectJSON(c *gin.Context) {
	userID := auth.UserDBID(c)
	publicID := c.Param("public_id")

	p, err := h.repo.Get(c.Request.Context(), userID, publicID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "project not found"})
		return
	}

	stages, err := h.repo.ListStages(c.Request.Context(), userID, publicID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	files, err := h.repo.ListFiles(c.Request.Context(), userID, publicID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"project": p,
		"stages":  stages,
		"files":   files,
	})
}

func (h *PipelineHandler) listRuns(c *gin.Context) {
	userID := auth.UserDBID(c)
	publicID := c.Param("public_id")

	if _, err := h.repo.Get(c.Request.Context(), userID, publicID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "project not found"})
		return
	}

	if h.runs == nil {
		c.JSON(http.StatusOK, gin.H{"status": "success", "runs": []runs.Run{}})
		return
	}

	items, err := h.runs.ListByProject(c.Request.Context(), userID, publicID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "runs": items})
}

// projectFiles returns the persisted file set, re-extracting from the
// most recent completed stage when nothing was persisted yet. Writes
// the error response itself on failure.
func (h *PipelineHandler) projectFiles(c *gin.Context, userID, publicID string) ([]domain.ProjectFile, error) {
	files, err := h.repo.ListFiles(c.Request.Context(), userID, publicID)
	if errors.Is(err, domain.ErrProjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "project not found"})
		return nil, err
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return nil, err
	}
	if len(files) > 0 {
		return files, nil
	}

	stages, err := h.repo.ListStages(c.Request.Context(), userID, publicID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return nil, err
	}

	var latest *domain.Stage
	for i := range stages {
		if stages[i].Completed {
			latest = &stages[i]
		}
	}
	if latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "no completed stage output to download"})
		return nil, domain.ErrStageNotFound
	}

	return extract.Extract(latest.Content), nil
}

// parseStage accepts either a 1-based layer number or a stage type
// name.
func parseStage(param string) domain.StageType {
	if n, err := strconv.Atoi(param); err == nil {
		return domain.StageTypeForLayer(n)
	}
	st := domain.StageType(param)
	if st.Valid() {
		return st
	}
	return ""
}

// pipelineErrorResponse maps runner errors to a status code and a
// user-facing message.
func pipelineErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound):
		return http.StatusNotFound, "project not found"
	case errors.Is(err, domain.ErrStageSequence):
		return http.StatusConflict, err.Error()
	case errors.Is(err, llm.ErrAuthCanceled):
		return http.StatusBadGateway, "the AI provider sign-in was canceled; try the stage again"
	case errors.Is(err, llm.ErrRemote):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
