package templates

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hacf-ai/hacf-backend/internal/auth"
	"github.com/hacf-ai/hacf-backend/internal/projects"
	"github.com/hacf-ai/hacf-backend/internal/projects/domain"
)

type Handler struct {
	repo     *Repo
	projects *projects.Repo
}

func Register(rg *gin.RouterGroup, repo *Repo, projectRepo *projects.Repo) {
	h := &Handler{repo: repo, projects: projectRepo}

	rg.GET("", h.list)
	rg.POST("", h.create)
	rg.GET("/:id", h.get)
	rg.PUT("/:id", h.update)
	rg.DELETE("/:id", h.delete)
	rg.POST("/:id/use", h.use)
}

type createReq struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Tags          []string        `json:"tags"`
	Configuration json.RawMessage `json:"configuration"`
	IsPublic      bool            `json:"is_public"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" || len(req.Configuration) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "name and configuration are required"})
		return
	}

	if req.Category == "" {
		req.Category = "general"
	}

	userID := auth.UserDBID(c)
	t, err := h.repo.Create(c.Request.Context(), userID, strings.TrimSpace(req.Name), req.Description,
		req.Category, req.Tags, req.Configuration, req.IsPublic)
	if errors.Is(err, domain.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "a template with that name already exists"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "template": t})
}

func (h *Handler) list(c *gin.Context) {
	userID := auth.UserDBID(c)
	items, err := h.repo.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "templates": items})
}

func (h *Handler) get(c *gin.Context) {
	userID := auth.UserDBID(c)
	t, err := h.repo.Get(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, domain.ErrTemplateNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "template not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "template": t})
}

type updateReq struct {
	Name          *string         `json:"name"`
	Description   *string         `json:"description"`
	Category      *string         `json:"category"`
	Tags          []string        `json:"tags"`
	Configuration json.RawMessage `json:"configuration"`
	IsPublic      *bool           `json:"is_public"`
}

func (h *Handler) update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserDBID(c)
	t, err := h.repo.Update(c.Request.Context(), userID, c.Param("id"),
		req.Name, req.Description, req.Category, req.Tags, req.Configuration, req.IsPublic)
	if errors.Is(err, domain.ErrTemplateNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "template not found"})
		return
	}
	if errors.Is(err, domain.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": "a template with that name already exists"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "template": t})
}

func (h *Handler) delete(c *gin.Context) {
	userID := auth.UserDBID(c)
	ok, err := h.repo.Delete(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "template not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// templateConfig is the slice of a template's configuration the
// project copy cares about.
type templateConfig struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	TechStack   []string `json:"tech_stack"`
}

// use creates a new project from the template's configuration. The
// configuration is copied, not referenced: later template edits never
// touch the project.
func (h *Handler) use(c *gin.Context) {
	userID := auth.UserDBID(c)
	t, err := h.repo.Use(c.Request.Context(), userID, c.Param("id"))
	if errors.Is(err, domain.ErrTemplateNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "template not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	var cfg templateConfig
	_ = json.Unmarshal(t.Configuration, &cfg)

	title := strings.TrimSpace(cfg.Title)
	if title == "" {
		title = t.Name
	}
	description := strings.TrimSpace(cfg.Description)
	if description == "" {
		description = t.Description
	}
	if len(cfg.TechStack) > 0 {
		description += "\n\nTech stack: " + strings.Join(cfg.TechStack, ", ")
	}

	p, err := h.projects.Create(c.Request.Context(), userID, title, description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p, "template_id": t.ID})
}
