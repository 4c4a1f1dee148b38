package bootstrap

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/hacf-ai/hacf-backend/internal/api/http"
	"github.com/hacf-ai/hacf-backend/internal/api/http/middleware"
	"github.com/hacf-ai/hacf-backend/internal/auth"
	"github.com/hacf-ai/hacf-backend/internal/llm"
	"github.com/hacf-ai/hacf-backend/internal/pipeline"
	"github.com/hacf-ai/hacf-backend/internal/projects"
	"github.com/hacf-ai/hacf-backend/internal/runs"
	"github.com/hacf-ai/hacf-backend/internal/templates"
	"github.com/hacf-ai/hacf-backend/internal/users"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	DB          *pgxpool.Pool
	Redis       *redis.Client
	Chat        *llm.Client

	// Sustained chat calls per second per user, with burst. Zero
	// means the default (1 rps, burst 3).
	ProcessRPS   float64
	ProcessBurst int
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-Id", "X-User-Email", "X-User-Name", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Disposition", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RequestIDMiddleware())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api/v1")

	userRepo := users.NewRepo(dep.DB)
	projectRepo := projects.NewRepo(dep.DB)
	templateRepo := templates.NewRepo(dep.DB)

	var runRepo *runs.Repo
	var tracker pipeline.Tracker
	if dep.Redis != nil {
		runRepo = runs.NewRepo(dep.Redis)
		tracker = runRepo
	}

	runner := pipeline.NewRunner(projectRepo, dep.Chat, tracker)

	api.Use(auth.WithUser(userRepo))

	projectsGroup := api.Group("/projects")
	projects.Register(projectsGroup, projectRepo)

	templatesGroup := api.Group("/templates")
	templates.Register(templatesGroup, templateRepo, projectRepo)

	rps := dep.ProcessRPS
	if rps <= 0 {
		rps = 1
	}
	burst := dep.ProcessBurst
	if burst <= 0 {
		burst = 3
	}
	projects.RegisterPipeline(api, projectRepo, runner, runRepo, middleware.RateLimitPerUser(rps, burst))

	return r
}
