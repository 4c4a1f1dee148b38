package main

import (
	"context"
	"log"

	"github.com/hacf-ai/hacf-backend/config"
	"github.com/hacf-ai/hacf-backend/internal/bootstrap"
	"github.com/hacf-ai/hacf-backend/internal/llm"
	"github.com/hacf-ai/hacf-backend/internal/maintenance"
	"github.com/hacf-ai/hacf-backend/internal/projects"
	"github.com/hacf-ai/hacf-backend/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: cfg.DSN()})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		// Run tracking is optional; the pipeline works without it.
		log.Printf("redis unavailable, run tracking disabled: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	chat := llm.New(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Timeout)

	scheduler := maintenance.NewScheduler(projects.NewRepo(pool))
	scheduler.Start()
	defer scheduler.Stop()

	r := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "hacf-backend",
		Version:     cfg.App.Version,
		DB:          pool,
		Redis:       rdb,
		Chat:        chat,
	})

	log.Printf("listening on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
