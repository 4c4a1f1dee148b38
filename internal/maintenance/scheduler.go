package maintenance

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hacf-ai/hacf-backend/internal/projects"
)

// purgeAfterDays is how long soft-deleted projects linger before the
// nightly job removes them for good.
const purgeAfterDays = 30

type Scheduler struct {
	repo *projects.Repo
	cron *cron.Cron
}

func NewScheduler(repo *projects.Repo) *Scheduler {
	return &Scheduler{repo: repo}
}

// Start initializes cron tasks
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	// (12:00 AM)
	_, err := c.AddFunc("0 0 0 * * *", func() {
		s.runNightlyPurge()
	})

	if err != nil {
		log.Printf("Failed to create cron job: %v", err)
		return
	}

	log.Println("Cron scheduler started (purging deleted projects nightly at 12:00AM)")
	c.Start()
	s.cron = c
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) runNightlyPurge() {
	log.Println("Nightly purge started...")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	n, err := s.repo.PurgeDeleted(ctx, purgeAfterDays)
	if err != nil {
		log.Printf("Purge failed: %v", err)
		return
	}

	log.Printf("Nightly purge removed %d projects at: %s", n, time.Now().Format(time.RFC1123))
}
