package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Maintainer is the part of the dosing service the scheduler drives.
type Maintainer interface {
	Reload() error
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Config selects which jobs run. Empty specs disable a job.
type Config struct {
	ReloadSpec string
	PruneSpec  string
	// Retention enables the prune job when positive.
	Retention time.Duration
}

// Scheduler runs table reloads and history pruning on cron specs.
type Scheduler struct {
	c      *cron.Cron
	logger *log.Logger
	jobs   []string
}

// New registers the configured jobs against m without starting them.
func New(cfg Config, m Maintainer, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.Default()
	}
	s := &Scheduler{c: cron.New(), logger: logger}
	if cfg.ReloadSpec != "" {
		if _, err := s.c.AddFunc(cfg.ReloadSpec, func() {
			if err := m.Reload(); err != nil {
				logger.Printf("Scheduled table reload failed: %v", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("reload schedule %q: %w", cfg.ReloadSpec, err)
		}
		s.jobs = append(s.jobs, "reload "+cfg.ReloadSpec)
	}
	if cfg.PruneSpec != "" && cfg.Retention > 0 {
		if _, err := s.c.AddFunc(cfg.PruneSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := m.Prune(ctx, cfg.Retention); err != nil {
				logger.Printf("Scheduled history prune failed: %v", err)
			}
		}); err != nil {
			return nil, fmt.Errorf("prune schedule %q: %w", cfg.PruneSpec, err)
		}
		s.jobs = append(s.jobs, "prune "+cfg.PruneSpec)
	}
	return s, nil
}

// Jobs describes the registered jobs.
func (s *Scheduler) Jobs() []string { return s.jobs }

// Run starts the cron loop and stops it when ctx is done, waiting for running jobs.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.jobs) == 0 {
		return
	}
	s.logger.Printf("Scheduled jobs: %v", s.jobs)
	s.c.Start()
	<-ctx.Done()
	<-s.c.Stop().Done()
}
