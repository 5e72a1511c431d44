package autoclose

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ghostbot/ghostbot/internal/logging"
)

// Scheduler runs a Closer on a cron schedule.
type Scheduler struct {
	closer  *Closer
	config  *Config
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	entryID cron.EntryID
	logger  *slog.Logger
}

// NewScheduler creates a new autoclose scheduler
func NewScheduler(closer *Closer, config *Config) *Scheduler {
	return &Scheduler{
		closer: closer,
		config: config,
		cron:   cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logging.WithComponent("autoclose.scheduler"),
	}
}

// Start begins the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if !s.config.Enabled || s.config.HelpChannelID == "" {
		s.logger.Info("Autoclose disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, func() {
		if _, err := s.closer.Run(ctx); err != nil {
			s.logger.Error("Autoclose pass failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return err
	}

	s.entryID = entryID
	s.cron.Start()
	s.running = true

	s.logger.Info("Autoclose scheduler started",
		slog.String("schedule", s.config.Schedule),
		slog.Time("next_run", s.cron.Entry(s.entryID).Next))
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("Autoclose scheduler stopped")
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// IsRunning returns whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow triggers an immediate pass.
func (s *Scheduler) RunNow(ctx context.Context) (*Report, error) {
	return s.closer.Run(ctx)
}
