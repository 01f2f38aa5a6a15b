package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/logging"
	"github.com/UTSC-CSCC01-Software-Engineering-I/GLOW-WebApp-sub000/internal/readings"
)

// Refresher is the part of the engine the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) readings.MarkerSet
}

// Scheduler periodically triggers an engine refresh. The first run happens
// as soon as the scheduler starts.
type Scheduler struct {
	scheduler *gocron.Scheduler
	engine    Refresher
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. A zero interval means every 5 minutes and a
// zero timeout means 30 seconds per run.
func New(engine Refresher, interval, timeout time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		engine:    engine,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce performs one bounded refresh.
func (s *Scheduler) RunOnce(parent context.Context) readings.MarkerSet {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	ms := s.engine.Refresh(ctx)
	logging.Debug().Dur("took", time.Since(start)).Int("markers", len(ms)).Msg("scheduler: refresh job completed")
	return ms
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
