package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Cancel stops a scheduled task. Calling it more than once is harmless.
type Cancel func()

// Scheduler runs repeating and one-shot tasks.
type Scheduler interface {
	// Every runs task every interval. Runs never overlap: a tick that comes
	// due while the previous run is still going is rescheduled.
	Every(interval time.Duration, task func()) (Cancel, error)
	// Once runs task a single time after delay.
	Once(delay time.Duration, task func()) (Cancel, error)
	// Shutdown stops all jobs and waits for running ones to finish.
	Shutdown() error
}

// Gocron is a Scheduler backed by a gocron scheduler.
type Gocron struct {
	scheduler gocron.Scheduler
	clock     clockwork.Clock
	logger    *zap.Logger

	mu      sync.Mutex
	stopped bool
}

// NewGocron creates and starts a gocron-backed scheduler. A nil clock means
// the real clock.
func NewGocron(clock clockwork.Clock, logger *zap.Logger) (*Gocron, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	scheduler.Start()

	return &Gocron{
		scheduler: scheduler,
		clock:     clock,
		logger:    logger.Named("schedule"),
	}, nil
}

// Every implements Scheduler.
func (g *Gocron) Every(interval time.Duration, task func()) (Cancel, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval %s", interval)
	}
	return g.add(
		gocron.DurationJob(interval),
		task,
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}

// Once implements Scheduler.
func (g *Gocron) Once(delay time.Duration, task func()) (Cancel, error) {
	start := gocron.OneTimeJobStartImmediately()
	if delay > 0 {
		start = gocron.OneTimeJobStartDateTime(g.clock.Now().Add(delay))
	}
	return g.add(gocron.OneTimeJob(start), task)
}

func (g *Gocron) add(def gocron.JobDefinition, task func(), opts ...gocron.JobOption) (Cancel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return nil, fmt.Errorf("scheduler is not running")
	}

	job, err := g.scheduler.NewJob(def, gocron.NewTask(task), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	id := job.ID()
	g.logger.Debug("job scheduled", zap.String("job_id", id.String()))

	var once sync.Once
	return func() {
		once.Do(func() {
			// One-time jobs remove themselves after running.
			_ = g.scheduler.RemoveJob(id)
		})
	}, nil
}

// Shutdown implements Scheduler.
func (g *Gocron) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return nil
	}
	g.stopped = true

	if err := g.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}
