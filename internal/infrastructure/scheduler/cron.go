package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"PhoneVerse/internal/ports"
)

// CronScheduler runs registered jobs on standard five-field cron expressions
// and descriptors such as "@hourly" or "@every 5m".
type CronScheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	logger  *zap.Logger
	started bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds an idle scheduler in the given location.
func NewCronScheduler(loc *time.Location, logger *zap.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronScheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger.With(zap.String("component", "scheduler")),
	}
}

// Schedule registers job under spec.
func (c *CronScheduler) Schedule(spec string, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	id, err := c.cron.AddFunc(spec, func() { job(time.Now()) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.logger.Info("job scheduled", zap.String("spec", spec), zap.Int("entry", int(id)))
	return nil
}

// Start begins running jobs until Stop or ctx cancellation.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true
	c.cron.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
