package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/metrics"
	"PhoneVerse/internal/ports"
)

// Run triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// AutomationDeps wires all driven adapters into the automation loop.
type AutomationDeps struct {
	Source    ports.NewsSource
	Rewriter  ports.ContentRewriter
	Images    ports.ImageResolver
	Publisher *Publisher
	// Lock is optional and only needed when several instances share a database.
	Lock   ports.RunLock
	Logger *zap.Logger
	Clock  func() time.Time
}

// AutomationController owns the ingestion batch and its run statistics.
// Every trigger goes through the same single-flight guard.
type AutomationController struct {
	source    ports.NewsSource
	rewriter  ports.ContentRewriter
	images    ports.ImageResolver
	publisher *Publisher
	lock      ports.RunLock
	logger    *zap.Logger
	now       func() time.Time

	maxSaved    int
	maxAttempts int
	itemDelay   time.Duration
	authorName  string

	mu         sync.Mutex
	enabled    bool
	running    bool
	lastRun    *time.Time
	totalRuns  int64
	processed  int64
	lastResult *domain.RunResult
	background sync.WaitGroup
}

// NewAutomationController constructs the controller; enabled follows cfg.
func NewAutomationController(cfg config.AutomationConfig, deps AutomationDeps) *AutomationController {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &AutomationController{
		source:      deps.Source,
		rewriter:    deps.Rewriter,
		images:      deps.Images,
		publisher:   deps.Publisher,
		lock:        deps.Lock,
		logger:      logger.With(zap.String("component", "automation")),
		now:         now,
		maxSaved:    cfg.MaxSavedPerRun,
		maxAttempts: cfg.MaxAttemptsPerRun,
		itemDelay:   cfg.ItemDelay,
		authorName:  cfg.AuthorName,
		enabled:     cfg.Enabled,
	}
}

// Start enables scheduled runs.
func (c *AutomationController) Start() {
	c.mu.Lock()
	c.enabled = true
	c.mu.Unlock()
	c.logger.Info("automation enabled")
}

// Stop disables scheduled runs. A batch in progress finishes normally.
func (c *AutomationController) Stop() {
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()
	c.logger.Info("automation disabled")
}

// Status returns a snapshot of the run state.
func (c *AutomationController) Status() domain.RunStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := domain.RunStats{
		Enabled:           c.enabled,
		Running:           c.running,
		TotalRuns:         c.totalRuns,
		ArticlesProcessed: c.processed,
	}
	if c.lastRun != nil {
		t := *c.lastRun
		stats.LastRun = &t
	}
	if c.lastResult != nil {
		r := *c.lastResult
		stats.LastResult = &r
	}
	return stats
}

// RunScheduled is the cron entry point; it does nothing while disabled or
// while another run is in progress.
func (c *AutomationController) RunScheduled(ctx context.Context) {
	c.mu.Lock()
	enabled := c.enabled
	c.mu.Unlock()
	if !enabled {
		c.logger.Debug("scheduled run skipped, automation disabled")
		return
	}
	if _, err := c.Trigger(ctx, TriggerSchedule); err != nil {
		c.logger.Info("scheduled run skipped", zap.Error(err))
	}
}

// Trigger runs one batch synchronously. It fails with domain.ErrAlreadyRunning
// when a batch is in progress.
func (c *AutomationController) Trigger(ctx context.Context, trigger string) (domain.RunResult, error) {
	if !c.claim() {
		return domain.RunResult{}, domain.ErrAlreadyRunning
	}
	return c.run(ctx, trigger), nil
}

// TriggerAsync claims the run before returning and executes the batch in the
// background, detached from ctx cancellation.
func (c *AutomationController) TriggerAsync(ctx context.Context, trigger string) error {
	if !c.claim() {
		return domain.ErrAlreadyRunning
	}
	runCtx := context.WithoutCancel(ctx)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		c.run(runCtx, trigger)
	}()
	return nil
}

// Wait blocks until background runs started by TriggerAsync finish.
func (c *AutomationController) Wait() {
	c.background.Wait()
}

func (c *AutomationController) claim() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return false
	}
	c.running = true
	return true
}

// run executes a claimed batch and always releases the claim.
func (c *AutomationController) run(ctx context.Context, trigger string) domain.RunResult {
	result := domain.RunResult{Trigger: trigger, StartedAt: c.now().UTC()}
	logger := c.logger.With(zap.String("trigger", trigger))

	defer func() {
		result.FinishedAt = c.now().UTC()
		outcome := "ok"
		if result.Error != "" {
			outcome = "error"
		}
		metrics.AutomationRuns.WithLabelValues(trigger, outcome).Inc()
		metrics.AutomationRunDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())

		c.mu.Lock()
		c.running = false
		c.totalRuns++
		c.processed += int64(result.Saved)
		finished := result.FinishedAt
		c.lastRun = &finished
		r := result
		c.lastResult = &r
		c.mu.Unlock()

		logger.Info("automation run finished",
			zap.Int("fetched", result.Fetched),
			zap.Int("attempted", result.Attempted),
			zap.Int("saved", result.Saved),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("failed", result.Failed),
			zap.String("error", result.Error))
	}()

	if c.lock != nil {
		release, acquired, err := c.lock.Acquire(ctx)
		if err != nil {
			result.Error = fmt.Sprintf("acquire run lock: %v", err)
			return result
		}
		if !acquired {
			result.Error = "run lock held by another instance"
			return result
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release run lock failed", zap.Error(err))
			}
		}()
	}

	items, err := c.source.FetchAll(ctx)
	if err != nil {
		result.Error = fmt.Sprintf("fetch feeds: %v", err)
		return result
	}
	result.Fetched = len(items)
	logger.Info("automation run started", zap.Int("items", len(items)))

	var limiter *rate.Limiter
	if c.itemDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(c.itemDelay), 1)
	}

	for _, item := range items {
		if result.Saved >= c.maxSaved || result.Attempted >= c.maxAttempts {
			logger.Info("run limit reached", zap.Int("attempted", result.Attempted), zap.Int("saved", result.Saved))
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				result.Error = fmt.Sprintf("run interrupted: %v", err)
				break
			}
		}
		result.Attempted++

		saved, err := c.processItem(ctx, item)
		switch {
		case err != nil:
			result.Failed++
			metrics.AutomationItems.WithLabelValues("failed").Inc()
			logger.Warn("item failed", zap.String("source_url", item.SourceURL), zap.Error(err))
		case saved:
			result.Saved++
			metrics.AutomationItems.WithLabelValues("saved").Inc()
		default:
			result.Duplicates++
			metrics.AutomationItems.WithLabelValues("duplicate").Inc()
		}
	}
	return result
}

// processItem reports whether a new article was stored; duplicates are
// reported as (false, nil).
func (c *AutomationController) processItem(ctx context.Context, item domain.NewsItem) (bool, error) {
	// Skip known items before spending a rewrite on them.
	tier, err := c.publisher.Duplicate(ctx, item.SourceURL, item.OriginalTitle)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	if tier != "" {
		return false, nil
	}

	rewritten := c.rewriter.Rewrite(ctx, item.OriginalTitle, item.OriginalContent, item.Category)
	if rewritten.Title == "" {
		rewritten.Title = item.OriginalTitle
	}

	article, err := c.publisher.Publish(ctx, Draft{
		Title:         rewritten.Title,
		Content:       rewritten.Content,
		Excerpt:       rewritten.Excerpt,
		WordCount:     rewritten.WordCount,
		Category:      item.Category,
		FeaturedImage: c.images.Resolve(rewritten.Title, item.Category),
		SourceURL:     item.SourceURL,
		AuthorName:    c.authorName,
	})
	if err != nil {
		return false, err
	}
	return article != nil, nil
}
