package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"PhoneVerse/internal/config"
	"PhoneVerse/internal/domain"
	"PhoneVerse/internal/httpapi"
	"PhoneVerse/internal/infrastructure/events"
	"PhoneVerse/internal/infrastructure/imagery"
	"PhoneVerse/internal/infrastructure/llm"
	"PhoneVerse/internal/infrastructure/lock"
	"PhoneVerse/internal/infrastructure/parser"
	"PhoneVerse/internal/infrastructure/scheduler"
	"PhoneVerse/internal/infrastructure/storage"
	"PhoneVerse/internal/infrastructure/telegram"
	"PhoneVerse/internal/infrastructure/uploads"
	"PhoneVerse/internal/logging"
	"PhoneVerse/internal/ports"
	"PhoneVerse/internal/rewrite"
	"PhoneVerse/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	publisher  *usecase.Publisher
	automation *usecase.AutomationController
	auth       *usecase.AuthService
	jobs       *usecase.Scheduler
	server     *httpapi.Server
	closers    []func()
}

// New opens the database and builds every adapter the configuration enables.
func New(ctx context.Context, cfg config.Config, baseLogger *zap.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Development)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a := &Application{cfg: cfg, logger: baseLogger, store: store}

	notifier := a.notifiers()
	a.publisher = usecase.NewPublisher(cfg.Publishing, usecase.PublisherDeps{
		Articles: store,
		Users:    store,
		Notifier: notifier,
		Logger:   baseLogger,
	})

	resolver := imagery.NewPicsumResolver(cfg.Images.URLTemplate)
	a.automation = usecase.NewAutomationController(cfg.Automation, usecase.AutomationDeps{
		Source:    a.newsSource(),
		Rewriter:  a.rewriter(),
		Images:    resolver,
		Publisher: a.publisher,
		Lock:      a.runLock(),
		Logger:    baseLogger,
	})

	authCfg := cfg.Auth
	if authCfg.JWTSecret == "" {
		authCfg.JWTSecret = RandomSecret()
		baseLogger.Warn("JWT_SECRET is not set; generated an ephemeral secret, tokens will not survive a restart")
	}
	a.auth, err = usecase.NewAuthService(authCfg, usecase.AuthDeps{Users: store, Sessions: store, Logger: baseLogger})
	if err != nil {
		a.Close()
		return nil, err
	}

	imageStore, err := a.imageStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	jobs := []usecase.Job{
		usecase.AutomationJob(cfg.Automation.Schedule, a.automation),
		usecase.SessionSweepJob(cfg.Auth.SweepSchedule, a.auth),
	}
	if cfg.Database.KeepAlive > 0 {
		jobs = append(jobs, usecase.KeepAliveJob(cfg.Database.KeepAlive, store.KeepAlive))
	}
	a.jobs = usecase.NewScheduler(scheduler.NewCronScheduler(time.UTC, baseLogger), baseLogger, jobs...)

	deps := httpapi.Deps{
		Server:     cfg.Server,
		TokenTTL:   cfg.Auth.TokenTTL,
		Articles:   store,
		Publisher:  a.publisher,
		Automation: a.automation,
		Auth:       a.auth,
		Uploads:    imageStore,
		Images:     resolver,
		Ping:       store.Ping,
		Logger:     baseLogger,
	}
	if cfg.Images.S3.Bucket == "" {
		deps.UploadDir = cfg.Images.UploadDir
		deps.UploadPath = cfg.Images.PublicPath
	}
	a.server = httpapi.NewServer(cfg.Server.Addr(), httpapi.NewRouter(deps), baseLogger)
	return a, nil
}

func (a *Application) newsSource() ports.NewsSource {
	var opts []parser.Option
	if a.cfg.Feeds.ExtractFullText {
		opts = append(opts, parser.WithExtractor(parser.NewReadabilityExtractor(a.cfg.Feeds.Timeout, a.cfg.Feeds.UserAgent)))
	}
	return parser.NewRSSSource(a.cfg.Feeds, a.logger.With(zap.String("component", "rss")), opts...)
}

func (a *Application) rewriter() ports.ContentRewriter {
	logger := a.logger.With(zap.String("component", "rewrite"))
	registry := rewrite.NewRegistry()
	registry.Register(rewrite.NewTemplateRewriter(nil))
	if a.cfg.Rewriter.OpenAI.APIKey != "" {
		registry.Register(rewrite.NewAIRewriter(config.RewriterOpenAI, llm.NewOpenAIClient(a.cfg.Rewriter.OpenAI), logger))
	}
	if a.cfg.Rewriter.Cohere.APIKey != "" {
		registry.Register(rewrite.NewAIRewriter(config.RewriterCohere, llm.NewCohereClient(a.cfg.Rewriter.Cohere), logger))
	}

	rw, err := registry.Resolve(a.cfg.Rewriter.Strategy)
	if err != nil {
		a.logger.Warn("rewriter unavailable, using template",
			zap.String("strategy", a.cfg.Rewriter.Strategy),
			zap.Strings("registered", registry.Names()),
			zap.Error(err))
		rw, _ = registry.Resolve(config.RewriterTemplate)
	}
	a.logger.Info("rewriter selected", zap.String("name", rw.Name()))
	return rw
}

func (a *Application) notifiers() ports.Notifier {
	var fan events.Fanout
	if a.cfg.Telegram.BotToken != "" && a.cfg.Telegram.ChatID != "" {
		fan = append(fan, telegram.NewNotifier(a.cfg.Telegram))
	}
	if a.cfg.NATS.URL != "" {
		nc, err := events.NewNATSNotifier(a.cfg.NATS)
		if err != nil {
			a.logger.Warn("nats notifier disabled", zap.Error(err))
		} else {
			fan = append(fan, nc)
			a.closers = append(a.closers, nc.Close)
		}
	}
	if len(fan) == 0 {
		return nil
	}
	return fan
}

func (a *Application) runLock() ports.RunLock {
	if a.cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })
	return lock.NewRedisLock(client, a.cfg.Redis.LockKey, a.cfg.Redis.LockTTL)
}

func (a *Application) imageStore(ctx context.Context) (ports.ImageStore, error) {
	if a.cfg.Images.S3.Bucket != "" {
		s, err := uploads.NewS3Store(ctx, a.cfg.Images.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 uploads: %w", err)
		}
		return s, nil
	}
	return uploads.NewLocalStore(a.cfg.Images.UploadDir, a.cfg.Images.PublicPath), nil
}

// Run serves HTTP and runs the scheduled jobs until ctx is cancelled, then
// shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer a.Close()

	if err := a.jobs.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.ListenAndServe() }()

	startup := time.NewTimer(a.cfg.Automation.InitialDelay)
	defer startup.Stop()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-serveErr:
			runErr = err
			break loop
		case <-startup.C:
			if !a.automation.Status().Enabled {
				continue
			}
			if err := a.automation.TriggerAsync(ctx, usecase.TriggerStartup); err != nil && !errors.Is(err, domain.ErrAlreadyRunning) {
				a.logger.Warn("startup run failed", zap.Error(err))
			}
		}
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	if err := a.jobs.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler shutdown", zap.Error(err))
	}
	a.automation.Wait()
	return runErr
}

// RunOnce executes a single automation batch regardless of the enabled flag.
func (a *Application) RunOnce(ctx context.Context) (domain.RunResult, error) {
	return a.automation.Trigger(ctx, usecase.TriggerManual)
}

// Auth exposes the account service to administrative commands.
func (a *Application) Auth() *usecase.AuthService {
	return a.auth
}

// Close releases the database and any broker connections.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
		a.store = nil
	}
	_ = a.logger.Sync()
}

// RandomSecret returns 32 random bytes hex-encoded.
func RandomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return hex.EncodeToString(buf)
}
