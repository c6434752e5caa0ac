package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jimdaga/newsdigest/internal/config"
	"github.com/jimdaga/newsdigest/internal/database"
	"github.com/jimdaga/newsdigest/internal/digest"
	"github.com/jimdaga/newsdigest/internal/events"
	"github.com/jimdaga/newsdigest/internal/feedback"
	"github.com/jimdaga/newsdigest/internal/feeds"
	"github.com/jimdaga/newsdigest/internal/health"
	"github.com/jimdaga/newsdigest/internal/notify"
	"github.com/jimdaga/newsdigest/internal/render"
	"github.com/jimdaga/newsdigest/internal/scheduler"
	"github.com/jimdaga/newsdigest/internal/store"
	"github.com/jimdaga/newsdigest/internal/summarizer"
	"github.com/jimdaga/newsdigest/internal/worker"
)

// app is the composition root shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	store  *store.Store
	rdb    *redis.Client

	catalog   *feeds.Catalog
	publisher *events.Publisher
	eval      *scheduler.Evaluator
	scheduler *scheduler.Scheduler
	feedback  *feedback.Service
}

func now() time.Time { return time.Now().UTC() }

// loadConfig reads configuration and builds the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openDatabase connects and applies migrations.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, db: db, store: store.New(db)}

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		a.rdb = redis.NewClient(opt)
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis not reachable at startup, cache and events will retry per call", "error", err)
		}
	}

	a.catalog, err = feeds.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	aggOpts := feeds.Options{
		CacheTTL: cfg.FeedCacheTTL,
		Timeout:  cfg.ExternalCallTimeout,
		Logger:   logger,
	}
	if a.rdb != nil {
		aggOpts.Cache = feeds.NewRedisCache(a.rdb)
	}
	if cfg.ScrapeFullText {
		aggOpts.Scraper = feeds.NewScraper(10 * time.Second)
	}

	deps := digest.Deps{
		Store:      a.store,
		Aggregator: feeds.NewAggregator(a.catalog, aggOpts),
		Summarizer: summarizer.NewClient(cfg.SummarizerURL, cfg.SummarizerSecret, cfg.SummarizerStub, cfg.ExternalCallTimeout, logger),
		PDF:        render.NewPDFRenderer(now),
		Audio:      render.NewAudioClient(cfg.TTSURL, cfg.TTSSecret, cfg.ExternalCallTimeout, logger),
		Notifier:   notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, logger),
	}

	var feedbackEvents feedback.EventPublisher
	if cfg.EventsEnabled && a.rdb != nil {
		a.publisher = events.NewPublisher(a.rdb)
		deps.Events = a.publisher
		feedbackEvents = a.publisher
	} else if cfg.EventsEnabled {
		logger.Warn("EVENTS_ENABLED set without REDIS_URL, events are not published")
	}

	orch := digest.New(deps, digest.Config{
		BaseURL:     cfg.BaseURL,
		Voice:       cfg.TTSVoice,
		FeedbackTTL: cfg.FeedbackTTL,
		CallTimeout: cfg.ExternalCallTimeout,
		Now:         now,
		Logger:      logger,
	})

	// A run makes up to four bounded external calls plus database work.
	userTimeout := 5*cfg.ExternalCallTimeout + time.Minute
	a.eval = scheduler.NewEvaluator(a.store, orch, now, userTimeout, logger)
	a.scheduler = scheduler.New(a.eval, cfg.SchedulerCheckInterval, logger)
	a.feedback = feedback.NewService(a.store, feedbackEvents, now, logger)
	return a, nil
}

func (a *app) readyChecks() []health.Check {
	checks := []health.Check{{
		Name: "database",
		Probe: func(ctx context.Context) error {
			sqlDB, err := a.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if a.rdb != nil {
		checks = append(checks, health.Check{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() },
		})
	}
	return checks
}

func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("failed to close Redis client", "error", err)
		}
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("failed to close database", "error", err)
	}
}
