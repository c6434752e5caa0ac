package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jimdaga/newsdigest/internal/api"
	"github.com/jimdaga/newsdigest/internal/config"
	"github.com/jimdaga/newsdigest/internal/worker"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the schedule evaluator, plus the task worker when Redis is configured",
		RunE: func(cmd *cobra.Command, _ []string) error {
			embedWorker, _ := cmd.Flags().GetBool("with-worker")
			return serve(embedWorker)
		},
	}
	cmd.Flags().String("port", "", "HTTP port")
	cmd.Flags().Bool("with-worker", true, "run the task worker in this process when Redis is configured")
	_ = viper.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func serve(embedWorker bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	deps := api.Deps{
		Store:     a.store,
		Catalog:   a.catalog,
		Feedback:  a.feedback,
		Scheduler: a.scheduler,
		Ready:     a.readyChecks(),
		Logger:    logger,
	}

	if cfg.RedisURL != "" {
		client, err := worker.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		deps.Enqueuer = client

		if embedWorker {
			stopWorker, err := worker.Start(cfg.RedisURL, a.eval, logger)
			if err != nil {
				return err
			}
			defer stopWorker()
		}
	}

	if cfg.SchedulerEnabled {
		switch cfg.SchedulerMode {
		case config.SchedulerModeInProcess:
			if err := a.scheduler.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := a.scheduler.Stop(); err != nil {
					logger.Warn("failed to stop scheduler", "error", err)
				}
			}()
		case config.SchedulerModeQueue:
			stopTicks, err := worker.StartScheduler(cfg.RedisURL, cfg.SchedulerCheckInterval, logger)
			if err != nil {
				return err
			}
			a.scheduler.SetQueueDriven(true)
			defer func() {
				stopTicks()
				a.scheduler.SetQueueDriven(false)
			}()
		}
	} else {
		logger.Info("Scheduler disabled, digests are only sent on manual trigger")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(deps, api.Options{
		OperatorAPIKey:    cfg.OperatorAPIKey,
		FeedbackRateLimit: cfg.FeedbackRateLimit,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
