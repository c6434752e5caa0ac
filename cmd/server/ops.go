package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jimdaga/newsdigest/internal/database"
	"github.com/jimdaga/newsdigest/internal/digest"
	"github.com/jimdaga/newsdigest/internal/events"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(*cobra.Command, []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			logger.Info("Migrations complete")
			return database.Close(db)
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert development users and a delivery with an open feedback link",
		RunE: func(*cobra.Command, []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Env == "production" {
				return errors.New("refusing to seed a production database")
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)
			return database.SeedDevData(db, logger)
		},
	}
}

func newTriggerCmd() *cobra.Command {
	var (
		userID uint
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Run digests now: one user regardless of schedule, or every due user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (userID == 0) == !all {
				return errors.New("pass exactly one of --user or --all")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if userID != 0 {
				outcome := a.scheduler.TriggerUser(ctx, userID)
				fmt.Fprintln(out, outcome)
				if outcome.Status == digest.StatusFailed {
					return errors.New("digest failed")
				}
				return nil
			}

			result, err := a.scheduler.TriggerAllDue(ctx)
			if err != nil {
				return err
			}
			for _, outcome := range result.Outcomes {
				fmt.Fprintln(out, outcome)
			}
			fmt.Fprintf(out, "checked %d, due %d, delivered %d, skipped %d, failed %d\n",
				result.Checked, result.Due,
				result.Count(digest.StatusDelivered),
				result.Count(digest.StatusSkipped),
				result.Count(digest.StatusFailed),
			)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "user ID to deliver to")
	cmd.Flags().BoolVar(&all, "all", false, "run one schedule check over every user")
	return cmd
}

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the digest event stream",
	}
	cmd.AddCommand(newEventsTailCmd())
	return cmd
}

func newEventsTailCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print delivery and feedback events as JSON lines until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.rdb == nil {
				return errors.New("events tail requires REDIS_URL")
			}

			consumer, err := events.NewConsumer(ctx, a.rdb, group, "tail-"+uuid.NewString()[:8], a.logger)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = consumer.Consume(ctx, func(_ context.Context, ev events.Event) error {
				return enc.Encode(ev)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&group, "group", events.GroupEventLoggers, "consumer group to read as")
	return cmd
}
