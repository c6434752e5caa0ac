package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jimdaga/newsdigest/internal/config"
	"github.com/jimdaga/newsdigest/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the task worker (requires Redis)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.RedisURL == "" {
				return errors.New("worker mode requires REDIS_URL")
			}

			if a.cfg.SchedulerEnabled && a.cfg.SchedulerMode == config.SchedulerModeQueue {
				stopTicks, err := worker.StartScheduler(a.cfg.RedisURL, a.cfg.SchedulerCheckInterval, a.logger)
				if err != nil {
					return err
				}
				defer stopTicks()
			}

			// Run blocks and handles its own signal interception
			return worker.Run(a.cfg.RedisURL, a.eval, a.logger)
		},
	}
}
