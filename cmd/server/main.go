package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsdigest",
		Short:         "Personalized news digests delivered by email on each reader's schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("database-url", "", "Postgres URL, or sqlite://<path> for local runs")
	flags.String("redis-url", "", "Redis URL for the feed cache, task queue and event stream")
	for key, flag := range map[string]string{
		"log.level":    "log-level",
		"log.format":   "log-format",
		"database.url": "database-url",
		"redis.url":    "redis-url",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		newServeCmd(),
		newWorkerCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newTriggerCmd(),
		newEventsCmd(),
	)
	return root
}
