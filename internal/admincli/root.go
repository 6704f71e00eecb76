// Package admincli implements the obsadmin command tree. The commands talk
// directly to the record store and the Redis index, not to the HTTP API.
package admincli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/obstaclehub/records-api/internal/factory"
)

var (
	app *factory.App

	redisURL    string
	databaseURL string
	storageType string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "obsadmin",
		Short: "Administration tool for the records API",
		Long: `obsadmin operates directly on the record store and the Redis ranking
index. It can inspect and rebuild per-map leaderboards and clean up stale keys.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))

			var err error
			app, err = factory.New(cmd.Context(), factory.Config{
				Logger:      logger,
				StorageType: storageType,
				DatabaseURL: databaseURL,
				RedisURL:    redisURL,
			})
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app == nil {
				return nil
			}
			return app.Close()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL (env: REDIS_URL)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&storageType, "storage", "postgres", "Record store backend: postgres, memory")

	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newRedisCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
