// cmd/historian/main.go is an asynchronous historian service that pops lobby
// actions from the Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/fraud/internal/cache"
	"github.com/jason-s-yu/fraud/internal/config"
	"github.com/jason-s-yu/fraud/internal/database"
	"github.com/jason-s-yu/fraud/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	cfg := &config.HistorianConfig{}
	cobra.CheckErr(config.NewHistorianCommand(cfg, releaseVersion, run).Execute())
}

func run(ctx context.Context, cfg *config.HistorianConfig) error {
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := database.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	svc := historian.New(rdb, store, historian.Options{
		Queue:      cfg.ActionQueue,
		BatchSize:  cfg.BatchSize,
		FlushDelay: cfg.FlushDelay,
		Logger:     logger,
	})
	return svc.Run(ctx)
}
